// Package blockchain routes per-currency calls to the chain clients.
package blockchain

import (
	"github.com/crosswap-network/crosswap-daemon/internal/core/domain"
	"github.com/crosswap-network/crosswap-daemon/internal/core/ports"
)

type manager struct {
	clients map[string]ports.BlockchainClient
}

// NewManager returns a BlockchainManager over the two modeled chains.
func NewManager(
	bitcoinClient, ethereumClient ports.BlockchainClient,
) ports.BlockchainManager {
	return &manager{
		clients: map[string]ports.BlockchainClient{
			domain.CurrencyBTC: bitcoinClient,
			domain.CurrencyETH: ethereumClient,
		},
	}
}

func (m *manager) Client(currency string) (ports.BlockchainClient, error) {
	client, ok := m.clients[currency]
	if !ok {
		return nil, domain.ErrUnsupportedCurrency
	}
	return client, nil
}
