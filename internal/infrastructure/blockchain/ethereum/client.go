// Package ethereum implements the ethereum side of the swap through a JSON-RPC
// node. Amounts are wei expressed as decimal strings.
package ethereum

import (
	"context"
	"encoding/hex"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"

	"github.com/crosswap-network/crosswap-daemon/internal/core/ports"
)

const transferGasLimit = uint64(21000)

type client struct {
	eth    *ethclient.Client
	signer types.Signer
}

// NewClient dials the node at rpcURL and signs for the given chain id.
func NewClient(rpcURL string, chainID int64) (ports.BlockchainClient, error) {
	eth, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to dial ethereum node: %w", err)
	}
	return &client{
		eth:    eth,
		signer: types.NewEIP155Signer(big.NewInt(chainID)),
	}, nil
}

func (c *client) GetAddress(publicKey []byte) (string, error) {
	addr, err := addressOf(publicKey)
	if err != nil {
		return "", err
	}
	return addr.Hex(), nil
}

func (c *client) GetBalance(
	ctx context.Context, publicKey []byte,
) (decimal.Decimal, error) {
	addr, err := addressOf(publicKey)
	if err != nil {
		return decimal.Zero, err
	}
	balance, err := c.eth.BalanceAt(ctx, addr, nil)
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromBigInt(balance, 0), nil
}

func (c *client) BuildTransaction(
	ctx context.Context, fromPublicKey []byte, amount string, toPublicKey []byte,
) (ports.Transaction, error) {
	fromAddr, err := addressOf(fromPublicKey)
	if err != nil {
		return nil, err
	}
	toAddr, err := addressOf(toPublicKey)
	if err != nil {
		return nil, err
	}

	nonce, err := c.eth.PendingNonceAt(ctx, fromAddr)
	if err != nil {
		return nil, err
	}
	gasPrice, err := c.eth.SuggestGasPrice(ctx)
	if err != nil {
		return nil, err
	}

	var value *big.Int
	if amount == ports.AmountAll {
		balance, err := c.eth.BalanceAt(ctx, fromAddr, nil)
		if err != nil {
			return nil, err
		}
		fee := new(big.Int).Mul(gasPrice, new(big.Int).SetUint64(transferGasLimit))
		value = new(big.Int).Sub(balance, fee)
		if value.Sign() <= 0 {
			return nil, fmt.Errorf("balance does not cover the transfer fee")
		}
	} else {
		value, err = parseWeiAmount(amount)
		if err != nil {
			return nil, err
		}
	}

	tx := types.NewTransaction(
		nonce, toAddr, value, transferGasLimit, gasPrice, nil,
	)
	return &transaction{tx: tx, signer: c.signer}, nil
}

func (c *client) SendSignedTransaction(
	ctx context.Context, txHex string,
) (string, error) {
	rawTx, err := hex.DecodeString(txHex)
	if err != nil {
		return "", err
	}
	tx := &types.Transaction{}
	if err := tx.UnmarshalBinary(rawTx); err != nil {
		return "", err
	}
	if err := c.eth.SendTransaction(ctx, tx); err != nil {
		return "", err
	}
	return tx.Hash().Hex(), nil
}

func (c *client) ParseTransaction(rawTx []byte) (ports.Transaction, error) {
	tx := &types.Transaction{}
	if err := tx.UnmarshalBinary(rawTx); err != nil {
		return nil, err
	}
	return &transaction{tx: tx, signer: c.signer}, nil
}

// parseWeiAmount parses a decimal amount string into whole wei. Fractional
// and non-positive amounts are rejected, never truncated.
func parseWeiAmount(amount string) (*big.Int, error) {
	amt, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount: %s", err)
	}
	if !amt.IsInteger() || !amt.IsPositive() {
		return nil, fmt.Errorf(
			"amount must be a positive whole number of wei, got %s", amount,
		)
	}
	return amt.BigInt(), nil
}
