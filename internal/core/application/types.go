package application

import "github.com/crosswap-network/crosswap-daemon/internal/core/domain"

// OrderRequest is a maker's swap intent.
type OrderRequest struct {
	SourceCurrency      string
	SourceAmount        string
	DestinationCurrency string
	DestinationAmount   string
}

// BalanceInfo is the balance of one currency.
type BalanceInfo struct {
	Currency string
	Value    string
}

// RegisterOrderInfo carries everything a maker submits when registering an
// order.
type RegisterOrderInfo struct {
	MasterKeyID         string
	DepositAccountIndex uint32
	DepositTxHex        string
	EncryptionKey       string
	Order               OrderRequest
}

// TakeOrderInfo carries everything a taker submits when taking an order.
type TakeOrderInfo struct {
	OrderID             string
	MasterKeyID         string
	DepositAccountIndex uint32
	DepositTxHex        string
	EncryptionKey       string
}

// MatchInfo is the synchronous reply to a successful take: the maker's
// deposit material the taker needs to start the release protocol.
type MatchInfo struct {
	OrderID                      string
	CounterpartyDepositPublicKey string
	CounterpartyDepositTxHex     string
	CounterpartyEncryptionKey    string
}

// HandoffInfo is the public derivation material released at withdrawal time.
type HandoffInfo struct {
	CounterpartySharePublic  string
	CounterpartyMasterKeyID  string
	CounterpartyAccountIndex uint32
}

// SettlementInfo is published by a party once a swap has been swept.
type SettlementInfo struct {
	OrderID      string
	Side         domain.Side
	Currency     string
	WithdrawTxID string
}

// OrderInfo is the public projection of an order.
type OrderInfo struct {
	ID                  string
	SourceCurrency      string
	SourceAmount        string
	DestinationCurrency string
	DestinationAmount   string
}

func orderInfoFromDomain(o *domain.Order) *OrderInfo {
	return &OrderInfo{
		ID:                  o.ID,
		SourceCurrency:      o.SourceCurrency,
		SourceAmount:        o.SourceAmount,
		DestinationCurrency: o.DestinationCurrency,
		DestinationAmount:   o.DestinationAmount,
	}
}
