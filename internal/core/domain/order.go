package domain

import (
	"github.com/google/uuid"
)

// OrderStatus represents the different statuses an order can assume.
type OrderStatus int

const (
	OrderStatusUndefined OrderStatus = iota
	// OrderStatusOpen is the status of a registered order waiting for a taker.
	OrderStatusOpen
	// OrderStatusMatched is the status of an order that has been taken. An
	// order is matched at most once and is never deleted afterwards.
	OrderStatusMatched
)

// Side identifies which party of a matched order a message refers to.
type Side string

const (
	SideMaker Side = "maker"
	SideTaker Side = "taker"
)

// ParseSide validates a wire-level side string.
func ParseSide(s string) (Side, error) {
	switch Side(s) {
	case SideMaker, SideTaker:
		return Side(s), nil
	default:
		return "", ErrInvalidSide
	}
}

// Order is the server-side record of a swap intent. The maker fields are set
// at registration, the taker fields exactly once when the order is taken.
type Order struct {
	ID                  string
	SourceCurrency      string
	DestinationCurrency string
	SourceAmount        string
	DestinationAmount   string
	Status              OrderStatus

	MasterKeyID         string
	DepositAccountIndex uint32
	DepositTxHex        string
	EncryptionKey       string

	TakerMasterKeyID         string
	TakerDepositAccountIndex uint32
	TakerDepositTxHex        string
	TakerEncryptionKey       string
}

// NewOrder returns an open order with a fresh id.
func NewOrder(
	masterKeyID string, depositAccountIndex uint32,
	depositTxHex, encryptionKey string,
	sourceCurrency, sourceAmount, destinationCurrency, destinationAmount string,
) *Order {
	return &Order{
		ID:                  uuid.New().String(),
		SourceCurrency:      sourceCurrency,
		DestinationCurrency: destinationCurrency,
		SourceAmount:        sourceAmount,
		DestinationAmount:   destinationAmount,
		Status:              OrderStatusOpen,
		MasterKeyID:         masterKeyID,
		DepositAccountIndex: depositAccountIndex,
		DepositTxHex:        depositTxHex,
		EncryptionKey:       encryptionKey,
	}
}

// Take brings an order from the Open to the Matched status and records the
// taker's deposit material. Taking a non-open order fails with ErrOrderNotOpen
// so that a double take can never succeed.
func (o *Order) Take(
	takerMasterKeyID string, takerDepositAccountIndex uint32,
	takerDepositTxHex, takerEncryptionKey string,
) error {
	if o.Status != OrderStatusOpen {
		return ErrOrderNotOpen
	}

	o.Status = OrderStatusMatched
	o.TakerMasterKeyID = takerMasterKeyID
	o.TakerDepositAccountIndex = takerDepositAccountIndex
	o.TakerDepositTxHex = takerDepositTxHex
	o.TakerEncryptionKey = takerEncryptionKey
	return nil
}

// IsOpen returns whether the order is still waiting for a taker.
func (o *Order) IsOpen() bool {
	return o.Status == OrderStatusOpen
}

// IsMatched returns whether the order has been taken.
func (o *Order) IsMatched() bool {
	return o.Status == OrderStatusMatched
}

// PartyKeyID returns the master key id of the given side of the order.
func (o *Order) PartyKeyID(side Side) string {
	if side == SideMaker {
		return o.MasterKeyID
	}
	return o.TakerMasterKeyID
}

// CounterpartyKeyID returns the master key id of the opposite side.
func (o *Order) CounterpartyKeyID(side Side) string {
	if side == SideMaker {
		return o.TakerMasterKeyID
	}
	return o.MasterKeyID
}

// BelongsTo returns whether the given master key id is the order's party on
// the given side. Relay and withdraw requests are rejected otherwise.
func (o *Order) BelongsTo(side Side, masterKeyID string) bool {
	return o.PartyKeyID(side) == masterKeyID
}
