package protocol

import "encoding/json"

// Request and response bodies of the matching server REST interface. They are
// shared by the gin handlers and by the matchclient package so both sides
// always agree on the wire schema.

type RegisterIdentityRequest struct {
	MasterPublicKey string `json:"masterPublicKey"`
}

type RegisterIdentityReply struct {
	MasterKeyID string `json:"masterKeyId"`
}

type RegisterOrderRequest struct {
	MasterKeyID         string `json:"masterKeyId"`
	DepositAccountIndex uint32 `json:"depositAccountIndex"`
	DepositTxHex        string `json:"depositTxHex"`
	EncryptionKey       string `json:"encryptionKey"`
	SourceCurrency      string `json:"sourceCurrency"`
	SourceAmount        string `json:"sourceAmount"`
	DestinationCurrency string `json:"destinationCurrency"`
	DestinationAmount   string `json:"destinationAmount"`
}

type RegisterOrderReply struct {
	OrderID string `json:"orderId"`
}

// OrderInfo is the public projection of an order: no identity nor deposit
// material is ever exposed through the discovery endpoints.
type OrderInfo struct {
	ID                  string `json:"id"`
	SourceCurrency      string `json:"sourceCurrency"`
	SourceAmount        string `json:"sourceAmount"`
	DestinationCurrency string `json:"destinationCurrency"`
	DestinationAmount   string `json:"destinationAmount"`
}

type TakeOrderRequest struct {
	MasterKeyID         string `json:"masterKeyId"`
	OrderID             string `json:"orderId"`
	DepositAccountIndex uint32 `json:"depositAccountIndex"`
	DepositTxHex        string `json:"depositTxHex"`
	EncryptionKey       string `json:"encryptionKey"`
}

type TakeOrderReply struct {
	OrderID                      string `json:"orderId"`
	CounterpartyDepositPublicKey string `json:"counterpartyDepositPublicKey"`
	CounterpartyDepositTxHex     string `json:"counterpartyDepositTxHex"`
	CounterpartyEncryptionKey    string `json:"counterpartyEncryptionKey"`
}

type FirstMessageRequest struct {
	Side         string          `json:"side"`
	MasterKeyID  string          `json:"masterKeyId"`
	OrderID      string          `json:"orderId"`
	FirstMessage json.RawMessage `json:"gradualReleaseFirstMessage"`
}

type SegmentRequest struct {
	Side         string        `json:"side"`
	MasterKeyID  string        `json:"masterKeyId"`
	OrderID      string        `json:"orderId"`
	SegmentProof *SegmentProof `json:"segmentProof"`
}

type WithdrawRequest struct {
	Side        string `json:"side"`
	MasterKeyID string `json:"masterKeyId"`
	OrderID     string `json:"orderId"`
}

type WithdrawReply struct {
	CounterpartySharePublic  string `json:"counterpartySharePublic"`
	CounterpartyMasterKeyID  string `json:"counterpartyMasterKeyId"`
	CounterpartyAccountIndex uint32 `json:"counterpartyAccountIndex"`
}

type ErrorReply struct {
	Message string `json:"message"`
}
