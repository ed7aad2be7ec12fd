package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Push message types sent by the matching server over the websocket channel.
const (
	TypeMatch        = "match"
	TypeFirstMessage = "gradualReleaseFirstMessage"
	TypeSegment      = "segment"
)

// Sides of a matched order.
const (
	SideMaker = "maker"
	SideTaker = "taker"
)

var (
	// ErrProtocol is returned whenever a push or REST payload does not match
	// the expected schema. Unknown and malformed messages are rejected, not
	// silently coerced.
	ErrProtocol = errors.New("malformed protocol message")
)

// SegmentProof is one verifiable-encryption fragment at a given index. The
// index is serialized as "k" on the wire.
type SegmentProof struct {
	Index   int             `json:"k"`
	Payload json.RawMessage `json:"payload"`
}

// Envelope is the outer frame of every push message.
type Envelope struct {
	Type    string `json:"type"`
	OrderID string `json:"orderId"`
}

// MatchMessage notifies the maker that its order has been taken.
type MatchMessage struct {
	Type                         string `json:"type"`
	OrderID                      string `json:"orderId"`
	CounterpartyDepositPublicKey string `json:"counterpartyDepositPublicKey"`
	CounterpartyDepositTxHex     string `json:"counterpartyDepositTxHex"`
	CounterpartyEncryptionKey    string `json:"counterpartyEncryptionKey"`
}

// FirstMessageMessage relays the counterparty's gradual-release first message.
type FirstMessageMessage struct {
	Type         string          `json:"type"`
	OrderID      string          `json:"orderId"`
	FirstMessage json.RawMessage `json:"gradualReleaseFirstMessage"`
}

// SegmentMessage relays one counterparty segment proof.
type SegmentMessage struct {
	Type         string        `json:"type"`
	OrderID      string        `json:"orderId"`
	SegmentProof *SegmentProof `json:"segmentProof"`
}

// NewMatchMessage returns a well-formed match push message.
func NewMatchMessage(
	orderID, depositPublicKey, depositTxHex, encryptionKey string,
) *MatchMessage {
	return &MatchMessage{
		Type:                         TypeMatch,
		OrderID:                      orderID,
		CounterpartyDepositPublicKey: depositPublicKey,
		CounterpartyDepositTxHex:     depositTxHex,
		CounterpartyEncryptionKey:    encryptionKey,
	}
}

// NewFirstMessageMessage returns a well-formed first-message push message.
func NewFirstMessageMessage(
	orderID string, firstMessage json.RawMessage,
) *FirstMessageMessage {
	return &FirstMessageMessage{
		Type:         TypeFirstMessage,
		OrderID:      orderID,
		FirstMessage: firstMessage,
	}
}

// NewSegmentMessage returns a well-formed segment push message.
func NewSegmentMessage(orderID string, proof *SegmentProof) *SegmentMessage {
	return &SegmentMessage{
		Type:         TypeSegment,
		OrderID:      orderID,
		SegmentProof: proof,
	}
}

// DecodeMessage parses a raw push frame into one of the typed messages above.
// Frames with an unknown type or that fail strict decoding are rejected with
// ErrProtocol.
func DecodeMessage(data []byte) (interface{}, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrProtocol, err)
	}

	switch env.Type {
	case TypeMatch:
		msg := &MatchMessage{}
		if err := decodeStrict(data, msg); err != nil {
			return nil, err
		}
		if msg.OrderID == "" {
			return nil, fmt.Errorf("%w: missing order id", ErrProtocol)
		}
		return msg, nil
	case TypeFirstMessage:
		msg := &FirstMessageMessage{}
		if err := decodeStrict(data, msg); err != nil {
			return nil, err
		}
		if msg.OrderID == "" || len(msg.FirstMessage) == 0 {
			return nil, fmt.Errorf("%w: missing order id or first message", ErrProtocol)
		}
		return msg, nil
	case TypeSegment:
		msg := &SegmentMessage{}
		if err := decodeStrict(data, msg); err != nil {
			return nil, err
		}
		if msg.OrderID == "" || msg.SegmentProof == nil {
			return nil, fmt.Errorf("%w: missing order id or segment proof", ErrProtocol)
		}
		return msg, nil
	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrProtocol, env.Type)
	}
}

func decodeStrict(data []byte, v interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %s", ErrProtocol, err)
	}
	return nil
}
