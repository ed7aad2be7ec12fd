package domain

import (
	"encoding/json"

	"github.com/crosswap-network/crosswap-daemon/pkg/protocol"
)

const (
	// PendingIndexUnset marks a session whose gradual release has not started.
	PendingIndexUnset = -2
	// PendingIndexAwaitingFirstMessage marks a session that created its own
	// release share and waits for the counterparty's first message.
	PendingIndexAwaitingFirstMessage = -1
)

// SwapSession is one party's local view of an order's gradual-release
// progress. Each party exclusively owns and mutates its own session; all
// cross-party state is exchanged by message, never by shared storage.
type SwapSession struct {
	OrderID string
	Side    Side

	SourceCurrency      string
	DestinationCurrency string
	SourceAmount        string
	DestinationAmount   string

	DepositAccountIndex uint32
	// EncryptionPrivateKey and EncryptionPublicKey form the ephemeral key
	// pair used only for this order's release protocol. The public key is
	// hex-encoded uncompressed, '04' prefix included.
	EncryptionPrivateKey string
	EncryptionPublicKey  string

	GradualReleaseShare      json.RawMessage
	PendingIndex             int
	CounterpartyFirstMessage json.RawMessage

	CounterpartyEncryptionKey    string
	CounterpartyDepositPublicKey string

	SegmentProofs []*protocol.SegmentProof

	Failed       bool
	Settled      bool
	WithdrawTxID string
}

// NewSwapSession returns a session for a freshly made or taken order. The
// release protocol has not started yet.
func NewSwapSession(
	orderID string, side Side,
	sourceCurrency, sourceAmount, destinationCurrency, destinationAmount string,
	depositAccountIndex uint32,
	encryptionPrivateKey, encryptionPublicKey string,
) *SwapSession {
	return &SwapSession{
		OrderID:              orderID,
		Side:                 side,
		SourceCurrency:       sourceCurrency,
		DestinationCurrency:  destinationCurrency,
		SourceAmount:         sourceAmount,
		DestinationAmount:    destinationAmount,
		DepositAccountIndex:  depositAccountIndex,
		EncryptionPrivateKey: encryptionPrivateKey,
		EncryptionPublicKey:  encryptionPublicKey,
		PendingIndex:         PendingIndexUnset,
	}
}

// DepositCurrency returns the currency this party deposited: the maker funds
// the source side of the order, the taker the destination side.
func (s *SwapSession) DepositCurrency() string {
	if s.Side == SideMaker {
		return s.SourceCurrency
	}
	return s.DestinationCurrency
}

// WithdrawCurrency returns the currency this party sweeps once the
// counterparty's deposit key has been extracted.
func (s *SwapSession) WithdrawCurrency() string {
	if s.Side == SideMaker {
		return s.DestinationCurrency
	}
	return s.SourceCurrency
}

// BeginRelease records this party's own release share and starts waiting for
// the counterparty's first message.
func (s *SwapSession) BeginRelease(
	share json.RawMessage,
	counterpartyEncryptionKey, counterpartyDepositPublicKey string,
) error {
	if s.Failed {
		return ErrSessionFailed
	}

	s.GradualReleaseShare = share
	s.PendingIndex = PendingIndexAwaitingFirstMessage
	if counterpartyEncryptionKey != "" {
		s.CounterpartyEncryptionKey = counterpartyEncryptionKey
	}
	if counterpartyDepositPublicKey != "" {
		s.CounterpartyDepositPublicKey = counterpartyDepositPublicKey
	}
	return nil
}

// AcceptFirstMessage records the verified counterparty first message and
// starts expecting segment 0.
func (s *SwapSession) AcceptFirstMessage(firstMessage json.RawMessage) error {
	if s.Failed {
		return ErrSessionFailed
	}

	s.CounterpartyFirstMessage = firstMessage
	s.PendingIndex = 0
	return nil
}

// AppendSegment appends a verified counterparty proof and advances the
// pending index. Proofs for any index other than the pending one are
// rejected, which makes duplicate or stale deliveries no-ops.
func (s *SwapSession) AppendSegment(proof *protocol.SegmentProof) error {
	if s.Failed {
		return ErrSessionFailed
	}
	if s.IsComplete() {
		return ErrSessionComplete
	}
	if proof == nil || proof.Index != s.PendingIndex {
		return ErrUnexpectedSegment
	}

	s.SegmentProofs = append(s.SegmentProofs, proof)
	s.PendingIndex = proof.Index + 1
	return nil
}

// IsComplete returns whether all segment proofs have been collected.
func (s *SwapSession) IsComplete() bool {
	return len(s.SegmentProofs) == SegmentCount
}

// IsExchanging returns whether the session has started receiving segments.
func (s *SwapSession) IsExchanging() bool {
	return s.PendingIndex >= 0 && !s.Settled && !s.Failed
}

// Fail marks the session terminally failed. A poisoned session never sends
// nor accepts further messages for its order.
func (s *SwapSession) Fail() {
	s.Failed = true
}

// Settle records the withdrawal transaction that swept the counterparty
// deposit, bringing the session to its terminal state.
func (s *SwapSession) Settle(withdrawTxID string) {
	s.Settled = true
	s.WithdrawTxID = withdrawTxID
}
