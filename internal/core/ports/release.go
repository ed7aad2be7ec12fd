package ports

import (
	"encoding/json"

	"github.com/crosswap-network/crosswap-daemon/pkg/protocol"
)

// GradualReleaseEngine is the verifiable-encryption capability releasing a
// secret key in domain.SegmentCount independently verifiable segments. Its
// cryptographic internals are assumed correct; only this call contract is
// relied upon.
//
// Encryption keys are passed as the 64-byte (x, y) coordinates of an
// uncompressed secp256k1 point, '04' prefix stripped.
type GradualReleaseEngine interface {
	// CreateShare commits to secretKey towards the holder of
	// counterpartyEncryptionKey, returning the first message to relay and the
	// opaque release share to persist.
	CreateShare(
		secretKey, counterpartyEncryptionKey []byte,
	) (json.RawMessage, json.RawMessage, error)
	// VerifyStart checks a counterparty first message against our own
	// encryption public key.
	VerifyStart(firstMessage json.RawMessage, encryptionKey []byte) bool
	// ProveSegment produces the proof for the given segment index out of a
	// previously created release share.
	ProveSegment(
		releaseShare json.RawMessage, index int,
	) (*protocol.SegmentProof, error)
	// VerifySegment checks one counterparty proof against its first message
	// and our encryption public key.
	VerifySegment(
		firstMessage json.RawMessage, proof *protocol.SegmentProof,
		encryptionKey []byte,
	) bool
	// ExtractSecret recovers the counterparty secret key from the full proof
	// sequence using our ephemeral decryption (private) key.
	ExtractSecret(
		firstMessage json.RawMessage, proofs []*protocol.SegmentProof,
		decryptionKey []byte,
	) ([]byte, error)
}
