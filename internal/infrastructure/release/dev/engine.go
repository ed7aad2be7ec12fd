// Package devrelease is a development stand-in for the verifiable-encryption
// gradual release. A 32-byte secret key is encrypted byte by byte under an
// ephemeral ECDH keystream, with one hash commitment per byte published up
// front. Segments are individually checkable against the commitments and the
// extracted key is checked against the published public point, which is
// enough to exercise the whole protocol. It offers none of the zero-knowledge
// guarantees of the production engine: a commitment over a single byte is
// trivially brute-forceable.
package devrelease

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"

	"github.com/crosswap-network/crosswap-daemon/internal/core/domain"
	"github.com/crosswap-network/crosswap-daemon/internal/core/ports"
	"github.com/crosswap-network/crosswap-daemon/pkg/protocol"
)

const secretKeyLen = 32

type firstMessage struct {
	SecretPublicKey    string   `json:"secretPublicKey"`
	EphemeralPublicKey string   `json:"ephemeralPublicKey"`
	RecipientKeyHash   string   `json:"recipientKeyHash"`
	Commitments        []string `json:"commitments"`
}

type releaseShare struct {
	Ciphertexts  []string     `json:"ciphertexts"`
	FirstMessage firstMessage `json:"firstMessage"`
}

type segmentPayload struct {
	Ciphertext string `json:"ciphertext"`
}

type engine struct{}

func NewEngine() ports.GradualReleaseEngine {
	return engine{}
}

func (engine) CreateShare(
	secretKey, counterpartyEncryptionKey []byte,
) (json.RawMessage, json.RawMessage, error) {
	if len(secretKey) != secretKeyLen {
		return nil, nil, fmt.Errorf(
			"secret key must be %d bytes, got %d", secretKeyLen, len(secretKey),
		)
	}
	recipientKey, err := parseCoordinates(counterpartyEncryptionKey)
	if err != nil {
		return nil, nil, err
	}

	ephemeralKey, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, nil, err
	}
	keystream := keystreamFor(ephemeralKey, recipientKey)

	secretPriv, _ := btcec.PrivKeyFromBytes(secretKey)
	ephemeralPub := ephemeralKey.PubKey().SerializeCompressed()
	recipientHash := sha256.Sum256(counterpartyEncryptionKey)

	ciphertexts := make([]string, domain.SegmentCount)
	commitments := make([]string, domain.SegmentCount)
	for i := 0; i < domain.SegmentCount; i++ {
		ct := []byte{secretKey[i] ^ keystream(i)}
		ciphertexts[i] = hex.EncodeToString(ct)
		commitments[i] = hex.EncodeToString(
			commitSegment(i, ct, ephemeralPub, recipientHash[:]),
		)
	}

	first := firstMessage{
		SecretPublicKey:    hex.EncodeToString(secretPriv.PubKey().SerializeUncompressed()),
		EphemeralPublicKey: hex.EncodeToString(ephemeralPub),
		RecipientKeyHash:   hex.EncodeToString(recipientHash[:]),
		Commitments:        commitments,
	}

	rawFirst, err := json.Marshal(first)
	if err != nil {
		return nil, nil, err
	}
	rawShare, err := json.Marshal(releaseShare{
		Ciphertexts:  ciphertexts,
		FirstMessage: first,
	})
	if err != nil {
		return nil, nil, err
	}
	return rawFirst, rawShare, nil
}

func (engine) VerifyStart(
	rawFirstMessage json.RawMessage, encryptionKey []byte,
) bool {
	first, err := parseFirstMessage(rawFirstMessage)
	if err != nil {
		return false
	}

	// The first message must be addressed to our encryption key.
	recipientHash := sha256.Sum256(encryptionKey)
	return first.RecipientKeyHash == hex.EncodeToString(recipientHash[:])
}

func (engine) ProveSegment(
	rawShare json.RawMessage, index int,
) (*protocol.SegmentProof, error) {
	var share releaseShare
	if err := json.Unmarshal(rawShare, &share); err != nil {
		return nil, err
	}
	if index < 0 || index >= len(share.Ciphertexts) {
		return nil, fmt.Errorf("segment index %d out of range", index)
	}

	payload, err := json.Marshal(segmentPayload{
		Ciphertext: share.Ciphertexts[index],
	})
	if err != nil {
		return nil, err
	}
	return &protocol.SegmentProof{Index: index, Payload: payload}, nil
}

func (engine) VerifySegment(
	rawFirstMessage json.RawMessage, proof *protocol.SegmentProof,
	encryptionKey []byte,
) bool {
	first, err := parseFirstMessage(rawFirstMessage)
	if err != nil {
		return false
	}
	if proof == nil || proof.Index < 0 || proof.Index >= len(first.Commitments) {
		return false
	}
	var payload segmentPayload
	if err := json.Unmarshal(proof.Payload, &payload); err != nil {
		return false
	}
	ct, err := hex.DecodeString(payload.Ciphertext)
	if err != nil || len(ct) != 1 {
		return false
	}
	ephemeralPub, err := hex.DecodeString(first.EphemeralPublicKey)
	if err != nil {
		return false
	}
	recipientHash, err := hex.DecodeString(first.RecipientKeyHash)
	if err != nil {
		return false
	}

	commitment := commitSegment(proof.Index, ct, ephemeralPub, recipientHash)
	return first.Commitments[proof.Index] == hex.EncodeToString(commitment)
}

func (engine) ExtractSecret(
	rawFirstMessage json.RawMessage, proofs []*protocol.SegmentProof,
	decryptionKey []byte,
) ([]byte, error) {
	first, err := parseFirstMessage(rawFirstMessage)
	if err != nil {
		return nil, err
	}
	if len(proofs) != domain.SegmentCount {
		return nil, fmt.Errorf(
			"need %d segment proofs, got %d", domain.SegmentCount, len(proofs),
		)
	}

	rawEphemeralPub, err := hex.DecodeString(first.EphemeralPublicKey)
	if err != nil {
		return nil, err
	}
	ephemeralPub, err := btcec.ParsePubKey(rawEphemeralPub)
	if err != nil {
		return nil, err
	}
	privKey, _ := btcec.PrivKeyFromBytes(decryptionKey)
	keystream := keystreamFor(privKey, ephemeralPub)

	secretKey := make([]byte, domain.SegmentCount)
	for i, proof := range proofs {
		if proof.Index != i {
			return nil, fmt.Errorf("segment proof out of order at %d", i)
		}
		var payload segmentPayload
		if err := json.Unmarshal(proof.Payload, &payload); err != nil {
			return nil, err
		}
		ct, err := hex.DecodeString(payload.Ciphertext)
		if err != nil || len(ct) != 1 {
			return nil, fmt.Errorf("malformed ciphertext at segment %d", i)
		}
		secretKey[i] = ct[0] ^ keystream(i)
	}

	// The recovered scalar must land on the public point the counterparty
	// committed to up front.
	secretPriv, _ := btcec.PrivKeyFromBytes(secretKey)
	if hex.EncodeToString(
		secretPriv.PubKey().SerializeUncompressed(),
	) != first.SecretPublicKey {
		return nil, fmt.Errorf("extracted key does not match committed public key")
	}
	return secretKey, nil
}

// keystreamFor derives the per-segment keystream byte from the ECDH shared
// secret of the two keys.
func keystreamFor(
	privKey *btcec.PrivateKey, pubKey *btcec.PublicKey,
) func(index int) byte {
	shared := btcec.GenerateSharedSecret(privKey, pubKey)
	return func(index int) byte {
		var buf [4]byte
		binary.BigEndian.PutUint32(buf[:], uint32(index))
		digest := sha256.Sum256(append(shared, buf[:]...))
		return digest[0]
	}
}

// commitSegment binds index, ciphertext, ephemeral key and recipient into one
// commitment, so no field can be swapped after the first message went out.
func commitSegment(
	index int, ciphertext, ephemeralPub, recipientHash []byte,
) []byte {
	h := sha256.New()
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], uint32(index))
	h.Write(buf[:])
	h.Write(ciphertext)
	h.Write(ephemeralPub)
	h.Write(recipientHash)
	return h.Sum(nil)
}

func parseFirstMessage(raw json.RawMessage) (*firstMessage, error) {
	var first firstMessage
	if err := json.Unmarshal(raw, &first); err != nil {
		return nil, err
	}
	if len(first.Commitments) != domain.SegmentCount {
		return nil, fmt.Errorf(
			"first message must carry %d commitments, got %d",
			domain.SegmentCount, len(first.Commitments),
		)
	}
	return &first, nil
}

func parseCoordinates(coords []byte) (*btcec.PublicKey, error) {
	if len(coords) != 64 {
		return nil, fmt.Errorf(
			"encryption key must be 64 bytes of coordinates, got %d", len(coords),
		)
	}
	return btcec.ParsePubKey(append([]byte{0x04}, coords...))
}
