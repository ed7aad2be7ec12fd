package application

import (
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"

	"github.com/crosswap-network/crosswap-daemon/internal/core/ports"
)

// uncompressedKeyHexLen is the hex length of an uncompressed secp256k1 point,
// '04' prefix included.
const uncompressedKeyHexLen = 130

// newEncryptionKeyPair generates the ephemeral key pair used for a single
// order's release protocol. The public key is hex-encoded uncompressed.
func newEncryptionKeyPair() (string, string, error) {
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		return "", "", err
	}
	privHex := hex.EncodeToString(priv.Serialize())
	pubHex := hex.EncodeToString(priv.PubKey().SerializeUncompressed())
	return privHex, pubHex, nil
}

// parseUncompressedKeyHex enforces the fixed 130-hex-character uncompressed
// encoding before parsing the point.
func parseUncompressedKeyHex(keyHex string) (*btcec.PublicKey, error) {
	if len(keyHex) != uncompressedKeyHexLen {
		return nil, fmt.Errorf("%w: want %d hex chars, got %d",
			ErrMalformedKey, uncompressedKeyHexLen, len(keyHex))
	}
	buf, err := hex.DecodeString(keyHex)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformedKey, err)
	}
	pubkey, err := btcec.ParsePubKey(buf)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformedKey, err)
	}
	return pubkey, nil
}

// stripUncompressedPrefix returns the 64-byte (x, y) coordinates of an
// uncompressed key, the encoding the release engine expects.
func stripUncompressedPrefix(keyHex string) ([]byte, error) {
	pubkey, err := parseUncompressedKeyHex(keyHex)
	if err != nil {
		return nil, err
	}
	return pubkey.SerializeUncompressed()[1:], nil
}

// compressKeyHex converts an uncompressed hex key to its 33-byte compressed
// form.
func compressKeyHex(keyHex string) ([]byte, error) {
	pubkey, err := parseUncompressedKeyHex(keyHex)
	if err != nil {
		return nil, err
	}
	return pubkey.SerializeCompressed(), nil
}

// signWithKey signs hash directly with a plain private key. It is used for
// the withdrawal sweep only, where the extracted counterparty key is a full
// key and no threshold round-trip is needed.
func signWithKey(privKey, hash []byte) (*ports.Signature, error) {
	priv, _ := btcec.PrivKeyFromBytes(privKey)
	compact, err := ecdsa.SignCompact(priv, hash, true)
	if err != nil {
		return nil, err
	}
	return signatureFromCompact(compact), nil
}

// signatureFromCompact converts a 65-byte compact signature, as produced by
// ecdsa.SignCompact, into its raw scalar form.
func signatureFromCompact(compact []byte) *ports.Signature {
	return &ports.Signature{
		R: append([]byte{}, compact[1:33]...),
		S: append([]byte{}, compact[33:65]...),
	}
}

// verifySignature checks a raw signature against hash and the compressed
// public key of the signer.
func verifySignature(sig *ports.Signature, hash, publicKey []byte) bool {
	pubkey, err := btcec.ParsePubKey(publicKey)
	if err != nil {
		return false
	}
	var r, s btcec.ModNScalar
	if overflow := r.SetByteSlice(sig.R); overflow {
		return false
	}
	if overflow := s.SetByteSlice(sig.S); overflow {
		return false
	}
	return ecdsa.NewSignature(&r, &s).Verify(hash, pubkey)
}

// publicKeyOfSecret returns the public key of a 32-byte private scalar.
func publicKeyOfSecret(secret []byte) (*btcec.PublicKey, error) {
	if len(secret) != 32 {
		return nil, fmt.Errorf("%w: want 32-byte secret, got %d",
			ErrMalformedKey, len(secret))
	}
	priv, _ := btcec.PrivKeyFromBytes(secret)
	return priv.PubKey(), nil
}
