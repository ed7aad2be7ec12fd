package ports

import "context"

// ChildKeyShare is a deterministically derived sub-key for a given currency
// and account index, produced from a party's master share.
type ChildKeyShare struct {
	// PublicKey is the combined child public key, compressed (33 bytes).
	PublicKey []byte
	// PrivateShare is this party's 32-byte private scalar for the child key.
	// It is the secret fed into the gradual-release engine.
	PrivateShare []byte
}

// ThresholdSigner is the party-side capability for two-party threshold ECDSA:
// identity generation, child-key derivation and partial signing. The core
// consumes it, it never implements the cryptography itself.
type ThresholdSigner interface {
	// GenerateIdentity runs the distributed key generation with the signing
	// counterpart and returns the stable master key id along with the opaque
	// local share material to persist.
	GenerateIdentity(ctx context.Context) (string, []byte, error)
	// DeriveChild derives the child share at the given currency derivation
	// index and account index.
	DeriveChild(
		shareMaterial []byte, coinIndex, accountIndex uint32,
	) (*ChildKeyShare, error)
	// Sign produces a complete signature over hash using the child key at the
	// given derivation path, running the signing protocol with the
	// counterpart.
	Sign(
		ctx context.Context, hash, shareMaterial []byte,
		coinIndex, accountIndex uint32,
	) (*Signature, error)
}

// ThresholdVault is the server-side capability over the registered master
// keys. The vault only ever releases public derivation material: the private
// half of any share never reaches the matching server.
type ThresholdVault interface {
	// RegisterIdentity stores a party's master public key and returns the
	// master key id all protocol messages will be addressed by.
	RegisterIdentity(ctx context.Context, masterPublicKey []byte) (string, error)
	// ChildPublicKey returns the uncompressed (65-byte) child public key of
	// the identified party at the given derivation path.
	ChildPublicKey(
		ctx context.Context, masterKeyID string, coinIndex, accountIndex uint32,
	) ([]byte, error)
	// SharePublicMaterial returns the public derivation material a
	// counterparty needs to reconstruct the identified party's child share
	// locally after having extracted its private half.
	SharePublicMaterial(
		ctx context.Context, masterKeyID string, coinIndex, accountIndex uint32,
	) ([]byte, error)
}
