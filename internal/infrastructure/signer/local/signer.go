// Package localsigner is a development stand-in for the two-party threshold
// signer. The whole key lives on the party side as a bip32 master key; only
// the master public key is registered with the server vault. The interplay
// between the two halves mirrors the production protocol, the cryptography
// does not: nothing here is a threshold scheme.
package localsigner

import (
	"context"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/tyler-smith/go-bip32"

	"github.com/crosswap-network/crosswap-daemon/internal/core/ports"
)

// IdentityRegistrar registers the master public key with the signing
// counterpart and returns the master key id. ports.MatchingClient satisfies
// it.
type IdentityRegistrar interface {
	RegisterIdentity(ctx context.Context, masterPublicKey []byte) (string, error)
}

type signer struct {
	registrar IdentityRegistrar
}

func NewSigner(registrar IdentityRegistrar) ports.ThresholdSigner {
	return &signer{registrar}
}

func (s *signer) GenerateIdentity(
	ctx context.Context,
) (string, []byte, error) {
	seed, err := bip32.NewSeed()
	if err != nil {
		return "", nil, err
	}
	masterKey, err := bip32.NewMasterKey(seed)
	if err != nil {
		return "", nil, err
	}

	masterPublicKey := []byte(masterKey.PublicKey().B58Serialize())
	masterKeyID, err := s.registrar.RegisterIdentity(ctx, masterPublicKey)
	if err != nil {
		return "", nil, err
	}

	return masterKeyID, []byte(masterKey.B58Serialize()), nil
}

func (s *signer) DeriveChild(
	shareMaterial []byte, coinIndex, accountIndex uint32,
) (*ports.ChildKeyShare, error) {
	childKey, err := deriveChildKey(shareMaterial, coinIndex, accountIndex)
	if err != nil {
		return nil, err
	}

	privKey, pubKey := btcec.PrivKeyFromBytes(childKey.Key)
	return &ports.ChildKeyShare{
		PublicKey:    pubKey.SerializeCompressed(),
		PrivateShare: privKey.Serialize(),
	}, nil
}

func (s *signer) Sign(
	ctx context.Context, hash, shareMaterial []byte,
	coinIndex, accountIndex uint32,
) (*ports.Signature, error) {
	childKey, err := deriveChildKey(shareMaterial, coinIndex, accountIndex)
	if err != nil {
		return nil, err
	}

	privKey, _ := btcec.PrivKeyFromBytes(childKey.Key)
	compact, err := ecdsa.SignCompact(privKey, hash, true)
	if err != nil {
		return nil, err
	}
	return &ports.Signature{
		R: append([]byte{}, compact[1:33]...),
		S: append([]byte{}, compact[33:65]...),
	}, nil
}

// deriveChildKey derives master/coinIndex/accountIndex, non-hardened so the
// vault can mirror the same path on the public half.
func deriveChildKey(
	shareMaterial []byte, coinIndex, accountIndex uint32,
) (*bip32.Key, error) {
	masterKey, err := bip32.B58Deserialize(string(shareMaterial))
	if err != nil {
		return nil, fmt.Errorf("invalid share material: %s", err)
	}
	coinKey, err := masterKey.NewChildKey(coinIndex)
	if err != nil {
		return nil, err
	}
	return coinKey.NewChildKey(accountIndex)
}
