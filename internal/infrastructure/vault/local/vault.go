// Package localvault is the server half of the development signing stand-in.
// It stores registered master public keys and derives child public keys on
// demand. No private material ever enters this package.
package localvault

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/timshannon/badgerhold/v4"
	"github.com/tyler-smith/go-bip32"

	"github.com/crosswap-network/crosswap-daemon/internal/core/ports"
)

type registeredKey struct {
	MasterKeyID     string
	MasterPublicKey string
}

type vault struct {
	store *badgerhold.Store
}

func NewVault(store *badgerhold.Store) ports.ThresholdVault {
	return &vault{store}
}

// RegisterIdentity stores the master public key under an id derived from the
// key itself, so re-registering the same key is idempotent.
func (v *vault) RegisterIdentity(
	ctx context.Context, masterPublicKey []byte,
) (string, error) {
	if _, err := bip32.B58Deserialize(string(masterPublicKey)); err != nil {
		return "", fmt.Errorf("invalid master public key: %s", err)
	}

	digest := sha256.Sum256(masterPublicKey)
	masterKeyID := hex.EncodeToString(digest[:16])

	if err := v.store.Upsert(masterKeyID, registeredKey{
		MasterKeyID:     masterKeyID,
		MasterPublicKey: string(masterPublicKey),
	}); err != nil {
		return "", err
	}
	return masterKeyID, nil
}

func (v *vault) ChildPublicKey(
	ctx context.Context, masterKeyID string, coinIndex, accountIndex uint32,
) ([]byte, error) {
	childKey, err := v.deriveChildKey(masterKeyID, coinIndex, accountIndex)
	if err != nil {
		return nil, err
	}

	pubKey, err := btcec.ParsePubKey(childKey.Key)
	if err != nil {
		return nil, err
	}
	return pubKey.SerializeUncompressed(), nil
}

// SharePublicMaterial coincides with the child public key in this stand-in:
// the extracted secret is the full child private key, so its public point is
// all a counterparty needs to cross-check the extraction.
func (v *vault) SharePublicMaterial(
	ctx context.Context, masterKeyID string, coinIndex, accountIndex uint32,
) ([]byte, error) {
	return v.ChildPublicKey(ctx, masterKeyID, coinIndex, accountIndex)
}

func (v *vault) deriveChildKey(
	masterKeyID string, coinIndex, accountIndex uint32,
) (*bip32.Key, error) {
	var registered registeredKey
	if err := v.store.Get(masterKeyID, &registered); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("unknown master key id %s", masterKeyID)
		}
		return nil, err
	}

	masterKey, err := bip32.B58Deserialize(registered.MasterPublicKey)
	if err != nil {
		return nil, err
	}
	coinKey, err := masterKey.NewChildKey(coinIndex)
	if err != nil {
		return nil, err
	}
	return coinKey.NewChildKey(accountIndex)
}
