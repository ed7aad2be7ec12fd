package ethereum

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/crosswap-network/crosswap-daemon/internal/core/ports"
)

// transaction wraps a go-ethereum transaction together with the EIP155 signer
// of the target chain.
type transaction struct {
	tx     *types.Transaction
	signer types.Signer
}

func (t *transaction) Hash() []byte {
	return t.tx.Hash().Bytes()
}

// HashesToSign returns the EIP155 signing hash. An ethereum transaction has a
// single signer, so exactly one key is expected.
func (t *transaction) HashesToSign(
	signingPublicKeys [][]byte,
) ([][]byte, error) {
	if len(signingPublicKeys) != 1 {
		return nil, fmt.Errorf(
			"want exactly 1 signing key, got %d", len(signingPublicKeys),
		)
	}
	return [][]byte{t.signer.Hash(t.tx).Bytes()}, nil
}

func (t *transaction) IsPayingTo(publicKey []byte) bool {
	addr, err := addressOf(publicKey)
	if err != nil {
		return false
	}
	return t.tx.To() != nil && *t.tx.To() == addr
}

func (t *transaction) Serialize() ([]byte, error) {
	return t.tx.MarshalBinary()
}

// InjectSignatures embeds the raw (r, s) signature, searching the recovery id
// that makes the transaction recover to the signing key's address.
func (t *transaction) InjectSignatures(
	signingPublicKeys [][]byte, sigs []*ports.Signature,
) error {
	if len(signingPublicKeys) != 1 || len(sigs) != 1 {
		return fmt.Errorf("want exactly 1 signature")
	}
	fromAddr, err := addressOf(signingPublicKeys[0])
	if err != nil {
		return err
	}

	sig := make([]byte, 65)
	copy(sig[32-len(sigs[0].R):32], sigs[0].R)
	copy(sig[64-len(sigs[0].S):64], sigs[0].S)

	for _, recoveryID := range []byte{0, 1} {
		sig[64] = recoveryID
		signedTx, err := t.tx.WithSignature(t.signer, sig)
		if err != nil {
			continue
		}
		sender, err := types.Sender(t.signer, signedTx)
		if err == nil && sender == fromAddr {
			t.tx = signedTx
			return nil
		}
	}
	return fmt.Errorf("signature does not recover to the signing key")
}

// addressOf returns the ethereum address of a compressed secp256k1 public
// key.
func addressOf(publicKey []byte) (common.Address, error) {
	pubKey, err := crypto.DecompressPubkey(publicKey)
	if err != nil {
		return common.Address{}, err
	}
	return crypto.PubkeyToAddress(*pubKey), nil
}
