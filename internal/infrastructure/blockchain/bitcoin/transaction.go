package bitcoin

import (
	"bytes"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/crosswap-network/crosswap-daemon/internal/core/ports"
)

// transaction wraps a wire.MsgTx along with the previous output scripts
// needed to compute its signature hashes.
type transaction struct {
	msgTx       *wire.MsgTx
	prevScripts [][]byte
	params      *chaincfg.Params
}

func (t *transaction) Hash() []byte {
	hash := t.msgTx.TxHash()
	return hash[:]
}

// HashesToSign returns the legacy sighash of the single input for each of the
// given public keys. The builder only ever produces single-input transactions
// so one hash per signing key is well defined.
func (t *transaction) HashesToSign(
	signingPublicKeys [][]byte,
) ([][]byte, error) {
	if len(t.msgTx.TxIn) != len(signingPublicKeys) {
		return nil, fmt.Errorf(
			"want %d signing keys, got %d",
			len(t.msgTx.TxIn), len(signingPublicKeys),
		)
	}

	hashes := make([][]byte, 0, len(signingPublicKeys))
	for i, publicKey := range signingPublicKeys {
		script, err := payToPubKeyScript(publicKey, t.params)
		if err != nil {
			return nil, err
		}
		if len(t.prevScripts) > i && !bytes.Equal(t.prevScripts[i], script) {
			return nil, fmt.Errorf("input %d is not spendable by the given key", i)
		}
		hash, err := txscript.CalcSignatureHash(
			script, txscript.SigHashAll, t.msgTx, i,
		)
		if err != nil {
			return nil, err
		}
		hashes = append(hashes, hash)
	}
	return hashes, nil
}

func (t *transaction) IsPayingTo(publicKey []byte) bool {
	script, err := payToPubKeyScript(publicKey, t.params)
	if err != nil {
		return false
	}
	for _, out := range t.msgTx.TxOut {
		if bytes.Equal(out.PkScript, script) {
			return true
		}
	}
	return false
}

func (t *transaction) Serialize() ([]byte, error) {
	var buf bytes.Buffer
	if err := t.msgTx.Serialize(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// InjectSignatures sets the unlocking script of each input to the canonical
// DER signature plus public key expected by a p2pkh output.
func (t *transaction) InjectSignatures(
	signingPublicKeys [][]byte, sigs []*ports.Signature,
) error {
	if len(signingPublicKeys) != len(sigs) ||
		len(sigs) != len(t.msgTx.TxIn) {
		return fmt.Errorf("signatures do not cover the transaction inputs")
	}

	for i, sig := range sigs {
		encoded, err := encodeDERSignature(sig)
		if err != nil {
			return err
		}
		derSig := append(encoded, byte(txscript.SigHashAll))
		sigScript, err := txscript.NewScriptBuilder().
			AddData(derSig).
			AddData(signingPublicKeys[i]).
			Script()
		if err != nil {
			return err
		}
		t.msgTx.TxIn[i].SignatureScript = sigScript
	}
	return nil
}

// payToPubKeyScript returns the p2pkh locking script of the given compressed
// public key.
func payToPubKeyScript(
	publicKey []byte, params *chaincfg.Params,
) ([]byte, error) {
	addr, err := btcutil.NewAddressPubKeyHash(btcutil.Hash160(publicKey), params)
	if err != nil {
		return nil, err
	}
	return txscript.PayToAddrScript(addr)
}

// encodeDERSignature serializes raw (r, s) scalars into a minimal DER
// signature. Empty scalars are rejected.
func encodeDERSignature(sig *ports.Signature) ([]byte, error) {
	if len(sig.R) == 0 || len(sig.S) == 0 {
		return nil, fmt.Errorf("signature scalars must not be empty")
	}
	r := trimLeadingZeroes(sig.R)
	s := trimLeadingZeroes(sig.S)
	if r[0]&0x80 != 0 {
		r = append([]byte{0x00}, r...)
	}
	if s[0]&0x80 != 0 {
		s = append([]byte{0x00}, s...)
	}

	der := make([]byte, 0, 6+len(r)+len(s))
	der = append(der, 0x30, byte(4+len(r)+len(s)))
	der = append(der, 0x02, byte(len(r)))
	der = append(der, r...)
	der = append(der, 0x02, byte(len(s)))
	der = append(der, s...)
	return der, nil
}

func trimLeadingZeroes(buf []byte) []byte {
	for len(buf) > 1 && buf[0] == 0x00 {
		buf = buf[1:]
	}
	return buf
}
