package bitcoin

import (
	"bytes"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"

	"github.com/crosswap-network/crosswap-daemon/internal/core/ports"
)

func TestTransactionSerializeRoundTrip(t *testing.T) {
	fromKey, toKey := newKeyPair(t), newKeyPair(t)
	tx := newTestTransaction(t, fromKey, toKey, 90000)

	raw, err := tx.Serialize()
	require.NoError(t, err)

	parsed := parseTestTransaction(t, raw)
	reserialized, err := parsed.Serialize()
	require.NoError(t, err)
	require.Equal(t, raw, reserialized)
}

func TestTransactionIsPayingTo(t *testing.T) {
	fromKey, toKey := newKeyPair(t), newKeyPair(t)
	tx := newTestTransaction(t, fromKey, toKey, 90000)

	require.True(t, tx.IsPayingTo(toKey.PubKey().SerializeCompressed()))
	require.False(
		t, tx.IsPayingTo(newKeyPair(t).PubKey().SerializeCompressed()),
	)

	t.Run("after_parsing", func(t *testing.T) {
		raw, err := tx.Serialize()
		require.NoError(t, err)
		parsed := parseTestTransaction(t, raw)
		require.True(t, parsed.IsPayingTo(toKey.PubKey().SerializeCompressed()))
	})
}

func TestTransactionSigning(t *testing.T) {
	fromKey, toKey := newKeyPair(t), newKeyPair(t)
	tx := newTestTransaction(t, fromKey, toKey, 90000)
	fromPub := fromKey.PubKey().SerializeCompressed()

	hashes, err := tx.HashesToSign([][]byte{fromPub})
	require.NoError(t, err)
	require.Len(t, hashes, 1)
	require.Len(t, hashes[0], 32)

	t.Run("failing_foreign_key", func(t *testing.T) {
		_, err := tx.HashesToSign(
			[][]byte{newKeyPair(t).PubKey().SerializeCompressed()},
		)
		require.Error(t, err)
	})

	compact, err := ecdsa.SignCompact(fromKey, hashes[0], true)
	require.NoError(t, err)
	sig := &ports.Signature{R: compact[1:33], S: compact[33:65]}

	require.NoError(t, tx.InjectSignatures([][]byte{fromPub}, []*ports.Signature{sig}))

	// The unlocking script must be canonical DER sig + pubkey, executable
	// against the previous output script.
	prevOut := txscript.NewCannedPrevOutputFetcher(tx.prevScripts[0], 100000)
	vm, err := txscript.NewEngine(
		tx.prevScripts[0], tx.msgTx, 0, txscript.StandardVerifyFlags,
		nil, nil, 100000, prevOut,
	)
	require.NoError(t, err)
	require.NoError(t, vm.Execute())
}

func TestParseSatoshiAmount(t *testing.T) {
	value, err := parseSatoshiAmount("100000")
	require.NoError(t, err)
	require.Equal(t, int64(100000), value)

	tests := []struct {
		name   string
		amount string
	}{
		{"fractional", "1000.7"},
		{"sub_satoshi", "0.2"},
		{"zero", "0"},
		{"negative", "-1000"},
		{"not_a_number", "satoshi"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseSatoshiAmount(tt.amount)
			require.Error(t, err)
		})
	}
}

func TestInjectSignaturesRejectsEmptyScalars(t *testing.T) {
	fromKey, toKey := newKeyPair(t), newKeyPair(t)
	tx := newTestTransaction(t, fromKey, toKey, 90000)

	err := tx.InjectSignatures(
		[][]byte{fromKey.PubKey().SerializeCompressed()},
		[]*ports.Signature{{R: nil, S: []byte{0x01}}},
	)
	require.Error(t, err)
}

func newKeyPair(t *testing.T) *btcec.PrivateKey {
	key, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	return key
}

// newTestTransaction assembles the same single-input shape the builder
// produces, without going through esplora.
func newTestTransaction(
	t *testing.T, fromKey, toKey *btcec.PrivateKey, sendValue int64,
) *transaction {
	params := &chaincfg.RegressionNetParams
	fromScript, err := payToPubKeyScript(
		fromKey.PubKey().SerializeCompressed(), params,
	)
	require.NoError(t, err)
	toScript, err := payToPubKeyScript(
		toKey.PubKey().SerializeCompressed(), params,
	)
	require.NoError(t, err)

	prevHash, err := chainhash.NewHashFromStr(
		"aa00000000000000000000000000000000000000000000000000000000000bb0",
	)
	require.NoError(t, err)

	msgTx := wire.NewMsgTx(wire.TxVersion)
	msgTx.AddTxIn(wire.NewTxIn(wire.NewOutPoint(prevHash, 0), nil, nil))
	msgTx.AddTxOut(wire.NewTxOut(sendValue, toScript))

	return &transaction{
		msgTx:       msgTx,
		prevScripts: [][]byte{fromScript},
		params:      params,
	}
}

func parseTestTransaction(t *testing.T, raw []byte) *transaction {
	msgTx := wire.NewMsgTx(wire.TxVersion)
	require.NoError(t, msgTx.Deserialize(bytes.NewReader(raw)))
	return &transaction{msgTx: msgTx, params: &chaincfg.RegressionNetParams}
}
