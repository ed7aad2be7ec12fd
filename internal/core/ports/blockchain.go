package ports

import (
	"context"

	"github.com/shopspring/decimal"
)

// AmountAll requests a transaction sweeping the entire spendable balance of
// the source address, minus the network fee.
const AmountAll = "all"

// Signature is a raw ECDSA signature with 32-byte big-endian scalars.
type Signature struct {
	R []byte
	S []byte
}

// Transaction is a chain-specific transaction produced by a BlockchainClient.
type Transaction interface {
	// Hash returns the transaction hash.
	Hash() []byte
	// HashesToSign returns the digest to sign for each of the given signing
	// public keys (compressed, 33 bytes).
	HashesToSign(signingPublicKeys [][]byte) ([][]byte, error)
	// IsPayingTo returns whether the transaction output actually pays the
	// given public key (compressed, 33 bytes).
	IsPayingTo(publicKey []byte) bool
	// Serialize returns the raw transaction bytes. Serializing a parsed
	// transaction must be byte-identical to the bytes it was parsed from.
	Serialize() ([]byte, error)
	// InjectSignatures embeds the given signatures for the given signing
	// public keys, making the transaction ready for broadcast.
	InjectSignatures(signingPublicKeys [][]byte, sigs []*Signature) error
}

// BlockchainClient abstracts one of the two chains: address encoding, balance
// query, transaction construction, parsing and broadcast. Implementations are
// external collaborators of the swap core.
type BlockchainClient interface {
	GetAddress(publicKey []byte) (string, error)
	GetBalance(ctx context.Context, publicKey []byte) (decimal.Decimal, error)
	// BuildTransaction builds an unsigned transaction moving amount (a decimal
	// string, or AmountAll) from the address of fromPublicKey to the address
	// of toPublicKey.
	BuildTransaction(
		ctx context.Context, fromPublicKey []byte, amount string, toPublicKey []byte,
	) (Transaction, error)
	SendSignedTransaction(ctx context.Context, txHex string) (string, error)
	ParseTransaction(rawTx []byte) (Transaction, error)
}

// BlockchainManager routes per-currency calls to the right client.
type BlockchainManager interface {
	Client(currency string) (BlockchainClient, error)
}
