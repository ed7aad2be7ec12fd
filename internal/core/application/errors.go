package application

import "errors"

var (
	// ErrInsufficientFunds is thrown when the balance check preceding an
	// order or a take fails. No order is created.
	ErrInsufficientFunds = errors.New("not enough funds")
	// ErrInvalidAmount is thrown when an order amount is not a positive
	// whole number of the currency base unit. Fractional base units cannot
	// be deposited and must never be accepted into an order.
	ErrInvalidAmount = errors.New("amount must be a positive integer in base units")
	// ErrVerificationFailed is thrown when a first message or a segment proof
	// fails its cryptographic check. The session is poisoned; the
	// counterparty is not notified.
	ErrVerificationFailed = errors.New("gradual release verification failed")
	// ErrInvalidSignature is thrown when a threshold-sign result fails local
	// verification before being embedded in a transaction.
	ErrInvalidSignature = errors.New("invalid signature")
	// ErrMalformedKey is thrown when a counterparty key is not a well-formed
	// uncompressed secp256k1 point.
	ErrMalformedKey = errors.New("malformed public key")
	// ErrDepositMismatch is thrown when a counterparty deposit transaction
	// does not pay the claimed deposit public key.
	ErrDepositMismatch = errors.New("deposit transaction does not pay the claimed public key")
	// ErrKeyMismatch is thrown when the extracted counterparty private key
	// does not match the public derivation material handed off by the server.
	ErrKeyMismatch = errors.New("extracted key does not match counterparty share public")
	// ErrIdentityNotInitialized is thrown when operating before the threshold
	// identity has been generated.
	ErrIdentityNotInitialized = errors.New("identity not initialized")
)
