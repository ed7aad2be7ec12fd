package domain

import "errors"

var (
	// ErrOrderNotFound is thrown on any lookup by id that fails, including
	// taking an order that is not open anymore.
	ErrOrderNotFound = errors.New("order not found")
	// ErrOrderNotOpen is thrown when trying to match an order twice.
	ErrOrderNotOpen = errors.New("order is not open")
	// ErrInvalidSide is thrown when a relay request carries a side other than
	// maker or taker.
	ErrInvalidSide = errors.New("side must be either maker or taker")
	// ErrUnsupportedCurrency ...
	ErrUnsupportedCurrency = errors.New("currency is not supported")
	// ErrSessionNotFound is thrown on any session lookup by order id that
	// fails, including segment proofs arriving with a stale index.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionFailed is thrown when operating on a session that has been
	// poisoned by a verification failure.
	ErrSessionFailed = errors.New("session is terminally failed")
	// ErrUnexpectedSegment is thrown when a segment proof index does not match
	// the session's pending index.
	ErrUnexpectedSegment = errors.New("segment index does not match pending index")
	// ErrSessionComplete is thrown when appending proofs to a consumed session.
	ErrSessionComplete = errors.New("session has already collected all segments")
)
