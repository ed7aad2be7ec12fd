package domain

import "context"

// SessionRepository is the abstraction for any kind of database intended to
// persist a party's swap sessions, keyed by order id.
type SessionRepository interface {
	// AddSession persists the session of a freshly made or taken order.
	AddSession(ctx context.Context, session *SwapSession) error
	// GetSession returns the session for the given order id, or
	// ErrSessionNotFound.
	GetSession(ctx context.Context, orderID string) (*SwapSession, error)
	// GetAllSessions returns every stored session.
	GetAllSessions(ctx context.Context) ([]SwapSession, error)
	// UpdateSession commits changes to a session in a transactional way.
	UpdateSession(
		ctx context.Context, orderID string,
		updateFn func(s *SwapSession) (*SwapSession, error),
	) error
}
