package ports

import "github.com/crosswap-network/crosswap-daemon/internal/core/domain"

// RepoManager gives access to all the repositories of a process. The server
// only uses the order repository; a party uses the session, identity and
// account-index ones.
type RepoManager interface {
	OrderRepository() domain.OrderRepository
	SessionRepository() domain.SessionRepository
	IdentityRepository() domain.IdentityRepository
	AccountIndexRepository() domain.AccountIndexRepository

	Close()
}
