package badgerdb

import (
	"fmt"
	"path/filepath"

	"github.com/dgraph-io/badger/v4"
	"github.com/timshannon/badgerhold/v4"

	"github.com/crosswap-network/crosswap-daemon/internal/core/domain"
	"github.com/crosswap-network/crosswap-daemon/internal/core/ports"
)

const (
	orderDir   = "order"
	sessionDir = "session"
	partyDir   = "party"
)

type repoManager struct {
	orderRepository        domain.OrderRepository
	sessionRepository      domain.SessionRepository
	identityRepository     domain.IdentityRepository
	accountIndexRepository domain.AccountIndexRepository

	closeFns []func()
}

// NewRepoManager opens (or creates if not existing) the badger stores under
// baseDir, one dedicated directory per concern. An empty baseDir yields
// volatile in-memory stores, used by tests.
func NewRepoManager(baseDir string, logger badger.Logger) (ports.RepoManager, error) {
	orderStore, err := createDB(dirFor(baseDir, orderDir), logger)
	if err != nil {
		return nil, fmt.Errorf("opening order db: %w", err)
	}
	sessionStore, err := createDB(dirFor(baseDir, sessionDir), logger)
	if err != nil {
		return nil, fmt.Errorf("opening session db: %w", err)
	}
	partyStore, err := createDB(dirFor(baseDir, partyDir), logger)
	if err != nil {
		return nil, fmt.Errorf("opening party db: %w", err)
	}

	return &repoManager{
		orderRepository:        NewOrderRepository(orderStore),
		sessionRepository:      NewSessionRepository(sessionStore),
		identityRepository:     NewIdentityRepository(partyStore),
		accountIndexRepository: NewAccountIndexRepository(partyStore),
		closeFns: []func(){
			func() { orderStore.Close() },
			func() { sessionStore.Close() },
			func() { partyStore.Close() },
		},
	}, nil
}

func (m *repoManager) OrderRepository() domain.OrderRepository {
	return m.orderRepository
}

func (m *repoManager) SessionRepository() domain.SessionRepository {
	return m.sessionRepository
}

func (m *repoManager) IdentityRepository() domain.IdentityRepository {
	return m.identityRepository
}

func (m *repoManager) AccountIndexRepository() domain.AccountIndexRepository {
	return m.accountIndexRepository
}

func (m *repoManager) Close() {
	for _, closeFn := range m.closeFns {
		closeFn()
	}
}

// NewStore opens a standalone badgerhold store under baseDir/name, for
// consumers that persist outside the repositories, like the server vault. An
// empty baseDir yields a volatile in-memory store.
func NewStore(
	baseDir, name string, logger badger.Logger,
) (*badgerhold.Store, error) {
	return createDB(dirFor(baseDir, name), logger)
}

func dirFor(baseDir, sub string) string {
	if len(baseDir) <= 0 {
		return ""
	}
	return filepath.Join(baseDir, sub)
}
