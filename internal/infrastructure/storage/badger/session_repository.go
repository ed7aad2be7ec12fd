package badgerdb

import (
	"context"

	"github.com/dgraph-io/badger/v4"
	"github.com/timshannon/badgerhold/v4"

	"github.com/crosswap-network/crosswap-daemon/internal/core/domain"
)

type sessionRepository struct {
	store *badgerhold.Store
}

func NewSessionRepository(store *badgerhold.Store) domain.SessionRepository {
	return &sessionRepository{store}
}

func (r *sessionRepository) AddSession(
	ctx context.Context, session *domain.SwapSession,
) error {
	return r.store.Insert(session.OrderID, *session)
}

func (r *sessionRepository) GetSession(
	ctx context.Context, orderID string,
) (*domain.SwapSession, error) {
	var session domain.SwapSession
	if err := r.store.Get(orderID, &session); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, domain.ErrSessionNotFound
		}
		return nil, err
	}
	return &session, nil
}

func (r *sessionRepository) GetAllSessions(
	ctx context.Context,
) ([]domain.SwapSession, error) {
	var sessions []domain.SwapSession
	if err := r.store.Find(&sessions, nil); err != nil {
		return nil, err
	}
	return sessions, nil
}

func (r *sessionRepository) UpdateSession(
	ctx context.Context, orderID string,
	updateFn func(s *domain.SwapSession) (*domain.SwapSession, error),
) error {
	return r.store.Badger().Update(func(tx *badger.Txn) error {
		var session domain.SwapSession
		if err := r.store.TxGet(tx, orderID, &session); err != nil {
			if err == badgerhold.ErrNotFound {
				return domain.ErrSessionNotFound
			}
			return err
		}

		updatedSession, err := updateFn(&session)
		if err != nil {
			return err
		}
		return r.store.TxUpdate(tx, orderID, *updatedSession)
	})
}
