package badgerdb

import (
	"context"

	"github.com/dgraph-io/badger/v4"
	"github.com/timshannon/badgerhold/v4"

	"github.com/crosswap-network/crosswap-daemon/internal/core/domain"
)

// A party owns exactly one identity, stored under a fixed key.
const identityKey = "identity"

type identityRepository struct {
	store *badgerhold.Store
}

func NewIdentityRepository(store *badgerhold.Store) domain.IdentityRepository {
	return &identityRepository{store}
}

func (r *identityRepository) GetIdentity(
	ctx context.Context,
) (*domain.Identity, error) {
	var identity domain.Identity
	if err := r.store.Get(identityKey, &identity); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &identity, nil
}

func (r *identityRepository) AddIdentity(
	ctx context.Context, identity *domain.Identity,
) error {
	return r.store.Insert(identityKey, *identity)
}

type accountIndex struct {
	Currency string
	Next     uint32
}

type accountIndexRepository struct {
	store *badgerhold.Store
}

func NewAccountIndexRepository(
	store *badgerhold.Store,
) domain.AccountIndexRepository {
	return &accountIndexRepository{store}
}

// NextAccountIndex reserves the next deposit index for the currency. The
// counter row is read and bumped within one transaction so concurrent
// reservations can never hand out the same index.
func (r *accountIndexRepository) NextAccountIndex(
	ctx context.Context, currency string,
) (uint32, error) {
	var next uint32
	if err := r.store.Badger().Update(func(tx *badger.Txn) error {
		var counter accountIndex
		if err := r.store.TxGet(tx, currency, &counter); err != nil {
			if err != badgerhold.ErrNotFound {
				return err
			}
			counter = accountIndex{Currency: currency, Next: 0}
			next = counter.Next
			counter.Next++
			return r.store.TxInsert(tx, currency, counter)
		}

		next = counter.Next
		counter.Next++
		return r.store.TxUpdate(tx, currency, counter)
	}); err != nil {
		return 0, err
	}
	return next, nil
}
