package badgerdb

import (
	"context"

	"github.com/dgraph-io/badger/v4"
	"github.com/timshannon/badgerhold/v4"

	"github.com/crosswap-network/crosswap-daemon/internal/core/domain"
)

type orderRepository struct {
	store *badgerhold.Store
}

func NewOrderRepository(store *badgerhold.Store) domain.OrderRepository {
	return &orderRepository{store}
}

func (r *orderRepository) AddOrder(
	ctx context.Context, order *domain.Order,
) error {
	return r.store.Insert(order.ID, *order)
}

func (r *orderRepository) GetOrder(
	ctx context.Context, id string,
) (*domain.Order, error) {
	var order domain.Order
	if err := r.store.Get(id, &order); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, domain.ErrOrderNotFound
		}
		return nil, err
	}
	return &order, nil
}

func (r *orderRepository) GetOpenOrders(
	ctx context.Context,
) ([]domain.Order, error) {
	query := badgerhold.Where("Status").Eq(domain.OrderStatusOpen)

	var orders []domain.Order
	if err := r.store.Find(&orders, query); err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *orderRepository) GetMatchedOrder(
	ctx context.Context, id string, side domain.Side, masterKeyID string,
) (*domain.Order, error) {
	order, err := r.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if !order.IsMatched() || !order.BelongsTo(side, masterKeyID) {
		return nil, domain.ErrOrderNotFound
	}
	return order, nil
}

// UpdateOrder reads, mutates and rewrites the order within a single badger
// transaction.
func (r *orderRepository) UpdateOrder(
	ctx context.Context, id string,
	updateFn func(o *domain.Order) (*domain.Order, error),
) error {
	return r.store.Badger().Update(func(tx *badger.Txn) error {
		var order domain.Order
		if err := r.store.TxGet(tx, id, &order); err != nil {
			if err == badgerhold.ErrNotFound {
				return domain.ErrOrderNotFound
			}
			return err
		}

		updatedOrder, err := updateFn(&order)
		if err != nil {
			return err
		}
		return r.store.TxUpdate(tx, id, *updatedOrder)
	})
}
