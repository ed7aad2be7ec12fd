package domain

import "context"

// OrderRepository is the abstraction for any kind of database intended to
// persist the server-side order table. The table is append-only: orders are
// mutated by UpdateOrder but never deleted.
type OrderRepository interface {
	// AddOrder persists a newly registered order.
	AddOrder(ctx context.Context, order *Order) error
	// GetOrder returns the order with the given id, or ErrOrderNotFound.
	GetOrder(ctx context.Context, id string) (*Order, error)
	// GetOpenOrders returns all orders with status Open.
	GetOpenOrders(ctx context.Context) ([]Order, error)
	// GetMatchedOrder returns the matched order with the given id whose party
	// on the given side is masterKeyID, or ErrOrderNotFound.
	GetMatchedOrder(
		ctx context.Context, id string, side Side, masterKeyID string,
	) (*Order, error)
	// UpdateOrder commits changes to an order in a transactional way.
	UpdateOrder(
		ctx context.Context, id string,
		updateFn func(o *Order) (*Order, error),
	) error
}
