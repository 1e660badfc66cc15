package port

import (
	"context"

	"github.com/ariefcatur/go-storefront-orders/internal/orders"
	"github.com/google/uuid"
)

type OrderRepository interface {
	// InsertOrder stores the order and its items and returns them with
	// generated ids and timestamps.
	InsertOrder(ctx context.Context, order orders.Order) (orders.Order, error)

	GetOrder(ctx context.Context, orderID uuid.UUID) (orders.Order, error)
	// LockOrder is GetOrder with a row lock held until the transaction ends.
	LockOrder(ctx context.Context, orderID uuid.UUID) (orders.Order, error)
	FindByIdempotencyKey(ctx context.Context, userID, key string) (orders.Order, error)

	ListOrdersForUser(ctx context.Context, userID string) ([]orders.Order, error)
	SearchOrders(ctx context.Context, filter orders.OrderFilter) ([]orders.Order, error)

	UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, status orders.Status) error
}
