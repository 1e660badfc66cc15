package port

import (
	"context"

	"github.com/ariefcatur/go-storefront-orders/internal/orders"
)

type EventPublisher interface {
	Publish(ctx context.Context, env orders.Envelope) error
}

// StatusCache is a read-through shortcut for order status lookups. The
// database stays the source of truth.
type StatusCache interface {
	SetStatus(ctx context.Context, snap orders.StatusSnapshot) error
	GetStatus(ctx context.Context, orderID string) (orders.StatusSnapshot, bool, error)
}

type ReportRepository interface {
	Dashboard(ctx context.Context, lowStockThreshold int) (orders.Dashboard, error)
}
