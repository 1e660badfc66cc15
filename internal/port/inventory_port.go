package port

import (
	"context"

	"github.com/google/uuid"
)

// InventoryLedger is the only writer of product stock.
type InventoryLedger interface {
	// Reserve decrements stock by qty, or fails with
	// *orders.InsufficientStockError without changing anything.
	Reserve(ctx context.Context, productID uuid.UUID, qty int) error
	// Release increments stock by qty.
	Release(ctx context.Context, productID uuid.UUID, qty int) error
}
