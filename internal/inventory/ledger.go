package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/ariefcatur/go-storefront-orders/internal/orders"
	"github.com/ariefcatur/go-storefront-orders/internal/port"
	"github.com/ariefcatur/go-storefront-orders/internal/postgres"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type ledger struct {
	db postgres.DBTX
}

// NewLedger binds the ledger to a pool or, inside a workflow, to the open
// transaction so reservations commit or roll back with the order rows.
func NewLedger(db postgres.DBTX) port.InventoryLedger {
	return &ledger{db: db}
}

// Reserve checks and decrements in a single statement. Row-level locking in
// Postgres serialises concurrent reservations of the same product, so two of
// them can never both pass the floor check against the same stock.
func (l *ledger) Reserve(ctx context.Context, productID uuid.UUID, qty int) error {
	if qty <= 0 {
		return &orders.ValidationError{Field: "quantity", Reason: "must be at least 1"}
	}

	ct, err := l.db.Exec(ctx, `
		UPDATE products
		SET stock = stock - $2, updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL AND stock >= $2`,
		productID, qty)
	if err != nil {
		return fmt.Errorf("db.Exec[reserve]: %w", err)
	}
	if ct.RowsAffected() == 1 {
		return nil
	}

	available, err := l.available(ctx, productID)
	if err != nil {
		return err
	}
	return &orders.InsufficientStockError{ProductID: productID, Requested: qty, Available: available}
}

func (l *ledger) Release(ctx context.Context, productID uuid.UUID, qty int) error {
	if qty <= 0 {
		return &orders.ValidationError{Field: "quantity", Reason: "must be at least 1"}
	}

	// deleted products still take their stock back
	ct, err := l.db.Exec(ctx, `
		UPDATE products
		SET stock = stock + $2, updated_at = now()
		WHERE id = $1`,
		productID, qty)
	if err != nil {
		return fmt.Errorf("db.Exec[release]: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("db.Exec[release]: %w", orders.ProductNotFound(productID))
	}
	return nil
}

func (l *ledger) available(ctx context.Context, productID uuid.UUID) (int, error) {
	var stock int
	err := l.db.QueryRow(ctx,
		`SELECT stock FROM products WHERE id = $1 AND deleted_at IS NULL`, productID).Scan(&stock)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, orders.ProductNotFound(productID)
		}
		return 0, fmt.Errorf("db.QueryRow[stock]: %w", err)
	}
	return stock, nil
}
