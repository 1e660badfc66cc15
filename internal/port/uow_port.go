package port

import (
	"context"
)

// TxRepositories are bound to one open transaction.
type TxRepositories struct {
	Catalog Catalog
	Ledger  InventoryLedger
	Orders  OrderRepository
}

type UnitOfWork interface {
	// WithinTx commits when fn returns nil and rolls back otherwise.
	WithinTx(ctx context.Context, fn func(ctx context.Context, repos TxRepositories) error) error

	// Orders reads outside any transaction.
	Orders() OrderRepository
}
