package repository

import (
	"context"

	"github.com/ariefcatur/go-storefront-orders/internal/inventory"
	"github.com/ariefcatur/go-storefront-orders/internal/port"
	"github.com/ariefcatur/go-storefront-orders/internal/postgres"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type unitOfWork struct {
	pool   *pgxpool.Pool
	orders port.OrderRepository
}

func NewUnitOfWork(pool *pgxpool.Pool) port.UnitOfWork {
	return &unitOfWork{
		pool:   pool,
		orders: NewOrder(pool),
	}
}

func (u *unitOfWork) WithinTx(ctx context.Context, fn func(ctx context.Context, repos port.TxRepositories) error) error {
	_, err := postgres.WithTx(ctx, u.pool, func(tx pgx.Tx) (struct{}, error) {
		return struct{}{}, fn(ctx, port.TxRepositories{
			Catalog: NewProduct(tx),
			Ledger:  inventory.NewLedger(tx),
			Orders:  NewOrder(tx),
		})
	})
	return err
}

func (u *unitOfWork) Orders() port.OrderRepository {
	return u.orders
}
