package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/ariefcatur/go-storefront-orders/internal/orders"
	"github.com/ariefcatur/go-storefront-orders/internal/port"
	"github.com/ariefcatur/go-storefront-orders/internal/postgres"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/samber/lo"
)

const (
	orderColumns = `id, user_id, status, shipping_address, phone, notes, total, idempotency_key, created_at, updated_at`
	itemColumns  = `id, order_id, product_id, product_name, quantity, price, created_at`

	// IdempotencyConstraint is the unique index guarding replayed creates.
	IdempotencyConstraint = "orders_user_idempotency_key"
)

type orderRepository struct {
	db postgres.DBTX
}

func NewOrder(db postgres.DBTX) port.OrderRepository {
	return &orderRepository{db: db}
}

func (r *orderRepository) InsertOrder(ctx context.Context, order orders.Order) (orders.Order, error) {
	if len(order.Items) == 0 {
		return order, errors.New("no items in order")
	}

	return postgres.WithTx(ctx, r.db, func(tx pgx.Tx) (orders.Order, error) {
		row := tx.QueryRow(ctx, `
			INSERT INTO orders (user_id, status, shipping_address, phone, notes, total, idempotency_key)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING `+orderColumns,
			order.UserID, string(order.Status), order.ShippingAddress, order.Phone, order.Notes,
			order.Total, order.IdempotencyKey)

		inserted, err := scanOrder(row)
		if err != nil {
			if postgres.IsUniqueViolation(err, IdempotencyConstraint) {
				return inserted, fmt.Errorf("q.InsertOrder: %w", orders.ErrDuplicateOrder)
			}
			return inserted, fmt.Errorf("q.InsertOrder: %w", err)
		}

		batch := &pgx.Batch{}
		for i, item := range order.Items {
			batch.Queue(`
				INSERT INTO order_items (order_id, product_id, product_name, position, quantity, price)
				VALUES ($1, $2, $3, $4, $5, $6)
				RETURNING `+itemColumns,
				inserted.ID, item.ProductID, item.ProductName, i, item.Quantity, item.Price)
		}

		results := tx.SendBatch(ctx, batch)
		for range order.Items {
			item, err := scanItem(results.QueryRow())
			if err != nil {
				_ = results.Close()
				return inserted, fmt.Errorf("q.InsertOrderItem: %w", err)
			}
			inserted.Items = append(inserted.Items, item)
		}
		if err := results.Close(); err != nil {
			return inserted, fmt.Errorf("results.Close: %w", err)
		}

		return inserted, nil
	})
}

func (r *orderRepository) GetOrder(ctx context.Context, orderID uuid.UUID) (orders.Order, error) {
	return r.getOrder(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, orderID)
}

func (r *orderRepository) LockOrder(ctx context.Context, orderID uuid.UUID) (orders.Order, error) {
	return r.getOrder(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, orderID)
}

func (r *orderRepository) getOrder(ctx context.Context, query string, orderID uuid.UUID) (orders.Order, error) {
	o, err := scanOrder(r.db.QueryRow(ctx, query, orderID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return o, orders.OrderNotFound(orderID)
		}
		return o, fmt.Errorf("q.GetOrder: %w", err)
	}

	items, err := r.itemsByOrder(ctx, []uuid.UUID{o.ID})
	if err != nil {
		return o, fmt.Errorf("r.itemsByOrder: %w", err)
	}
	o.Items = items[o.ID]

	return o, nil
}

func (r *orderRepository) FindByIdempotencyKey(ctx context.Context, userID, key string) (orders.Order, error) {
	var o orders.Order

	row := r.db.QueryRow(ctx,
		`SELECT id FROM orders WHERE user_id = $1 AND idempotency_key = $2`, userID, key)

	var id uuid.UUID
	if err := row.Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return o, &orders.NotFoundError{Resource: "order", ID: key}
		}
		return o, fmt.Errorf("q.FindByIdempotencyKey: %w", err)
	}

	return r.GetOrder(ctx, id)
}

func (r *orderRepository) ListOrdersForUser(ctx context.Context, userID string) ([]orders.Order, error) {
	if userID == "" {
		return nil, errors.New("userID is empty")
	}
	return r.SearchOrders(ctx, orders.OrderFilter{UserID: userID})
}

// SearchOrders has AND semantics across filter fields and OR semantics within
// Statuses. Results are newest first unless filter.Oldest is set.
func (r *orderRepository) SearchOrders(ctx context.Context, filter orders.OrderFilter) ([]orders.Order, error) {
	statuses := lo.Map(filter.Statuses, func(s orders.Status, _ int) string { return string(s) })

	direction := "DESC"
	if filter.Oldest {
		direction = "ASC"
	}

	rows, err := r.db.Query(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE ($1::text[] IS NULL OR status = ANY($1))
		  AND ($2 = '' OR user_id = $2)
		ORDER BY created_at `+direction+`, id `+direction+`
		LIMIT NULLIF($3, 0)`,
		nilSliceIfEmpty(statuses), filter.UserID, filter.Limit)
	if err != nil {
		return nil, fmt.Errorf("q.SearchOrders: %w", err)
	}
	defer rows.Close()

	var out []orders.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scanOrder: %w", err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows.Err: %w", err)
	}

	if len(out) == 0 {
		return out, nil
	}

	items, err := r.itemsByOrder(ctx, lo.Map(out, func(o orders.Order, _ int) uuid.UUID { return o.ID }))
	if err != nil {
		return nil, fmt.Errorf("r.itemsByOrder: %w", err)
	}
	for i := range out {
		out[i].Items = items[out[i].ID]
	}

	return out, nil
}

func (r *orderRepository) UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, status orders.Status) error {
	if orderID == uuid.Nil {
		return fmt.Errorf("orderID is empty")
	}
	if status == "" {
		return fmt.Errorf("status is empty")
	}

	cmdTag, err := r.db.Exec(ctx,
		`UPDATE orders SET status = $2, updated_at = clock_timestamp() WHERE id = $1`, orderID, string(status))
	if err != nil {
		return fmt.Errorf("q.UpdateOrderStatus: %w", err)
	}

	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("q.UpdateOrderStatus: %w", orders.OrderNotFound(orderID))
	}

	return nil
}

func (r *orderRepository) itemsByOrder(ctx context.Context, orderIDs []uuid.UUID) (map[uuid.UUID][]orders.OrderItem, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+itemColumns+`
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY order_id, position`, orderIDs)
	if err != nil {
		return nil, fmt.Errorf("q.GetOrderItems: %w", err)
	}
	defer rows.Close()

	var items []orders.OrderItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scanItem: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows.Err: %w", err)
	}

	return lo.GroupBy(items, func(it orders.OrderItem) uuid.UUID { return it.OrderID }), nil
}

func scanOrder(row pgx.Row) (orders.Order, error) {
	var (
		o      orders.Order
		status string
	)

	err := row.Scan(&o.ID, &o.UserID, &status, &o.ShippingAddress, &o.Phone, &o.Notes, &o.Total,
		&o.IdempotencyKey, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return o, err
	}

	o.Status, err = orders.ParseStatus(status)
	if err != nil {
		return o, fmt.Errorf("orders.ParseStatus[%s]: %w", status, err)
	}

	return o, nil
}

func scanItem(row pgx.Row) (orders.OrderItem, error) {
	var it orders.OrderItem
	err := row.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.ProductName, &it.Quantity, &it.Price, &it.CreatedAt)
	return it, err
}

func nilSliceIfEmpty[T any](s []T) []T {
	if len(s) == 0 {
		return nil
	}
	return s
}
