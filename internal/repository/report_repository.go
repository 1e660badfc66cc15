package repository

import (
	"context"
	"fmt"

	"github.com/ariefcatur/go-storefront-orders/internal/orders"
	"github.com/ariefcatur/go-storefront-orders/internal/port"
	"github.com/ariefcatur/go-storefront-orders/internal/postgres"
)

const topProductsLimit = 5

type reportRepository struct {
	db postgres.DBTX
}

func NewReport(db postgres.DBTX) port.ReportRepository {
	return &reportRepository{db: db}
}

func (r *reportRepository) Dashboard(ctx context.Context, lowStockThreshold int) (orders.Dashboard, error) {
	d := orders.Dashboard{OrdersByStatus: make(map[orders.Status]int)}
	for _, s := range orders.Statuses() {
		d.OrdersByStatus[s] = 0
	}

	err := r.db.QueryRow(ctx, `
		SELECT
			(SELECT count(*) FROM products WHERE deleted_at IS NULL),
			(SELECT count(*) FROM orders),
			(SELECT count(DISTINCT user_id) FROM orders),
			(SELECT coalesce(sum(total), 0) FROM orders WHERE status = 'completed'),
			(SELECT count(*) FROM products WHERE deleted_at IS NULL AND stock < $1)`,
		lowStockThreshold).
		Scan(&d.TotalProducts, &d.TotalOrders, &d.TotalCustomers, &d.TotalRevenue, &d.LowStockProducts)
	if err != nil {
		return d, fmt.Errorf("q.DashboardTotals: %w", err)
	}

	if err := r.ordersByStatus(ctx, &d); err != nil {
		return d, err
	}

	if err := r.topProducts(ctx, &d); err != nil {
		return d, err
	}

	return d, nil
}

func (r *reportRepository) ordersByStatus(ctx context.Context, d *orders.Dashboard) error {
	rows, err := r.db.Query(ctx, `SELECT status, count(*) FROM orders GROUP BY status`)
	if err != nil {
		return fmt.Errorf("q.OrdersByStatus: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return fmt.Errorf("rows.Scan: %w", err)
		}
		d.OrdersByStatus[orders.Status(status)] = n
	}
	return rows.Err()
}

func (r *reportRepository) topProducts(ctx context.Context, d *orders.Dashboard) error {
	rows, err := r.db.Query(ctx, `
		SELECT p.id, p.name, coalesce(sum(oi.quantity), 0)::int AS total_sold, p.stock
		FROM products p
		LEFT JOIN order_items oi ON oi.product_id = p.id
		WHERE p.deleted_at IS NULL
		GROUP BY p.id
		ORDER BY total_sold DESC, p.name
		LIMIT $1`, topProductsLimit)
	if err != nil {
		return fmt.Errorf("q.TopProducts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var tp orders.TopProduct
		if err := rows.Scan(&tp.ID, &tp.Name, &tp.TotalSold, &tp.Stock); err != nil {
			return fmt.Errorf("rows.Scan: %w", err)
		}
		d.TopProducts = append(d.TopProducts, tp)
	}
	return rows.Err()
}
