package orders

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Dashboard is the admin back office summary. Read-only.
type Dashboard struct {
	TotalProducts    int             `json:"total_products"`
	TotalOrders      int             `json:"total_orders"`
	TotalCustomers   int             `json:"total_customers"`
	TotalRevenue     decimal.Decimal `json:"total_revenue"`
	OrdersByStatus   map[Status]int  `json:"orders_by_status"`
	LowStockProducts int             `json:"low_stock_products"`
	TopProducts      []TopProduct    `json:"top_products"`
}

type TopProduct struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	TotalSold int       `json:"total_sold"`
	Stock     int       `json:"stock"`
}
