package orders

import (
	"github.com/shopspring/decimal"
)

// Line is the frozen price of one cart line.
type Line struct {
	Product   Product
	Quantity  int
	UnitPrice decimal.Decimal
	Subtotal  decimal.Decimal
}

// SnapshotLine captures the product's current price for qty units.
func SnapshotLine(p Product, qty int) Line {
	return Line{
		Product:   p,
		Quantity:  qty,
		UnitPrice: p.Price,
		Subtotal:  p.Price.Mul(decimal.NewFromInt(int64(qty))),
	}
}

func Total(lines []Line) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Subtotal)
	}
	return total
}

func ItemSubtotal(it OrderItem) decimal.Decimal {
	return it.Price.Mul(decimal.NewFromInt(int64(it.Quantity)))
}

// ItemsTotal recomputes an order total from stored line items.
func ItemsTotal(items []OrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(ItemSubtotal(it))
	}
	return total
}

func TotalItems(items []OrderItem) int {
	n := 0
	for _, it := range items {
		n += it.Quantity
	}
	return n
}
