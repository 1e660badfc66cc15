package orders

import (
	"time"
)

const timeLayout = "2006-01-02 15:04:05"

// OrderView is the serialized shape of an order. Derived fields are
// computed here on read and never stored.
type OrderView struct {
	ID              string     `json:"id"`
	UserID          string     `json:"user_id"`
	Total           string     `json:"total"`
	Status          Status     `json:"status"`
	StatusText      string     `json:"status_text"`
	StatusBadge     string     `json:"status_badge"`
	ShippingAddress string     `json:"shipping_address"`
	Phone           string     `json:"phone"`
	Notes           *string    `json:"notes"`
	ItemsCount      int        `json:"items_count"`
	TotalItems      int        `json:"total_items"`
	Subtotal        string     `json:"subtotal"`
	CreatedAt       string     `json:"created_at"`
	Items           []ItemView `json:"items"`
	Summary         Summary    `json:"summary"`
}

// Summary is the totals block of the order detail. Subtotal is the sum of
// the frozen line subtotals and equals Total while there are no fees.
type Summary struct {
	ItemsCount int    `json:"items_count"`
	TotalItems int    `json:"total_items"`
	Subtotal   string `json:"subtotal"`
	Total      string `json:"total"`
}

type ItemView struct {
	ID          string `json:"id"`
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	Quantity    int    `json:"quantity"`
	Price       string `json:"price"`
	Subtotal    string `json:"subtotal"`
}

func NewOrderView(o Order) OrderView {
	items := make([]ItemView, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, NewItemView(it))
	}

	subtotal := ItemsTotal(o.Items).StringFixed(2)
	total := o.Total.StringFixed(2)

	return OrderView{
		ID:              o.ID.String(),
		UserID:          o.UserID,
		Total:           total,
		Status:          o.Status,
		StatusText:      StatusText(o.Status),
		StatusBadge:     StatusBadge(o.Status),
		ShippingAddress: o.ShippingAddress,
		Phone:           o.Phone,
		Notes:           o.Notes,
		ItemsCount:      len(o.Items),
		TotalItems:      TotalItems(o.Items),
		Subtotal:        subtotal,
		CreatedAt:       formatTime(o.CreatedAt),
		Items:           items,
		Summary: Summary{
			ItemsCount: len(o.Items),
			TotalItems: TotalItems(o.Items),
			Subtotal:   subtotal,
			Total:      total,
		},
	}
}

func NewOrderViews(list []Order) []OrderView {
	out := make([]OrderView, 0, len(list))
	for _, o := range list {
		out = append(out, NewOrderView(o))
	}
	return out
}

func NewItemView(it OrderItem) ItemView {
	return ItemView{
		ID:          it.ID.String(),
		ProductID:   it.ProductID.String(),
		ProductName: it.ProductName,
		Quantity:    it.Quantity,
		Price:       it.Price.StringFixed(2),
		Subtotal:    ItemSubtotal(it).StringFixed(2),
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}
