package orders

import (
	"encoding/json"
	"time"
)

const (
	EventOrderCreated       = "OrderCreated"
	EventOrderCancelled     = "OrderCancelled"
	EventOrderStatusChanged = "OrderStatusChanged"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order id
	Payload       json.RawMessage `json:"payload"`
}

type ItemQty struct {
	ProductID string `json:"product_id"`
	Qty       int    `json:"qty"`
}

type ItemPrice struct {
	ProductID string `json:"product_id"`
	Qty       int    `json:"qty"`
	Price     string `json:"price"`
}

type OrderCreatedPayload struct {
	OrderID string      `json:"order_id"`
	UserID  string      `json:"user_id"`
	Status  Status      `json:"status"`
	Items   []ItemPrice `json:"items"`
	Total   string      `json:"total"`
	// UpdatedAt is the order row's updated_at after the write.
	UpdatedAt time.Time `json:"updated_at"`
}

type OrderCancelledPayload struct {
	OrderID   string    `json:"order_id"`
	UserID    string    `json:"user_id"`
	Released  []ItemQty `json:"released"`
	UpdatedAt time.Time `json:"updated_at"`
}

type OrderStatusChangedPayload struct {
	OrderID   string    `json:"order_id"`
	UserID    string    `json:"user_id"`
	From      Status    `json:"from"`
	To        Status    `json:"to"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StatusSnapshot is what the status cache stores per order.
type StatusSnapshot struct {
	OrderID   string    `json:"order_id"`
	UserID    string    `json:"user_id"`
	Status    Status    `json:"status"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SnapshotOf extracts the status an event leaves its order in. ok is false
// for event types that do not carry a status.
//
// The snapshot is versioned by the order row's updated_at, the same clock the
// API uses when it caches an order, so cache writes from both sides compare.
// OccurredAt is only a fallback for payloads without updated_at.
func SnapshotOf(env Envelope) (snap StatusSnapshot, ok bool, err error) {
	var updatedAt time.Time

	switch env.EventType {
	case EventOrderCreated:
		var p OrderCreatedPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return snap, false, err
		}
		snap.OrderID, snap.UserID, snap.Status = p.OrderID, p.UserID, p.Status
		updatedAt = p.UpdatedAt
	case EventOrderCancelled:
		var p OrderCancelledPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return snap, false, err
		}
		snap.OrderID, snap.UserID, snap.Status = p.OrderID, p.UserID, StatusCancelled
		updatedAt = p.UpdatedAt
	case EventOrderStatusChanged:
		var p OrderStatusChangedPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return snap, false, err
		}
		snap.OrderID, snap.UserID, snap.Status = p.OrderID, p.UserID, p.To
		updatedAt = p.UpdatedAt
	default:
		return snap, false, nil
	}

	snap.UpdatedAt = updatedAt
	if snap.UpdatedAt.IsZero() {
		snap.UpdatedAt = env.OccurredAt
	}
	return snap, true, nil
}

func SnapshotFromOrder(o Order) StatusSnapshot {
	return StatusSnapshot{OrderID: o.ID.String(), UserID: o.UserID, Status: o.Status, UpdatedAt: o.UpdatedAt}
}

func CreatedPayload(o Order) OrderCreatedPayload {
	items := make([]ItemPrice, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, ItemPrice{ProductID: it.ProductID.String(), Qty: it.Quantity, Price: it.Price.StringFixed(2)})
	}
	return OrderCreatedPayload{
		OrderID:   o.ID.String(),
		UserID:    o.UserID,
		Status:    o.Status,
		Items:     items,
		Total:     o.Total.StringFixed(2),
		UpdatedAt: o.UpdatedAt,
	}
}

func CancelledPayload(o Order) OrderCancelledPayload {
	released := make([]ItemQty, 0, len(o.Items))
	for _, it := range o.Items {
		released = append(released, ItemQty{ProductID: it.ProductID.String(), Qty: it.Quantity})
	}
	return OrderCancelledPayload{OrderID: o.ID.String(), UserID: o.UserID, Released: released, UpdatedAt: o.UpdatedAt}
}
