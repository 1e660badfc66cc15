package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Product struct {
	ID         uuid.UUID
	CategoryID *uuid.UUID
	Name       string
	Slug       string
	Price      decimal.Decimal
	Stock      int
	CreatedAt  time.Time
	UpdatedAt  time.Time
	DeletedAt  *time.Time
}

type Order struct {
	ID              uuid.UUID
	UserID          string
	Status          Status // see status.go
	ShippingAddress string
	Phone           string
	Notes           *string
	Total           decimal.Decimal
	IdempotencyKey  *string
	Items           []OrderItem

	CreatedAt time.Time
	UpdatedAt time.Time
}

// OrderItem is immutable once written. Price and ProductName are frozen at
// order time and survive later catalog changes.
type OrderItem struct {
	ID          uuid.UUID
	OrderID     uuid.UUID
	ProductID   uuid.UUID
	ProductName string
	Quantity    int
	Price       decimal.Decimal

	CreatedAt time.Time
}

// ItemInput is one requested cart line.
type ItemInput struct {
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int       `json:"quantity"`
}

// OrderFilter narrows admin order listings. Zero value lists everything.
type OrderFilter struct {
	Statuses []Status
	UserID   string
	Oldest   bool
	Limit    int
}
