package port

import (
	"context"

	"github.com/ariefcatur/go-storefront-orders/internal/orders"
	"github.com/google/uuid"
)

// Catalog is the read side of the product catalog used by the order workflow.
type Catalog interface {
	GetProduct(ctx context.Context, productID uuid.UUID) (orders.Product, error)
}

type ProductRepository interface {
	Catalog

	ListProducts(ctx context.Context) ([]orders.Product, error)
	InsertProduct(ctx context.Context, product orders.Product) (orders.Product, error)
	SoftDeleteProduct(ctx context.Context, productID uuid.UUID) error
}
