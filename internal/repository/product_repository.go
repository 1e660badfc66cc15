package repository

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/ariefcatur/go-storefront-orders/internal/orders"
	"github.com/ariefcatur/go-storefront-orders/internal/port"
	"github.com/ariefcatur/go-storefront-orders/internal/postgres"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const productColumns = `id, category_id, name, slug, price, stock, created_at, updated_at, deleted_at`

const productSlugKey = "products_slug_key"

type productRepository struct {
	db postgres.DBTX
}

func NewProduct(db postgres.DBTX) port.ProductRepository {
	return &productRepository{db: db}
}

// GetProduct hides soft-deleted products: they can no longer be ordered.
func (r *productRepository) GetProduct(ctx context.Context, productID uuid.UUID) (orders.Product, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = $1 AND deleted_at IS NULL`, productID)

	p, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return p, orders.ProductNotFound(productID)
		}
		return p, fmt.Errorf("scanProduct: %w", err)
	}

	return p, nil
}

func (r *productRepository) ListProducts(ctx context.Context) ([]orders.Product, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+productColumns+` FROM products WHERE deleted_at IS NULL ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("db.Query: %w", err)
	}
	defer rows.Close()

	var out []orders.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scanProduct: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *productRepository) InsertProduct(ctx context.Context, p orders.Product) (orders.Product, error) {
	if strings.TrimSpace(p.Name) == "" {
		return p, &orders.ValidationError{Field: "name", Reason: "is required"}
	}
	if p.Price.IsNegative() {
		return p, &orders.ValidationError{Field: "price", Reason: "must not be negative"}
	}
	if p.Stock < 0 {
		return p, &orders.ValidationError{Field: "stock", Reason: "must not be negative"}
	}
	p.Slug = Slugify(p.Slug)
	if p.Slug == "" {
		p.Slug = Slugify(p.Name)
	}
	if p.Slug == "" {
		return p, &orders.ValidationError{Field: "slug", Reason: "must contain letters or digits"}
	}

	row := r.db.QueryRow(ctx, `
		INSERT INTO products (category_id, name, slug, price, stock)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+productColumns,
		p.CategoryID, p.Name, p.Slug, p.Price.Round(2), p.Stock)

	inserted, err := scanProduct(row)
	if err != nil {
		switch {
		case postgres.IsUniqueViolation(err, productSlugKey):
			return p, &orders.ValidationError{Field: "slug", Reason: "has already been taken"}
		case postgres.IsForeignKeyViolation(err):
			return p, &orders.ValidationError{Field: "category_id", Reason: "does not exist"}
		}
		return p, fmt.Errorf("scanProduct: %w", err)
	}
	return inserted, nil
}

func (r *productRepository) SoftDeleteProduct(ctx context.Context, productID uuid.UUID) error {
	if productID == uuid.Nil {
		return fmt.Errorf("productID is empty")
	}

	cmdTag, err := r.db.Exec(ctx,
		`UPDATE products SET deleted_at = now(), updated_at = now() WHERE id = $1 AND deleted_at IS NULL`, productID)
	if err != nil {
		return fmt.Errorf("db.Exec: %w", err)
	}

	if cmdTag.RowsAffected() == 0 {
		return orders.ProductNotFound(productID)
	}

	return nil
}

func scanProduct(row pgx.Row) (orders.Product, error) {
	var p orders.Product
	err := row.Scan(&p.ID, &p.CategoryID, &p.Name, &p.Slug, &p.Price, &p.Stock, &p.CreatedAt, &p.UpdatedAt, &p.DeletedAt)
	return p, err
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

func Slugify(name string) string {
	s := nonSlug.ReplaceAllString(strings.ToLower(name), "-")
	return strings.Trim(s, "-")
}
