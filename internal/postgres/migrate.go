package postgres

import (
	"context"
	_ "embed"
	"fmt"
)

//go:embed schema.sql
var schema string

// Migrate applies the idempotent schema. Without arguments pgx sends it over
// the simple protocol, so the multi-statement script runs in one round trip.
func Migrate(ctx context.Context, db DBTX) error {
	if _, err := db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("db.Exec[schema]: %w", err)
	}
	return nil
}
