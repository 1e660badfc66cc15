// Package testutil starts throwaway Postgres and Redis containers for
// integration suites.
package testutil

import (
	"context"
	"fmt"

	"github.com/ariefcatur/go-storefront-orders/internal/postgres"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

const (
	postgresImage = "postgres:16-alpine"
	redisImage    = "redis:7-alpine"
)

// StartPostgres runs a Postgres container and returns a pool on a migrated
// schema. Callers terminate the container and close the pool.
func StartPostgres(ctx context.Context) (testcontainers.Container, *pgxpool.Pool, error) {
	container, err := tcpostgres.Run(ctx, postgresImage,
		tcpostgres.WithDatabase("storefront"),
		tcpostgres.WithUsername("app"),
		tcpostgres.WithPassword("secret"),
		tcpostgres.BasicWaitStrategies(),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("tcpostgres.Run: %w", err)
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return container, nil, fmt.Errorf("container.ConnectionString: %w", err)
	}

	pool, err := postgres.Connect(ctx, connStr)
	if err != nil {
		return container, nil, fmt.Errorf("postgres.Connect: %w", err)
	}

	if err := postgres.Migrate(ctx, pool); err != nil {
		pool.Close()
		return container, nil, fmt.Errorf("postgres.Migrate: %w", err)
	}

	return container, pool, nil
}

// TruncateAll empties every table between tests.
func TruncateAll(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `TRUNCATE order_items, orders, products, categories RESTART IDENTITY CASCADE`)
	return err
}

func StartRedis(ctx context.Context) (testcontainers.Container, *redis.Client, error) {
	container, err := tcredis.Run(ctx, redisImage)
	if err != nil {
		return nil, nil, fmt.Errorf("tcredis.Run: %w", err)
	}

	uri, err := container.ConnectionString(ctx)
	if err != nil {
		return container, nil, fmt.Errorf("container.ConnectionString: %w", err)
	}

	opts, err := redis.ParseURL(uri)
	if err != nil {
		return container, nil, fmt.Errorf("redis.ParseURL: %w", err)
	}

	return container, redis.NewClient(opts), nil
}
