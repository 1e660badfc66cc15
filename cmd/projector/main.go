package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/ariefcatur/go-storefront-orders/internal/config"
	kafkax "github.com/ariefcatur/go-storefront-orders/internal/kafka"
	"github.com/ariefcatur/go-storefront-orders/internal/logging"
	"github.com/ariefcatur/go-storefront-orders/internal/orders"
	"github.com/ariefcatur/go-storefront-orders/internal/projection"
	"github.com/ariefcatur/go-storefront-orders/internal/redisx"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	service := cfg.ServiceName + "-projector"
	log := logging.New(service, cfg.LogLevel)

	if !cfg.KafkaEnabled() || !cfg.RedisEnabled() {
		log.Error("projector needs KAFKA_BROKERS and REDIS_ADDR")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Redis
	rdb, err := redisx.Connect(ctx, cfg.RedisAddr)
	if err != nil {
		log.Error("redis connect", "error", err)
		os.Exit(1)
	}
	defer rdb.Close()

	svc := &projection.Service{
		Cache: redisx.NewStatusCache(rdb),
		Dedup: redisx.NewDeduper(rdb, service),
		Log:   log,
	}

	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.ProjectorGroup, orders.Topics, cfg.ProjectorWorkers, log)

	log.Info("projector started", "group", cfg.ProjectorGroup, "topics", orders.Topics, "workers", cfg.ProjectorWorkers)
	if err := cons.Start(ctx, svc.HandleMessage); err != nil {
		log.Error("consumer exit", "error", err)
		os.Exit(1)
	}
	log.Info("projector stopped")
}
