package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/go-storefront-orders/internal/config"
	"github.com/ariefcatur/go-storefront-orders/internal/httpx"
	kafkax "github.com/ariefcatur/go-storefront-orders/internal/kafka"
	"github.com/ariefcatur/go-storefront-orders/internal/logging"
	"github.com/ariefcatur/go-storefront-orders/internal/metrics"
	"github.com/ariefcatur/go-storefront-orders/internal/postgres"
	"github.com/ariefcatur/go-storefront-orders/internal/redisx"
	"github.com/ariefcatur/go-storefront-orders/internal/repository"
	"github.com/ariefcatur/go-storefront-orders/internal/workflow"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := logging.New(cfg.ServiceName, cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Error("db connect", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if cfg.AutoMigrate {
		if err := postgres.Migrate(ctx, db); err != nil {
			log.Error("migrate", "error", err)
			os.Exit(1)
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	opts := []workflow.Option{
		workflow.WithLogger(log),
		workflow.WithServiceName(cfg.ServiceName),
		workflow.WithMetrics(metrics.NewOrderMetrics(reg)),
	}

	// Redis status cache, optional
	if cfg.RedisEnabled() {
		rdb, err := redisx.Connect(ctx, cfg.RedisAddr)
		if err != nil {
			log.Error("redis connect", "error", err)
			os.Exit(1)
		}
		defer rdb.Close()
		opts = append(opts, workflow.WithStatusCache(redisx.NewStatusCache(rdb)))
	}

	// Kafka producer, optional
	var prod *kafkax.Producer
	if cfg.KafkaEnabled() {
		prod = kafkax.NewProducer(cfg.KafkaBrokers, 1024, log)
		prod.Start()
		opts = append(opts, workflow.WithPublisher(prod))
	}

	engine := workflow.New(repository.NewUnitOfWork(db), opts...)
	products := repository.NewProduct(db)

	router := httpx.NewRouter(httpx.RouterDeps{
		Log:      log,
		Metrics:  metrics.NewServerMetrics(reg, cfg.ServiceName),
		Gatherer: reg,
	})
	(&httpx.OrdersHandler{Orders: engine, Products: products, Log: log}).Register(router)
	(&httpx.AdminHandler{
		Orders:            engine,
		Products:          products,
		Reports:           repository.NewReport(db),
		LowStockThreshold: cfg.LowStockThreshold,
		Log:               log,
	}).Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		log.Info("http listening", "addr", cfg.HTTPAddr, "kafka", cfg.KafkaEnabled(), "redis", cfg.RedisEnabled())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("listen", "error", err)
			cancel()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}
	log.Info("shutting down")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)

	// no request can publish any more; flush what is queued
	if prod != nil {
		prod.Close()
	}
}
