package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	ordersevents "github.com/Apurer/go-order-admin/internal/domains/orders/adapters/events"
	ordershttp "github.com/Apurer/go-order-admin/internal/domains/orders/adapters/http"
	ordersmemory "github.com/Apurer/go-order-admin/internal/domains/orders/adapters/memory"
	ordersobs "github.com/Apurer/go-order-admin/internal/domains/orders/adapters/observability"
	orderspostgres "github.com/Apurer/go-order-admin/internal/domains/orders/adapters/persistence/postgres"
	ordersworkflows "github.com/Apurer/go-order-admin/internal/domains/orders/adapters/workflows"
	ordersapp "github.com/Apurer/go-order-admin/internal/domains/orders/application"
	ordersports "github.com/Apurer/go-order-admin/internal/domains/orders/ports"
	platformaws "github.com/Apurer/go-order-admin/internal/platform/aws"
	"github.com/Apurer/go-order-admin/internal/platform/migrations"
	platformobservability "github.com/Apurer/go-order-admin/internal/platform/observability"
	platformpostgres "github.com/Apurer/go-order-admin/internal/platform/postgres"
	platformtemporal "github.com/Apurer/go-order-admin/internal/platform/temporal"
)

const serviceName = "order-admin-api"

// Run boots the order administration HTTP API and serves until ctx is cancelled.
func Run(ctx context.Context) error {
	cfg, err := LoadConfig()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	instruments, shutdown, err := platformobservability.Init(ctx, serviceName)
	if err != nil {
		return fmt.Errorf("failed to initialize observability: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			instruments.Logger.Error("failed to shutdown observability", slog.String("error", err.Error()))
		}
	}()
	logger := instruments.Logger

	db, cleanupDB := platformpostgres.Open(ctx, cfg.PostgresDSN, logger)
	defer cleanupDB()
	store, inventory, err := BuildStores(db, logger)
	if err != nil {
		return err
	}

	compensator, closeCompensator := buildCompensator(cfg, instruments, inventory, db != nil)
	defer closeCompensator()

	sink, flushEvents := buildEventSink(ctx, cfg, logger)
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := flushEvents(flushCtx); err != nil {
			logger.Warn("order events not flushed", slog.String("error", err.Error()))
		}
	}()

	core := ordersapp.NewService(
		store,
		compensator,
		ordersapp.WithEventSink(sink),
		ordersapp.WithLogger(logger),
		ordersapp.WithLocation(cfg.ReportingLocation),
	)
	service := ordersobs.New(
		core,
		ordersobs.WithLogger(logger),
		ordersobs.WithTracer(instruments.Tracer("internal.orders.application")),
		ordersobs.WithMeter(instruments.Meter("internal.orders.application")),
	)

	router := gin.New()
	router.Use(gin.Recovery(), otelgin.Middleware(serviceName))
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	ordershttp.NewRouterWithGinEngine(router, ordershttp.NewOrdersAPI(service))

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		logger.Info("order admin API listening", slog.String("addr", server.Addr))
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		logger.Error("order admin API exited", slog.String("addr", server.Addr), slog.String("error", err.Error()))
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	logger.Info("shutting down order admin API")
	return server.Shutdown(shutdownCtx)
}

// BuildStores returns Postgres-backed adapters when db is set and migrations succeed,
// and in-memory adapters otherwise.
func BuildStores(db *gorm.DB, logger *slog.Logger) (ordersports.Store, ordersports.Inventory, error) {
	if db == nil {
		return ordersmemory.NewStore(), ordersmemory.NewInventory(), nil
	}
	if err := migrations.Run(db); err != nil {
		return nil, nil, fmt.Errorf("failed to migrate order schema: %w", err)
	}
	logger.Info("order store configured with postgres")
	return orderspostgres.NewStore(db), orderspostgres.NewInventory(db), nil
}

// buildCompensator prefers the Temporal restock workflow. The worker process restocks its
// own inventory adapter, so workflows are only used when that inventory is shared.
func buildCompensator(cfg Config, instruments *platformobservability.Instruments, inventory ordersports.Inventory, sharedInventory bool) (ordersports.Compensator, func()) {
	logger := instruments.Logger
	inline := ordersworkflows.NewInlineCompensator(inventory, cfg.RestockConcurrency)
	if !sharedInventory {
		logger.Warn("inventory is process local, restocking inline")
		return inline, func() {}
	}
	if cfg.TemporalDisabled {
		logger.Warn("Temporal disabled via TEMPORAL_DISABLED, restocking inline")
		return inline, func() {}
	}
	temporalClient, err := platformtemporal.Dial(
		platformtemporal.ClientConfig{Address: cfg.TemporalAddress, Namespace: cfg.TemporalNamespace},
		instruments.Tracer("temporal-client"),
		logger,
	)
	if err != nil {
		logger.Warn("Temporal workflows unavailable, restocking inline", slog.String("error", err.Error()))
		return inline, func() {}
	}
	logger.Info("Temporal restock workflows enabled", slog.String("namespace", cfg.TemporalNamespace))
	compensator := ordersworkflows.NewTemporalCompensator(temporalClient, ordersworkflows.WithWaitTimeout(cfg.RestockWaitTimeout))
	return compensator, temporalClient.Close
}

func buildEventSink(ctx context.Context, cfg Config, logger *slog.Logger) (ordersports.EventSink, func(context.Context) error) {
	logSink := ordersevents.NewLogSink(logger)
	noFlush := func(context.Context) error { return nil }
	if cfg.EventsQueueURL == "" {
		return logSink, noFlush
	}
	client, err := platformaws.NewSQSClient(ctx, cfg.AWSRegion, cfg.EventsSQSEndpoint)
	if err != nil {
		logger.Warn("SQS unavailable, order events are only logged", slog.String("error", err.Error()))
		return logSink, noFlush
	}
	sqsSink := ordersevents.NewSQSSink(client, cfg.EventsQueueURL, ordersevents.WithSQSLogger(logger))
	logger.Info("order events published to SQS", slog.String("queueURL", cfg.EventsQueueURL))
	return ordersevents.Fanout{logSink, sqsSink}, sqsSink.Flush
}
