package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"time"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"github.com/Apurer/go-order-admin/internal/app/api"
	platformobservability "github.com/Apurer/go-order-admin/internal/platform/observability"
	platformpostgres "github.com/Apurer/go-order-admin/internal/platform/postgres"
	platformtemporal "github.com/Apurer/go-order-admin/internal/platform/temporal"
	orderactivities "github.com/Apurer/go-order-admin/internal/platform/temporal/activities/orders"
	orderworkflows "github.com/Apurer/go-order-admin/internal/platform/temporal/workflows/orders"
)

func main() {
	ctx := context.Background()
	const serviceName = "order-admin-worker"
	cfg, err := api.LoadConfig()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	instruments, shutdown, err := platformobservability.Init(ctx, serviceName)
	if err != nil {
		log.Fatalf("failed to initialize observability: %v", err)
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
	if db == nil {
		logger.Warn("worker restocks an in-memory inventory, stock changes are not visible to the API")
	}
	_, inventory, err := api.BuildStores(db, logger)
	if err != nil {
		logger.Error("failed to prepare inventory", slog.String("error", err.Error()))
		os.Exit(1)
	}
	restockActivities := orderactivities.NewActivities(inventory)

	temporalClient, err := platformtemporal.Dial(
		platformtemporal.ClientConfig{Address: cfg.TemporalAddress, Namespace: cfg.TemporalNamespace},
		instruments.Tracer("temporal-worker"),
		logger,
	)
	if err != nil {
		logger.Error("failed to create Temporal client", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer temporalClient.Close()

	w := worker.New(temporalClient, orderworkflows.RestockTaskQueue, worker.Options{})
	w.RegisterWorkflowWithOptions(orderworkflows.RestockWorkflow, workflow.RegisterOptions{Name: orderworkflows.RestockWorkflowName})
	w.RegisterActivityWithOptions(restockActivities.RestockItem, activity.RegisterOptions{Name: orderactivities.RestockItemActivityName})

	logger.Info("worker listening", slog.String("taskQueue", orderworkflows.RestockTaskQueue), slog.String("namespace", cfg.TemporalNamespace))
	if err := w.Run(worker.InterruptCh()); err != nil {
		logger.Error("Temporal worker exited with error", slog.String("error", err.Error()))
		return
	}
	logger.Info("Temporal worker stopped")
}
