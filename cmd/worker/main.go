// Command worker runs the aidocwriter stage-orchestrator pipeline: one
// poll loop per named queue, dispatching claimed messages to the
// registered stages.Handler (spec.md §5 "a fixed set of worker processes,
// one per queue").
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/azure-way/aidocwriter/internal/agents"
	"github.com/azure-way/aidocwriter/internal/config"
	"github.com/azure-way/aidocwriter/internal/diagram"
	"github.com/azure-way/aidocwriter/internal/logger"
	"github.com/azure-way/aidocwriter/internal/messaging"
	"github.com/azure-way/aidocwriter/internal/queue"
	"github.com/azure-way/aidocwriter/internal/stages"
	"github.com/azure-way/aidocwriter/internal/status"
	"github.com/azure-way/aidocwriter/internal/store"
	"github.com/azure-way/aidocwriter/internal/telemetry"
	"github.com/azure-way/aidocwriter/internal/worker"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "worker: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry := telemetry.Init(ctx, log, telemetry.Config{ServiceName: "aidocwriter-worker"})
	defer shutdownTelemetry(context.Background())

	db, err := openDB(cfg)
	if err != nil {
		return fmt.Errorf("init database: %w", err)
	}

	broker := queue.NewPGBroker(db)
	if err := broker.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate queue: %w", err)
	}

	statusTable := status.NewPGTable(db)
	if err := statusTable.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate status: %w", err)
	}

	objectStore, err := openStore(ctx, log, cfg)
	if err != nil {
		return fmt.Errorf("init object store: %w", err)
	}

	messageFacade, err := messaging.NewRedisFacade(log, os.Getenv("REDIS_ADDR"), cfg.StatusTopics)
	if err != nil {
		log.Warn("redis status fan-out disabled, falling back to nop facade", "error", err)
		messageFacade = nil
	}
	var facade messaging.Facade = messaging.NopFacade{}
	if messageFacade != nil {
		facade = messageFacade
	}

	agentClient, err := agents.NewHTTPClient(log)
	if err != nil {
		return fmt.Errorf("init agent client: %w", err)
	}

	deps := &stages.Deps{
		Log:      log,
		Store:    objectStore,
		Status:   statusTable,
		Messages: facade,
		Agents:   agentClient,
		Cfg:      cfg,
	}

	renderer := diagram.NewHTTPRenderer(os.Getenv("PLANTUML_SERVER_URL"), cfg.RendererTimeout)

	registry := stages.NewRegistry()
	handlers := []stages.Handler{
		&stages.PlanIntake{Deps: deps},
		&stages.IntakeResume{Deps: deps},
		&stages.PlanStage{Deps: deps},
		&stages.Write{Deps: deps},
		&stages.Review{Deps: deps, Agent: "general"},
		&stages.Review{Deps: deps, Agent: "style"},
		&stages.Review{Deps: deps, Agent: "cohesion"},
		&stages.Review{Deps: deps, Agent: "summary", IsSummary: true},
		&stages.Verify{Deps: deps},
		&stages.Rewrite{Deps: deps},
		&stages.DiagramPrep{Deps: deps},
		&stages.DiagramRender{Deps: deps, Renderer: renderer},
		&stages.Finalize{Deps: deps},
	}
	for _, h := range handlers {
		if err := registry.Register(h); err != nil {
			return fmt.Errorf("register handler %T: %w", h, err)
		}
	}

	pool := worker.NewPool(log, broker, registry, cfg.HandlerPoolSize)
	pool.Start(ctx)

	log.Info("worker started", "queues", registry.Queues())
	<-ctx.Done()
	log.Info("worker shutting down")
	return nil
}

func openDB(cfg config.Config) (*gorm.DB, error) {
	dsn := cfg.QueueConnString
	if dsn == "" {
		return nil, fmt.Errorf("QUEUE_CONN_STRING is required")
	}
	return gorm.Open(postgres.Open(dsn), &gorm.Config{})
}

func openStore(ctx context.Context, log *logger.Logger, cfg config.Config) (store.ObjectStore, error) {
	if cfg.BlobConnString == "" {
		log.Warn("BLOB_CONN_STRING unset, using in-memory object store")
		return store.NewMemStore(), nil
	}
	return store.NewGCSStore(ctx, log, cfg.BlobContainer)
}
