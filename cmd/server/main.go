package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"callbridge-backend/internal/config"
	"callbridge-backend/internal/crm"
	"callbridge-backend/internal/engine"
	"callbridge-backend/internal/instrument"
	"callbridge-backend/internal/metadata"
	"callbridge-backend/internal/notify"
	"callbridge-backend/internal/queue"
	"callbridge-backend/internal/store"
)

func main() {
	ctx := context.Background()

	// 1. Configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 2. Database
	st, err := store.New(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer st.Close()
	log.Printf("Connected to %s database", st.Dialect.Name())

	if err := st.Bootstrap(ctx); err != nil {
		log.Fatalf("Failed to bootstrap system tables: %v", err)
	}

	// 3. Integration registry
	registry := metadata.NewRegistry()
	if err := metadata.LoadAll(ctx, st.DB, registry); err != nil {
		log.Fatalf("Failed to load integrations: %v", err)
	}

	// 4. CRM client registry. Provider adapters register here; the memory
	// client backs development and smoke testing.
	clients := crm.NewClientRegistry()
	clients.Register("memory", crm.MemoryFactory())

	// 5. Worker pools
	taskCtx := instrument.WithInstrumenter(context.Background(), &instrument.LogInstrumenter{})
	webhookPool := queue.New("webhook", cfg.Workers.Webhook).WithBaseContext(taskCtx)
	syncPool := queue.New("sync", cfg.Workers.Sync).WithBaseContext(taskCtx)
	notifyPool := queue.New("notify", cfg.Workers.Notify).WithBaseContext(taskCtx)
	webhookPool.Start()
	syncPool.Start()
	notifyPool.Start()
	defer webhookPool.Stop()
	defer syncPool.Stop()
	defer notifyPool.Stop()

	// 6. Pipeline
	syncEvents := engine.NewSQLSyncEventStore(st.DB, st.Dialect)
	webhookEvents := engine.NewWebhookEventStore(st.DB, st.Dialect)
	workflows := engine.NewWorkflowRunner()
	notifier := &notify.Async{
		Next: &notify.LogNotifier{},
		Submit: func(run func(ctx context.Context)) {
			notifyPool.Submit(queue.Task{Run: run})
		},
	}

	processor := engine.NewSyncProcessor(syncEvents, registry, clients, workflows, notifier, cfg.Notify.From, cfg.Retry)
	processor.SetScheduler(func(id string, delay time.Duration) {
		syncPool.SubmitAfter(queue.Task{
			Key: id,
			Run: func(ctx context.Context) { processor.Process(ctx, id) },
		}, delay)
	})

	urls := engine.NewURLConfig(cfg.Webhook.BaseURL)

	// 7. HTTP server
	app := fiber.New(fiber.Config{
		ErrorHandler: errorHandler,
		BodyLimit:    4 * 1024 * 1024,
	})
	app.Use(recover.New())
	app.Use(logger.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "integrations": len(registry.All())})
	})

	webhookHandler := engine.NewWebhookHandler(registry, webhookEvents, processor, webhookPool, syncPool)
	webhookHandler.RegisterWebhookRoutes(app)

	adminHandler := engine.NewAdminHandler(st, registry, syncEvents, webhookEvents, processor, syncPool, urls)
	adminHandler.RegisterAdminRoutes(app)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	log.Printf("Server listening on %s", addr)
	if err := app.Listen(addr); err != nil {
		log.Fatalf("Server stopped: %v", err)
	}
}

// errorHandler converts AppError values into their JSON shape and everything
// else into a generic 500.
func errorHandler(c *fiber.Ctx, err error) error {
	if appErr, ok := err.(*engine.AppError); ok {
		return c.Status(appErr.Status).JSON(engine.ErrorResponse{Error: appErr})
	}
	if fiberErr, ok := err.(*fiber.Error); ok {
		return c.Status(fiberErr.Code).JSON(engine.ErrorResponse{
			Error: engine.NewAppError("HTTP_ERROR", fiberErr.Code, fiberErr.Message),
		})
	}
	log.Printf("ERROR: unhandled: %v", err)
	return c.Status(fiber.StatusInternalServerError).JSON(engine.ErrorResponse{
		Error: engine.NewAppError("INTERNAL", fiber.StatusInternalServerError, "internal server error"),
	})
}
