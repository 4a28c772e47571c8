package engine

import (
	"context"
	"errors"
	"log"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"callbridge-backend/internal/metadata"
	"callbridge-backend/internal/queue"
	"callbridge-backend/internal/store"
)

// AdminHandler exposes the operational surface: sync event inspection and
// replay, webhook URL management, mapping suggestions, registry reload.
type AdminHandler struct {
	st            *store.Store
	registry      *metadata.Registry
	syncEvents    SyncEventStore
	webhookEvents *WebhookEventStore
	processor     *SyncProcessor
	syncPool      *queue.Pool
	urls          *URLConfig
}

func NewAdminHandler(st *store.Store, registry *metadata.Registry, syncEvents SyncEventStore, webhookEvents *WebhookEventStore, processor *SyncProcessor, syncPool *queue.Pool, urls *URLConfig) *AdminHandler {
	return &AdminHandler{
		st:            st,
		registry:      registry,
		syncEvents:    syncEvents,
		webhookEvents: webhookEvents,
		processor:     processor,
		syncPool:      syncPool,
		urls:          urls,
	}
}

// RegisterAdminRoutes mounts the admin endpoints.
func (h *AdminHandler) RegisterAdminRoutes(app *fiber.App) {
	admin := app.Group("/admin")
	admin.Get("/sync-events", h.listSyncEvents)
	admin.Post("/sync-events/:id/retry", h.retrySyncEvent)
	admin.Get("/webhook-events", h.listWebhookEvents)
	admin.Get("/webhook-base-url", h.getWebhookBaseURL)
	admin.Put("/webhook-base-url", h.setWebhookBaseURL)
	admin.Get("/integrations/:id/webhook-url", h.getIntegrationWebhookURL)
	admin.Post("/mappings/suggest", h.suggestMappings)
	admin.Post("/reload", h.reload)
}

func (h *AdminHandler) listSyncEvents(c *fiber.Ctx) error {
	status := c.Query("status")
	switch status {
	case "", StatusPending, StatusProcessing, StatusCompleted, StatusFailed, StatusRetrying:
	default:
		return NewAppError("BAD_REQUEST", fiber.StatusBadRequest, "unknown status filter")
	}

	limit, _ := strconv.Atoi(c.Query("limit", "50"))
	events, err := h.syncEvents.ListByStatus(c.Context(), status, limit)
	if err != nil {
		log.Printf("ERROR: list sync events: %v", err)
		return NewAppError("INTERNAL", fiber.StatusInternalServerError, "failed to list sync events")
	}
	return c.JSON(fiber.Map{"sync_events": events, "count": len(events)})
}

// retrySyncEvent requeues a terminally failed event and runs it on the sync
// pool.
func (h *AdminHandler) retrySyncEvent(c *fiber.Ctx) error {
	id := c.Params("id")
	ev, err := h.processor.Requeue(c.Context(), id)
	if err != nil {
		var appErr *AppError
		if errors.As(err, &appErr) {
			return appErr
		}
		if errors.Is(err, store.ErrNotFound) {
			return NewAppError("NOT_FOUND", fiber.StatusNotFound, "sync event not found")
		}
		log.Printf("ERROR: requeue sync event %s: %v", id, err)
		return NewAppError("INTERNAL", fiber.StatusInternalServerError, "failed to requeue sync event")
	}

	h.syncPool.Submit(queue.Task{
		Key: id,
		Run: func(ctx context.Context) { h.processor.Process(ctx, id) },
	})
	return c.JSON(fiber.Map{"success": true, "sync_event": ev})
}

func (h *AdminHandler) listWebhookEvents(c *fiber.Ctx) error {
	limit, _ := strconv.Atoi(c.Query("limit", "50"))
	events, err := h.webhookEvents.ListRecent(c.Context(), c.Query("integration_id"), limit)
	if err != nil {
		log.Printf("ERROR: list webhook events: %v", err)
		return NewAppError("INTERNAL", fiber.StatusInternalServerError, "failed to list webhook events")
	}
	return c.JSON(fiber.Map{"webhook_events": events, "count": len(events)})
}

func (h *AdminHandler) getWebhookBaseURL(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"base_url": h.urls.Base()})
}

func (h *AdminHandler) setWebhookBaseURL(c *fiber.Ctx) error {
	var body struct {
		BaseURL string `json:"base_url"`
	}
	if err := c.BodyParser(&body); err != nil || body.BaseURL == "" {
		return NewAppError("BAD_REQUEST", fiber.StatusBadRequest, "base_url is required")
	}
	effective := h.urls.SetBase(body.BaseURL)
	log.Printf("Webhook base URL set to %s", effective)
	return c.JSON(fiber.Map{"base_url": effective})
}

func (h *AdminHandler) getIntegrationWebhookURL(c *fiber.Ctx) error {
	integ := h.registry.Get(c.Params("id"))
	if integ == nil {
		return NewAppError("NOT_FOUND", fiber.StatusNotFound, "integration not found")
	}
	return c.JSON(fiber.Map{
		"integration_id": integ.ID,
		"webhook_url":    h.urls.WebhookURL(integ.Provider, integ.ID),
	})
}

// suggestMappings proposes mapping rules for a list of source field names,
// using the integration's CRM schema when one is given.
func (h *AdminHandler) suggestMappings(c *fiber.Ctx) error {
	var body struct {
		IntegrationID string   `json:"integration_id"`
		SourceFields  []string `json:"source_fields"`
	}
	if err := c.BodyParser(&body); err != nil || len(body.SourceFields) == 0 {
		return NewAppError("BAD_REQUEST", fiber.StatusBadRequest, "source_fields is required")
	}

	var schema *metadata.CRMSchema
	if body.IntegrationID != "" {
		if integ := h.registry.Get(body.IntegrationID); integ != nil {
			schema = integ.Schema
		}
	}

	suggestions := SuggestFieldMappings(body.SourceFields, schema)
	return c.JSON(fiber.Map{"suggestions": suggestions, "count": len(suggestions)})
}

// reload re-reads all integrations from the database into the registry.
func (h *AdminHandler) reload(c *fiber.Ctx) error {
	if err := metadata.Reload(c.Context(), h.st.DB, h.registry); err != nil {
		log.Printf("ERROR: reload integrations: %v", err)
		return NewAppError("INTERNAL", fiber.StatusInternalServerError, "failed to reload integrations")
	}
	return c.JSON(fiber.Map{"success": true, "integrations": len(h.registry.All())})
}
