package engine

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"

	"callbridge-backend/internal/metadata"
	"callbridge-backend/internal/queue"
)

// VerifySignature checks an HMAC hex digest of the raw request body against
// the integration secret. Verification is skipped when either the secret or
// the signature header is empty; providers that sign always send both.
//
// The primary scheme is HMAC-SHA256, accepted with or without the "sha256="
// prefix. A bare hex digest that fails SHA-256 is retried as legacy HMAC-SHA1
// before rejecting.
func VerifySignature(secret string, payload []byte, signature string) error {
	if secret == "" || signature == "" {
		return nil
	}

	sig := strings.TrimPrefix(signature, "sha256=")

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	if hmacMatches(mac.Sum(nil), sig) {
		return nil
	}

	if !strings.HasPrefix(signature, "sha256=") {
		legacy := hmac.New(sha1.New, []byte(secret))
		legacy.Write(payload)
		if hmacMatches(legacy.Sum(nil), sig) {
			return nil
		}
	}

	return &AuthError{Message: "webhook signature mismatch"}
}

func hmacMatches(sum []byte, hexSig string) bool {
	expected, err := hex.DecodeString(hexSig)
	if err != nil {
		return false
	}
	return hmac.Equal(sum, expected)
}

// classifyEvent determines the event type of a generic webhook delivery: an
// explicit header wins, then well-known body fields, then "unknown".
func classifyEvent(headers map[string]string, body map[string]any) string {
	if t := headers["X-Event-Type"]; t != "" {
		return t
	}
	if t := asString(body["event"]); t != "" {
		return t
	}
	if t := asString(body["event_type"]); t != "" {
		return t
	}
	return "unknown"
}

// WebhookHandler is the HTTP intake surface.
type WebhookHandler struct {
	registry      *metadata.Registry
	webhookEvents *WebhookEventStore
	processor     *SyncProcessor
	webhookPool   *queue.Pool
	syncPool      *queue.Pool
}

func NewWebhookHandler(registry *metadata.Registry, webhookEvents *WebhookEventStore, processor *SyncProcessor, webhookPool, syncPool *queue.Pool) *WebhookHandler {
	return &WebhookHandler{
		registry:      registry,
		webhookEvents: webhookEvents,
		processor:     processor,
		webhookPool:   webhookPool,
		syncPool:      syncPool,
	}
}

// RegisterWebhookRoutes mounts the intake endpoints.
func (h *WebhookHandler) RegisterWebhookRoutes(app *fiber.App) {
	app.Post("/webhooks/retell/:integrationId", h.handleRetell)
	app.Post("/webhooks/:provider/:integrationId", h.handleGeneric)
}

// handleRetell processes voice platform calls synchronously: the platform
// retries on non-2xx, so the response must reflect the real outcome.
func (h *WebhookHandler) handleRetell(c *fiber.Ctx) error {
	integ := h.registry.Get(c.Params("integrationId"))
	if integ == nil || !integ.Active {
		return NewAppError("NOT_FOUND", fiber.StatusNotFound, "integration not found")
	}

	raw := c.Body()
	if err := VerifySignature(integ.WebhookSecret, raw, c.Get("X-Retell-Signature")); err != nil {
		log.Printf("WARN: webhook signature rejected for integration %s", integ.ID)
		return NewAppError("UNAUTHORIZED", fiber.StatusUnauthorized, "invalid webhook signature")
	}

	var body map[string]any
	if err := json.Unmarshal(raw, &body); err != nil {
		return NewAppError("BAD_REQUEST", fiber.StatusBadRequest, "invalid JSON payload")
	}

	// The platform nests call data under "call" on lifecycle events; analyzed
	// events arrive flat. Normalize to the call object.
	payload := body
	if call, ok := body["call"].(map[string]any); ok {
		payload = call
	}

	eventType := asString(body["event"])
	switch eventType {
	case "call_started", "call_ended", "call_analyzed":
	default:
		log.Printf("WARN: unrecognized voice event %q for integration %s", eventType, integ.ID)
		return c.JSON(fiber.Map{"success": true, "skipped": true})
	}

	if !EvaluateFilters(payload, integ.TriggerFilters) {
		return c.JSON(fiber.Map{"success": true, "filtered": true})
	}

	ev, err := h.processor.Create(c.Context(), integ.ID, EventCallTriggered, payload, asString(payload["call_id"]))
	if err != nil {
		log.Printf("ERROR: create sync event: %v", err)
		return NewAppError("INTERNAL", fiber.StatusInternalServerError, "failed to record event")
	}

	h.processor.Process(c.Context(), ev.ID)
	return c.JSON(fiber.Map{"success": true, "sync_event_id": ev.ID})
}

// handleGeneric accepts any provider's webhook, persists it, and hands the
// rest to the background pool. The provider gets a 200 as soon as the raw
// event is durable.
func (h *WebhookHandler) handleGeneric(c *fiber.Ctx) error {
	provider := c.Params("provider")
	integ := h.registry.Get(c.Params("integrationId"))
	if integ == nil || !integ.Active {
		return NewAppError("NOT_FOUND", fiber.StatusNotFound, "integration not found")
	}

	raw := c.Body()
	signature := c.Get("X-Webhook-Signature")
	if err := VerifySignature(integ.WebhookSecret, raw, signature); err != nil {
		log.Printf("WARN: webhook signature rejected for integration %s", integ.ID)
		return NewAppError("UNAUTHORIZED", fiber.StatusUnauthorized, "invalid webhook signature")
	}

	var body map[string]any
	if err := json.Unmarshal(raw, &body); err != nil {
		return NewAppError("BAD_REQUEST", fiber.StatusBadRequest, "invalid JSON payload")
	}

	eventType := classifyEvent(map[string]string{"X-Event-Type": c.Get("X-Event-Type")}, body)

	whEvent := &WebhookEvent{
		IntegrationID: integ.ID,
		Provider:      provider,
		EventType:     eventType,
		Payload:       body,
		Signature:     signature,
	}
	if err := h.webhookEvents.Insert(c.Context(), whEvent); err != nil {
		log.Printf("ERROR: persist webhook event: %v", err)
		return NewAppError("INTERNAL", fiber.StatusInternalServerError, "failed to record event")
	}

	integID := integ.ID
	h.webhookPool.Submit(queue.Task{
		Key: whEvent.ID,
		Run: func(ctx context.Context) {
			h.processWebhookEvent(ctx, integID, whEvent)
		},
	})

	return c.JSON(fiber.Map{"success": true, "webhook_event_id": whEvent.ID})
}

// processWebhookEvent is the background half of generic intake: evaluate the
// trigger filters, create the sync event, enqueue it, mark the raw delivery
// processed.
func (h *WebhookHandler) processWebhookEvent(ctx context.Context, integrationID string, whEvent *WebhookEvent) {
	integ := h.registry.Get(integrationID)
	if integ == nil {
		log.Printf("WARN: integration %s disappeared before webhook %s was processed", integrationID, whEvent.ID)
		return
	}

	if EvaluateFilters(whEvent.Payload, integ.TriggerFilters) {
		ev, err := h.processor.Create(ctx, integ.ID, EventWebhookReceived, whEvent.Payload, "")
		if err != nil {
			log.Printf("ERROR: create sync event for webhook %s: %v", whEvent.ID, err)
			return
		}
		id := ev.ID
		h.syncPool.Submit(queue.Task{
			Key: id,
			Run: func(ctx context.Context) { h.processor.Process(ctx, id) },
		})
	}

	if err := h.webhookEvents.MarkProcessed(ctx, whEvent.ID); err != nil {
		log.Printf("ERROR: mark webhook event %s processed: %v", whEvent.ID, err)
	}
}
