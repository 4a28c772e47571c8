package engine

import (
	"context"
	"fmt"
	"log"
	"time"

	"callbridge-backend/internal/config"
	"callbridge-backend/internal/crm"
	"callbridge-backend/internal/instrument"
	"callbridge-backend/internal/metadata"
	"callbridge-backend/internal/notify"
)

// Sync event lifecycle states.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
	StatusRetrying   = "retrying"
)

// Sync event types.
const (
	EventWebhookReceived = "webhook_received"
	EventCallTriggered   = "call_triggered"
	EventSyncCompleted   = "sync_completed"
	EventSyncFailed      = "sync_failed"
)

// SyncEvent is the durable record of one delivery attempt lifecycle.
type SyncEvent struct {
	ID            string         `json:"id"`
	IntegrationID string         `json:"integration_id"`
	EventType     string         `json:"event_type"`
	Status        string         `json:"status"`
	SourcePayload map[string]any `json:"source_payload"`
	MappedPayload map[string]any `json:"mapped_payload,omitempty"`
	ExternalID    string         `json:"external_id,omitempty"`
	ErrorMessage  string         `json:"error_message,omitempty"`
	RetryCount    int            `json:"retry_count"`
	MaxRetries    int            `json:"max_retries"`
	ProcessedAt   *time.Time     `json:"processed_at,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// SyncProcessor runs sync events through map, write, and workflow stages and
// owns the retry state machine. The schedule callback re-enqueues an event id
// after a delay; injecting it keeps the processor free of pool plumbing.
type SyncProcessor struct {
	events     SyncEventStore
	registry   *metadata.Registry
	clients    *crm.Registry
	workflows  *WorkflowRunner
	notifier   notify.Notifier
	notifyFrom string
	retry      config.RetryConfig
	schedule   func(id string, delay time.Duration)
}

func NewSyncProcessor(events SyncEventStore, registry *metadata.Registry, clients *crm.Registry, workflows *WorkflowRunner, notifier notify.Notifier, notifyFrom string, retry config.RetryConfig) *SyncProcessor {
	if retry.MaxRetries <= 0 {
		retry.MaxRetries = 3
	}
	if retry.BaseDelayMs <= 0 {
		retry.BaseDelayMs = 1000
	}
	if retry.MaxDelayMs <= 0 {
		retry.MaxDelayMs = 300000
	}
	return &SyncProcessor{
		events:     events,
		registry:   registry,
		clients:    clients,
		workflows:  workflows,
		notifier:   notifier,
		notifyFrom: notifyFrom,
		retry:      retry,
	}
}

// SetScheduler installs the delayed re-enqueue callback. Must be set before
// the first Process call that can fail.
func (p *SyncProcessor) SetScheduler(fn func(id string, delay time.Duration)) {
	p.schedule = fn
}

// Backoff returns the delay before retry attempt n (1-based): base * 2^n
// milliseconds, capped at the configured maximum. With defaults that is
// 2s, 4s, 8s, ... up to 5 minutes.
func (p *SyncProcessor) Backoff(n int) time.Duration {
	if n < 1 {
		n = 1
	}
	delay := int64(p.retry.BaseDelayMs)
	for i := 0; i < n; i++ {
		delay *= 2
		if delay >= int64(p.retry.MaxDelayMs) {
			delay = int64(p.retry.MaxDelayMs)
			break
		}
	}
	return time.Duration(delay) * time.Millisecond
}

// Create persists a new pending sync event and returns it.
func (p *SyncProcessor) Create(ctx context.Context, integrationID, eventType string, payload map[string]any, externalID string) (*SyncEvent, error) {
	ev := &SyncEvent{
		IntegrationID: integrationID,
		EventType:     eventType,
		Status:        StatusPending,
		SourcePayload: payload,
		ExternalID:    externalID,
		MaxRetries:    p.retry.MaxRetries,
	}
	if err := p.events.Create(ctx, ev); err != nil {
		return nil, err
	}
	return ev, nil
}

// Process runs one attempt for the event. Exactly one status write happens
// before the fallible work (pending/retrying to processing) and one after
// (completed, retrying, or failed); a crash between the two leaves the event
// visibly stuck in processing rather than silently lost.
func (p *SyncProcessor) Process(ctx context.Context, id string) {
	ctx, span := instrument.GetInstrumenter(ctx).StartSpan(ctx, "sync", "processor", "sync.process")
	defer span.End()
	span.SetEntity("sync_event", id)

	ev, err := p.events.Load(ctx, id)
	if err != nil {
		log.Printf("ERROR: load sync event %s: %v", id, err)
		span.SetStatus("error")
		return
	}
	if ev.Status != StatusPending && ev.Status != StatusRetrying {
		log.Printf("WARN: sync event %s is %s, skipping", id, ev.Status)
		return
	}

	if err := p.events.MarkProcessing(ctx, id); err != nil {
		log.Printf("ERROR: mark sync event %s processing: %v", id, err)
		span.SetStatus("error")
		return
	}

	if err := p.attempt(ctx, ev); err != nil {
		span.SetStatus("error")
		span.SetMetadata("error", err.Error())
		p.handleFailure(ctx, ev, err)
		return
	}

	span.SetStatus("ok")
}

// attempt is the fallible core of one processing pass.
func (p *SyncProcessor) attempt(ctx context.Context, ev *SyncEvent) error {
	integ := p.registry.Get(ev.IntegrationID)
	if integ == nil {
		return &ConfigError{Message: fmt.Sprintf("integration %s not found", ev.IntegrationID)}
	}
	if !integ.Active {
		return &ConfigError{Message: fmt.Sprintf("integration %s is inactive", ev.IntegrationID)}
	}

	client, ok := p.clients.Client(integ.CRMProvider, integ.AccessToken)
	if !ok {
		return &ConfigError{Message: fmt.Sprintf("unknown CRM provider %q", integ.CRMProvider)}
	}

	mapped, err := Transform(ev.SourcePayload, integ.FieldMappings, integ.Schema)
	if err != nil {
		return err
	}

	if _, err := ExecuteMapped(ctx, client, integ, mapped, ev.SourcePayload); err != nil {
		return err
	}

	// Workflow failures do not fail the event: the mapped CRM writes already
	// landed and a retry would duplicate them. Each run logs its own errors.
	results := p.workflows.RunAll(ctx, client, integ, ev.EventType, ev.SourcePayload)
	for _, r := range results {
		if !r.Completed {
			log.Printf("WARN: workflow %s (%s) did not complete for sync event %s", r.Name, r.WorkflowID, ev.ID)
		}
	}

	if err := p.events.Complete(ctx, ev.ID, mapped); err != nil {
		log.Printf("ERROR: mark sync event %s completed: %v", ev.ID, err)
		return nil
	}

	log.Printf("Sync event %s completed (integration %s)", ev.ID, ev.IntegrationID)
	p.notifyOutcome(ctx, integ, ev, nil)
	return nil
}

// handleFailure advances the retry state machine after a failed attempt.
func (p *SyncProcessor) handleFailure(ctx context.Context, ev *SyncEvent, cause error) {
	integ := p.registry.Get(ev.IntegrationID)

	if IsPermanent(cause) {
		log.Printf("ERROR: sync event %s failed permanently: %v", ev.ID, cause)
		if err := p.events.Fail(ctx, ev.ID, cause.Error()); err != nil {
			log.Printf("ERROR: mark sync event %s failed: %v", ev.ID, err)
		}
		p.notifyOutcome(ctx, integ, ev, cause)
		return
	}

	ev.RetryCount++
	if ev.RetryCount <= ev.MaxRetries {
		delay := p.Backoff(ev.RetryCount)
		log.Printf("WARN: sync event %s attempt failed (%v), retry %d/%d in %s",
			ev.ID, cause, ev.RetryCount, ev.MaxRetries, delay)
		if err := p.events.MarkRetrying(ctx, ev.ID, ev.RetryCount, cause.Error()); err != nil {
			log.Printf("ERROR: mark sync event %s retrying: %v", ev.ID, err)
			return
		}
		if p.schedule != nil {
			p.schedule(ev.ID, delay)
		}
		return
	}

	log.Printf("ERROR: sync event %s exhausted %d retries: %v", ev.ID, ev.MaxRetries, cause)
	if err := p.events.Fail(ctx, ev.ID, cause.Error()); err != nil {
		log.Printf("ERROR: mark sync event %s failed: %v", ev.ID, err)
	}
	p.notifyOutcome(ctx, integ, ev, cause)
}

// Requeue resets a terminally failed event back to pending for another run.
// Only failed events qualify; anything else is an invalid request.
func (p *SyncProcessor) Requeue(ctx context.Context, id string) (*SyncEvent, error) {
	ev, err := p.events.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if ev.Status != StatusFailed {
		return nil, NewAppError("INVALID_STATE", 409,
			fmt.Sprintf("sync event is %s, only failed events can be retried", ev.Status))
	}
	if err := p.events.ResetForRetry(ctx, id); err != nil {
		return nil, err
	}
	ev.Status = StatusPending
	ev.RetryCount = 0
	ev.ErrorMessage = ""
	return ev, nil
}

// notifyOutcome sends the opt-in success or error notification. cause nil
// means success. Best effort: delivery failures are logged only.
func (p *SyncProcessor) notifyOutcome(ctx context.Context, integ *metadata.Integration, ev *SyncEvent, cause error) {
	if p.notifier == nil || integ == nil || integ.Notifications.Email == "" {
		return
	}

	var msg notify.Message
	if cause == nil {
		if !integ.Notifications.OnSuccess {
			return
		}
		msg = notify.Message{
			From:     p.notifyFrom,
			To:       integ.Notifications.Email,
			Subject:  fmt.Sprintf("Sync completed for %s", integ.Name),
			Template: notify.TemplateSyncSuccess,
			Data: map[string]any{
				"sync_event_id": ev.ID,
				"event_type":    ev.EventType,
				"completed_at":  time.Now().UTC().Format(time.RFC3339),
			},
		}
	} else {
		if !integ.Notifications.OnError {
			return
		}
		msg = notify.Message{
			From:     p.notifyFrom,
			To:       integ.Notifications.Email,
			Subject:  fmt.Sprintf("Sync failed for %s", integ.Name),
			Template: notify.TemplateSyncError,
			Data: map[string]any{
				"sync_event_id": ev.ID,
				"event_type":    ev.EventType,
				"error":         cause.Error(),
				"retry_count":   ev.RetryCount,
				"failed_at":     time.Now().UTC().Format(time.RFC3339),
			},
		}
	}

	if err := p.notifier.Send(ctx, msg); err != nil {
		log.Printf("WARN: send notification for sync event %s: %v", ev.ID, err)
	}
}
