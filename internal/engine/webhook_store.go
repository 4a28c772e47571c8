package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"callbridge-backend/internal/store"
)

// WebhookEvent is the raw intake record, kept for replay and debugging.
type WebhookEvent struct {
	ID            string         `json:"id"`
	IntegrationID string         `json:"integration_id"`
	Provider      string         `json:"provider"`
	EventType     string         `json:"event_type"`
	Payload       map[string]any `json:"payload"`
	Signature     string         `json:"signature,omitempty"`
	Processed     bool           `json:"processed"`
	CreatedAt     time.Time      `json:"created_at"`
}

// WebhookEventStore persists raw webhook deliveries.
type WebhookEventStore struct {
	q       store.Querier
	dialect store.Dialect
}

func NewWebhookEventStore(q store.Querier, dialect store.Dialect) *WebhookEventStore {
	return &WebhookEventStore{q: q, dialect: dialect}
}

func (s *WebhookEventStore) Insert(ctx context.Context, ev *WebhookEvent) error {
	if ev.ID == "" {
		ev.ID = store.GenerateUUID()
	}
	ev.CreatedAt = time.Now().UTC()

	payload, err := json.Marshal(ev.Payload)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	pb := s.dialect.NewParamBuilder()
	sqlStr := fmt.Sprintf(`INSERT INTO _webhook_events
		(id, integration_id, provider, event_type, payload, signature, processed, created_at)
		VALUES (%s, %s, %s, %s, %s, %s, %s, %s)`,
		pb.Add(ev.ID), pb.Add(ev.IntegrationID), pb.Add(ev.Provider), pb.Add(ev.EventType),
		pb.Add(string(payload)), pb.Add(ev.Signature), pb.Add(ev.Processed), pb.Add(ev.CreatedAt))

	if _, err := store.Exec(ctx, s.q, sqlStr, pb.Params()...); err != nil {
		return fmt.Errorf("insert webhook event: %w", err)
	}
	return nil
}

func (s *WebhookEventStore) MarkProcessed(ctx context.Context, id string) error {
	pb := s.dialect.NewParamBuilder()
	sqlStr := fmt.Sprintf("UPDATE _webhook_events SET processed = %s WHERE id = %s",
		pb.Add(true), pb.Add(id))
	n, err := store.Exec(ctx, s.q, sqlStr, pb.Params()...)
	if err != nil {
		return fmt.Errorf("mark webhook event processed: %w", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// ListRecent returns the newest webhook events, optionally filtered by
// integration.
func (s *WebhookEventStore) ListRecent(ctx context.Context, integrationID string, limit int) ([]*WebhookEvent, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	pb := s.dialect.NewParamBuilder()
	sqlStr := "SELECT * FROM _webhook_events"
	if integrationID != "" {
		sqlStr += fmt.Sprintf(" WHERE integration_id = %s", pb.Add(integrationID))
	}
	sqlStr += fmt.Sprintf(" ORDER BY created_at DESC LIMIT %s", pb.Add(limit))

	rows, err := store.QueryRows(ctx, s.q, sqlStr, pb.Params()...)
	if err != nil {
		return nil, err
	}
	events := make([]*WebhookEvent, 0, len(rows))
	for _, row := range rows {
		events = append(events, parseWebhookEventRow(row))
	}
	return events, nil
}

func parseWebhookEventRow(row map[string]any) *WebhookEvent {
	ev := &WebhookEvent{
		ID:            asString(row["id"]),
		IntegrationID: asString(row["integration_id"]),
		Provider:      asString(row["provider"]),
		EventType:     asString(row["event_type"]),
		Signature:     asString(row["signature"]),
		Payload:       jsonColumn(row["payload"]),
	}
	switch v := row["processed"].(type) {
	case bool:
		ev.Processed = v
	case int64:
		ev.Processed = v != 0
	case float64:
		ev.Processed = v != 0
	}
	if t, ok := row["created_at"].(time.Time); ok {
		ev.CreatedAt = t
	}
	return ev
}
