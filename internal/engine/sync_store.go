package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"callbridge-backend/internal/store"
)

// SyncEventStore persists sync events. The SQL implementation is the real
// one; tests substitute an in-memory fake.
type SyncEventStore interface {
	Create(ctx context.Context, ev *SyncEvent) error
	Load(ctx context.Context, id string) (*SyncEvent, error)
	MarkProcessing(ctx context.Context, id string) error
	Complete(ctx context.Context, id string, mapped map[string]any) error
	MarkRetrying(ctx context.Context, id string, retryCount int, errMsg string) error
	Fail(ctx context.Context, id string, errMsg string) error
	ResetForRetry(ctx context.Context, id string) error
	ListByStatus(ctx context.Context, status string, limit int) ([]*SyncEvent, error)
}

// SQLSyncEventStore stores sync events in the _sync_events system table.
type SQLSyncEventStore struct {
	q       store.Querier
	dialect store.Dialect
}

func NewSQLSyncEventStore(q store.Querier, dialect store.Dialect) *SQLSyncEventStore {
	return &SQLSyncEventStore{q: q, dialect: dialect}
}

func (s *SQLSyncEventStore) Create(ctx context.Context, ev *SyncEvent) error {
	if ev.ID == "" {
		ev.ID = store.GenerateUUID()
	}
	now := time.Now().UTC()
	ev.CreatedAt = now
	ev.UpdatedAt = now

	payload, err := json.Marshal(ev.SourcePayload)
	if err != nil {
		return fmt.Errorf("marshal source payload: %w", err)
	}

	pb := s.dialect.NewParamBuilder()
	sqlStr := fmt.Sprintf(`INSERT INTO _sync_events
		(id, integration_id, event_type, status, source_payload, external_id, retry_count, max_retries, created_at, updated_at)
		VALUES (%s, %s, %s, %s, %s, %s, %s, %s, %s, %s)`,
		pb.Add(ev.ID), pb.Add(ev.IntegrationID), pb.Add(ev.EventType), pb.Add(ev.Status),
		pb.Add(string(payload)), pb.Add(ev.ExternalID), pb.Add(ev.RetryCount), pb.Add(ev.MaxRetries),
		pb.Add(now), pb.Add(now))

	if _, err := store.Exec(ctx, s.q, sqlStr, pb.Params()...); err != nil {
		return fmt.Errorf("insert sync event: %w", err)
	}
	return nil
}

func (s *SQLSyncEventStore) Load(ctx context.Context, id string) (*SyncEvent, error) {
	pb := s.dialect.NewParamBuilder()
	row, err := store.QueryRow(ctx, s.q,
		fmt.Sprintf("SELECT * FROM _sync_events WHERE id = %s", pb.Add(id)), pb.Params()...)
	if err != nil {
		return nil, err
	}
	return ParseSyncEventRow(row), nil
}

func (s *SQLSyncEventStore) MarkProcessing(ctx context.Context, id string) error {
	return s.setStatus(ctx, id, StatusProcessing, "", nil)
}

func (s *SQLSyncEventStore) Complete(ctx context.Context, id string, mapped map[string]any) error {
	mappedJSON, err := json.Marshal(mapped)
	if err != nil {
		return fmt.Errorf("marshal mapped payload: %w", err)
	}
	now := time.Now().UTC()
	pb := s.dialect.NewParamBuilder()
	sqlStr := fmt.Sprintf(`UPDATE _sync_events
		SET status = %s, mapped_payload = %s, error_message = '', processed_at = %s, updated_at = %s
		WHERE id = %s`,
		pb.Add(StatusCompleted), pb.Add(string(mappedJSON)), pb.Add(now), pb.Add(now), pb.Add(id))
	n, err := store.Exec(ctx, s.q, sqlStr, pb.Params()...)
	if err != nil {
		return fmt.Errorf("complete sync event: %w", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *SQLSyncEventStore) MarkRetrying(ctx context.Context, id string, retryCount int, errMsg string) error {
	now := time.Now().UTC()
	pb := s.dialect.NewParamBuilder()
	sqlStr := fmt.Sprintf(`UPDATE _sync_events
		SET status = %s, retry_count = %s, error_message = %s, updated_at = %s
		WHERE id = %s`,
		pb.Add(StatusRetrying), pb.Add(retryCount), pb.Add(errMsg), pb.Add(now), pb.Add(id))
	n, err := store.Exec(ctx, s.q, sqlStr, pb.Params()...)
	if err != nil {
		return fmt.Errorf("mark sync event retrying: %w", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *SQLSyncEventStore) Fail(ctx context.Context, id string, errMsg string) error {
	now := time.Now().UTC()
	return s.setStatus(ctx, id, StatusFailed, errMsg, &now)
}

func (s *SQLSyncEventStore) ResetForRetry(ctx context.Context, id string) error {
	now := time.Now().UTC()
	pb := s.dialect.NewParamBuilder()
	sqlStr := fmt.Sprintf(`UPDATE _sync_events
		SET status = %s, retry_count = 0, error_message = '', updated_at = %s
		WHERE id = %s`,
		pb.Add(StatusPending), pb.Add(now), pb.Add(id))
	n, err := store.Exec(ctx, s.q, sqlStr, pb.Params()...)
	if err != nil {
		return fmt.Errorf("reset sync event: %w", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *SQLSyncEventStore) ListByStatus(ctx context.Context, status string, limit int) ([]*SyncEvent, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	pb := s.dialect.NewParamBuilder()
	sqlStr := "SELECT * FROM _sync_events"
	if status != "" {
		sqlStr += fmt.Sprintf(" WHERE status = %s", pb.Add(status))
	}
	sqlStr += fmt.Sprintf(" ORDER BY created_at DESC LIMIT %s", pb.Add(limit))

	rows, err := store.QueryRows(ctx, s.q, sqlStr, pb.Params()...)
	if err != nil {
		return nil, err
	}
	events := make([]*SyncEvent, 0, len(rows))
	for _, row := range rows {
		events = append(events, ParseSyncEventRow(row))
	}
	return events, nil
}

func (s *SQLSyncEventStore) setStatus(ctx context.Context, id, status, errMsg string, processedAt *time.Time) error {
	now := time.Now().UTC()
	pb := s.dialect.NewParamBuilder()
	sqlStr := fmt.Sprintf("UPDATE _sync_events SET status = %s, updated_at = %s", pb.Add(status), pb.Add(now))
	if errMsg != "" {
		sqlStr += fmt.Sprintf(", error_message = %s", pb.Add(errMsg))
	}
	if processedAt != nil {
		sqlStr += fmt.Sprintf(", processed_at = %s", pb.Add(*processedAt))
	}
	sqlStr += fmt.Sprintf(" WHERE id = %s", pb.Add(id))

	n, err := store.Exec(ctx, s.q, sqlStr, pb.Params()...)
	if err != nil {
		return fmt.Errorf("update sync event status: %w", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// ParseSyncEventRow converts a raw row map into a SyncEvent.
func ParseSyncEventRow(row map[string]any) *SyncEvent {
	ev := &SyncEvent{
		ID:            asString(row["id"]),
		IntegrationID: asString(row["integration_id"]),
		EventType:     asString(row["event_type"]),
		Status:        asString(row["status"]),
		ExternalID:    asString(row["external_id"]),
		ErrorMessage:  asString(row["error_message"]),
	}
	if n, ok := intValue(row["retry_count"]); ok {
		ev.RetryCount = n
	}
	if n, ok := intValue(row["max_retries"]); ok {
		ev.MaxRetries = n
	}
	ev.SourcePayload = jsonColumn(row["source_payload"])
	ev.MappedPayload = jsonColumn(row["mapped_payload"])
	if t, ok := row["processed_at"].(time.Time); ok {
		ev.ProcessedAt = &t
	}
	if t, ok := row["created_at"].(time.Time); ok {
		ev.CreatedAt = t
	}
	if t, ok := row["updated_at"].(time.Time); ok {
		ev.UpdatedAt = t
	}
	return ev
}

// jsonColumn decodes a JSON object column that may arrive as string, []byte,
// or already-decoded map depending on the driver.
func jsonColumn(v any) map[string]any {
	switch val := v.(type) {
	case nil:
		return nil
	case map[string]any:
		return val
	case string:
		if val == "" {
			return nil
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(val), &m); err != nil {
			log.Printf("WARN: decode JSON column: %v", err)
			return nil
		}
		return m
	case []byte:
		return jsonColumn(string(val))
	}
	return nil
}
