package instrument

import (
	"context"
	"log"
	"time"
)

// Instrumenter creates spans around units of pipeline work.
type Instrumenter interface {
	StartSpan(ctx context.Context, source, component, action string) (context.Context, Span)
}

// Span records the outcome and metadata of one unit of work.
type Span interface {
	End()
	SetStatus(status string)
	SetMetadata(key string, value any)
	SetEntity(entity, recordID string)
}

type ctxKey struct{}

// WithInstrumenter attaches an instrumenter to the context.
func WithInstrumenter(ctx context.Context, inst Instrumenter) context.Context {
	return context.WithValue(ctx, ctxKey{}, inst)
}

// GetInstrumenter returns the context's instrumenter, or a noop.
func GetInstrumenter(ctx context.Context) Instrumenter {
	if inst, ok := ctx.Value(ctxKey{}).(Instrumenter); ok {
		return inst
	}
	return &NoopInstrumenter{}
}

// LogInstrumenter writes completed spans to the process log.
type LogInstrumenter struct{}

func (l *LogInstrumenter) StartSpan(ctx context.Context, source, component, action string) (context.Context, Span) {
	return ctx, &logSpan{
		source:    source,
		component: component,
		action:    action,
		started:   time.Now(),
		metadata:  map[string]any{},
	}
}

type logSpan struct {
	source    string
	component string
	action    string
	status    string
	entity    string
	recordID  string
	started   time.Time
	metadata  map[string]any
}

func (s *logSpan) End() {
	status := s.status
	if status == "" {
		status = "ok"
	}
	log.Printf("span %s/%s %s status=%s entity=%s/%s elapsed=%s meta=%v",
		s.source, s.component, s.action, status, s.entity, s.recordID,
		time.Since(s.started).Round(time.Millisecond), s.metadata)
}

func (s *logSpan) SetStatus(status string)           { s.status = status }
func (s *logSpan) SetMetadata(key string, value any) { s.metadata[key] = value }
func (s *logSpan) SetEntity(entity, recordID string) { s.entity, s.recordID = entity, recordID }
