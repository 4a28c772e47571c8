// Package notify is the outcome notification side-channel. The pipeline
// dispatches opt-in success and error notifications through it; delivery is
// best effort and never affects event state.
package notify

import (
	"context"
	"log"
)

const (
	TemplateSyncSuccess = "sync_success"
	TemplateSyncError   = "sync_error"
)

// Message is one notification to send.
type Message struct {
	From     string         `json:"from"`
	To       string         `json:"to"`
	Subject  string         `json:"subject"`
	Template string         `json:"template"`
	Data     map[string]any `json:"data"`
}

// Notifier delivers messages.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

// LogNotifier writes notifications to the process log. Stands in for a real
// mail sender in development and tests.
type LogNotifier struct{}

func (n *LogNotifier) Send(_ context.Context, msg Message) error {
	log.Printf("notify from=%s to=%s template=%s subject=%q data=%v", msg.From, msg.To, msg.Template, msg.Subject, msg.Data)
	return nil
}

// Async decouples Send from delivery: the message is handed to Submit and
// delivered later by whatever runs the submitted function. Send itself never
// fails; delivery errors are logged.
type Async struct {
	Next   Notifier
	Submit func(run func(ctx context.Context))
}

func (a *Async) Send(_ context.Context, msg Message) error {
	a.Submit(func(ctx context.Context) {
		if err := a.Next.Send(ctx, msg); err != nil {
			log.Printf("WARN: deliver notification to %s: %v", msg.To, err)
		}
	})
	return nil
}
