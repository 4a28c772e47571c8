package engine

import (
	"strings"
	"sync"
)

// URLConfig holds the public base URL used to build per-integration webhook
// endpoints. Updatable at runtime, safe for concurrent readers.
type URLConfig struct {
	mu   sync.RWMutex
	base string
}

func NewURLConfig(base string) *URLConfig {
	return &URLConfig{base: strings.TrimRight(base, "/")}
}

func (u *URLConfig) Base() string {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.base
}

// SetBase updates the base URL and returns the effective value. Setting the
// current value again is a no-op, so the call is idempotent.
func (u *URLConfig) SetBase(base string) string {
	trimmed := strings.TrimRight(base, "/")
	u.mu.Lock()
	defer u.mu.Unlock()
	if trimmed != "" {
		u.base = trimmed
	}
	return u.base
}

// WebhookURL returns the intake endpoint for an integration and provider.
func (u *URLConfig) WebhookURL(provider, integrationID string) string {
	return u.Base() + "/webhooks/" + provider + "/" + integrationID
}
