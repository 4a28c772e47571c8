package engine

import "testing"

func TestURLConfig(t *testing.T) {
	u := NewURLConfig("https://hooks.example.com/")

	if u.Base() != "https://hooks.example.com" {
		t.Errorf("base = %q, trailing slash should be trimmed", u.Base())
	}

	got := u.WebhookURL("retell", "int-1")
	if got != "https://hooks.example.com/webhooks/retell/int-1" {
		t.Errorf("webhook url = %q", got)
	}

	// Setting the same value again is a no-op.
	if eff := u.SetBase("https://hooks.example.com"); eff != "https://hooks.example.com" {
		t.Errorf("idempotent set returned %q", eff)
	}

	if eff := u.SetBase("https://new.example.com/"); eff != "https://new.example.com" {
		t.Errorf("set returned %q", eff)
	}
	if u.Base() != "https://new.example.com" {
		t.Errorf("base after set = %q", u.Base())
	}

	// Empty update keeps the current value.
	if eff := u.SetBase(""); eff != "https://new.example.com" {
		t.Errorf("empty set should keep base, got %q", eff)
	}
}
