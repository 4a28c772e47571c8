package engine

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"testing"
)

func signSHA256(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func signSHA1(secret string, payload []byte) string {
	mac := hmac.New(sha1.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifySignature(t *testing.T) {
	secret := "whsec_test"
	payload := []byte(`{"event":"call_ended","call_id":"c1"}`)

	t.Run("sha256 with prefix", func(t *testing.T) {
		if err := VerifySignature(secret, payload, "sha256="+signSHA256(secret, payload)); err != nil {
			t.Errorf("valid prefixed signature rejected: %v", err)
		}
	})

	t.Run("sha256 bare hex", func(t *testing.T) {
		if err := VerifySignature(secret, payload, signSHA256(secret, payload)); err != nil {
			t.Errorf("valid bare signature rejected: %v", err)
		}
	})

	t.Run("legacy sha1 fallback", func(t *testing.T) {
		if err := VerifySignature(secret, payload, signSHA1(secret, payload)); err != nil {
			t.Errorf("valid legacy signature rejected: %v", err)
		}
	})

	t.Run("sha1 digest with sha256 prefix rejected", func(t *testing.T) {
		err := VerifySignature(secret, payload, "sha256="+signSHA1(secret, payload))
		var authErr *AuthError
		if !errors.As(err, &authErr) {
			t.Errorf("prefixed sha1 digest must not fall back, got %v", err)
		}
	})

	t.Run("wrong secret rejected", func(t *testing.T) {
		err := VerifySignature(secret, payload, signSHA256("other_secret", payload))
		var authErr *AuthError
		if !errors.As(err, &authErr) {
			t.Errorf("expected AuthError, got %v", err)
		}
	})

	t.Run("tampered payload rejected", func(t *testing.T) {
		sig := signSHA256(secret, payload)
		err := VerifySignature(secret, []byte(`{"event":"call_ended","call_id":"c2"}`), sig)
		if err == nil {
			t.Error("tampered payload must be rejected")
		}
	})

	t.Run("garbage signature rejected", func(t *testing.T) {
		if err := VerifySignature(secret, payload, "not-hex-at-all"); err == nil {
			t.Error("undecodable signature must be rejected")
		}
	})

	t.Run("no secret skips verification", func(t *testing.T) {
		if err := VerifySignature("", payload, "anything"); err != nil {
			t.Errorf("missing secret must skip verification, got %v", err)
		}
	})

	t.Run("no signature skips verification", func(t *testing.T) {
		if err := VerifySignature(secret, payload, ""); err != nil {
			t.Errorf("missing signature must skip verification, got %v", err)
		}
	})
}

func TestClassifyEvent(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		body    map[string]any
		want    string
	}{
		{"header wins", map[string]string{"X-Event-Type": "form.submitted"}, map[string]any{"event": "other"}, "form.submitted"},
		{"event field", map[string]string{}, map[string]any{"event": "call_ended"}, "call_ended"},
		{"event_type field", map[string]string{}, map[string]any{"event_type": "lead.created"}, "lead.created"},
		{"nothing", map[string]string{}, map[string]any{"data": 1}, "unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyEvent(tt.headers, tt.body); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}
