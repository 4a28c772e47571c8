package phone

import "testing"

func TestVariationsUKLocal(t *testing.T) {
	vars := Variations("07366842442")
	if len(vars) != 3 {
		t.Fatalf("expected 3 variations, got %d: %v", len(vars), vars)
	}
	if vars[0].Format != "07366842442" {
		t.Errorf("first variation must be the original, got %q", vars[0].Format)
	}
	want := map[string]bool{"07366842442": true, "+447366842442": true, "447366842442": true}
	for _, v := range vars {
		if !want[v.Format] {
			t.Errorf("unexpected variation %q", v.Format)
		}
	}
}

func TestVariationsE164(t *testing.T) {
	vars := Variations("+447366842442")
	if len(vars) != 3 {
		t.Fatalf("expected 3 variations, got %d: %v", len(vars), vars)
	}
	if vars[0].Format != "+447366842442" {
		t.Errorf("first variation must be the original, got %q", vars[0].Format)
	}
}

func TestVariationsEmpty(t *testing.T) {
	if got := Variations(""); got != nil {
		t.Errorf("empty input should yield no variations, got %v", got)
	}
	if got := Variations("   "); got != nil {
		t.Errorf("whitespace input should yield no variations, got %v", got)
	}
}

func TestVariationsNonUK(t *testing.T) {
	vars := Variations("+15551234567")
	if len(vars) != 1 {
		t.Fatalf("non-UK number should only yield the original, got %v", vars)
	}
	if vars[0].Format != "+15551234567" {
		t.Errorf("got %q", vars[0].Format)
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"07366842442", "+447366842442"},
		{"+447366842442", "+447366842442"},
		{"447366842442", "+447366842442"},
		{"7366842442", "+447366842442"},
		{"+1 (555) 123-4567", "+15551234567"},
		{"5551234567", "5551234567"},
		{"", ""},
		{"abc", ""},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeStable(t *testing.T) {
	inputs := []string{"07366842442", "+447366842442", "+15551234567", "5551234567", "0044 7366 842442"}
	for _, in := range inputs {
		once := Normalize(in)
		twice := Normalize(once)
		if once != twice {
			t.Errorf("Normalize not stable for %q: %q then %q", in, once, twice)
		}
	}
}

func TestAreEquivalent(t *testing.T) {
	if !AreEquivalent("07366842442", "+447366842442") {
		t.Error("UK local and E.164 forms of the same number must be equivalent")
	}
	if !AreEquivalent("447366842442", "07366842442") {
		t.Error("international-without-plus and local forms must be equivalent")
	}
	if AreEquivalent("07366842442", "07366842443") {
		t.Error("different numbers must not be equivalent")
	}
	if AreEquivalent("", "") {
		t.Error("empty inputs are never equivalent")
	}
	if AreEquivalent("", "07366842442") {
		t.Error("empty input is never equivalent to anything")
	}
}
