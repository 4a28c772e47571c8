package engine

import (
	"testing"

	"callbridge-backend/internal/metadata"
)

func callPayload(successful bool, durationMs float64) map[string]any {
	return map[string]any{
		"call_id":     "c1",
		"duration_ms": durationMs,
		"call_analysis": map[string]any{
			"call_successful": successful,
			"call_summary":    "test call",
		},
	}
}

func TestResolvePath(t *testing.T) {
	payload := map[string]any{
		"a": map[string]any{"b": map[string]any{"c": 42}},
		"x": "top",
	}

	if v, ok := ResolvePath(payload, "a.b.c"); !ok || v != 42 {
		t.Errorf("a.b.c = %v, %v", v, ok)
	}
	if v, ok := ResolvePath(payload, "x"); !ok || v != "top" {
		t.Errorf("x = %v, %v", v, ok)
	}
	if _, ok := ResolvePath(payload, "a.missing.c"); ok {
		t.Error("missing intermediate should not resolve")
	}
	if _, ok := ResolvePath(payload, "x.b"); ok {
		t.Error("walking through a non-map should not resolve")
	}
	if _, ok := ResolvePath(payload, ""); ok {
		t.Error("empty path should not resolve")
	}
}

func TestEvaluateFiltersEmptyListMatches(t *testing.T) {
	if !EvaluateFilters(map[string]any{}, nil) {
		t.Error("empty filter list must match")
	}
	if !EvaluateFilters(map[string]any{}, []metadata.TriggerFilter{}) {
		t.Error("empty filter slice must match")
	}
}

func TestEvaluateFiltersBasicOperators(t *testing.T) {
	payload := map[string]any{
		"event":       "call_ended",
		"duration_ms": float64(45000),
		"meta":        map[string]any{"direction": "inbound"},
	}

	tests := []struct {
		name   string
		filter metadata.TriggerFilter
		want   bool
	}{
		{"equals hit", metadata.TriggerFilter{Field: "event", Operator: OpEquals, Value: "call_ended"}, true},
		{"equals miss", metadata.TriggerFilter{Field: "event", Operator: OpEquals, Value: "call_started"}, false},
		{"equals numeric coercion", metadata.TriggerFilter{Field: "duration_ms", Operator: OpEquals, Value: 45000}, true},
		{"equals on missing field", metadata.TriggerFilter{Field: "nope", Operator: OpEquals, Value: "x"}, false},
		{"not_equals on missing field", metadata.TriggerFilter{Field: "nope", Operator: OpNotEquals, Value: "x"}, true},
		{"contains", metadata.TriggerFilter{Field: "event", Operator: OpContains, Value: "ended"}, true},
		{"not_contains", metadata.TriggerFilter{Field: "event", Operator: OpNotContains, Value: "started"}, true},
		{"greater_than", metadata.TriggerFilter{Field: "duration_ms", Operator: OpGreaterThan, Value: 30000}, true},
		{"less_than", metadata.TriggerFilter{Field: "duration_ms", Operator: OpLessThan, Value: 30000}, false},
		{"greater_than non-numeric", metadata.TriggerFilter{Field: "event", Operator: OpGreaterThan, Value: 1}, false},
		{"exists nested", metadata.TriggerFilter{Field: "meta.direction", Operator: OpExists}, true},
		{"not_exists", metadata.TriggerFilter{Field: "meta.missing", Operator: OpNotExists}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EvaluateFilters(payload, []metadata.TriggerFilter{tt.filter})
			if got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEvaluateFiltersAndCombined(t *testing.T) {
	payload := map[string]any{"event": "call_ended", "duration_ms": float64(45000)}
	filters := []metadata.TriggerFilter{
		{Field: "event", Operator: OpEquals, Value: "call_ended"},
		{Field: "duration_ms", Operator: OpGreaterThan, Value: 60000},
	}
	if EvaluateFilters(payload, filters) {
		t.Error("one failing filter must fail the set")
	}
}

func TestUnknownOperatorAsymmetry(t *testing.T) {
	payload := map[string]any{"event": "call_ended"}
	filter := metadata.TriggerFilter{Field: "event", Operator: "sounds_like", Value: "x"}

	// Trigger filters pass unknown operators.
	if !EvaluateFilters(payload, []metadata.TriggerFilter{filter}) {
		t.Error("unknown operator in a trigger filter must pass")
	}
	// Workflow conditions fail them closed.
	if EvaluateCondition(payload, filter) {
		t.Error("unknown operator in a workflow condition must fail")
	}
}

func TestIndicatesSuccess(t *testing.T) {
	if !EvaluateCondition(callPayload(true, 60000), metadata.TriggerFilter{Operator: OpIndicatesSuccess}) {
		t.Error("call_successful=true must indicate success")
	}
	if EvaluateCondition(callPayload(false, 60000), metadata.TriggerFilter{Operator: OpIndicatesSuccess}) {
		t.Error("call_successful=false must not indicate success")
	}

	keyword := map[string]any{
		"call_analysis": map[string]any{
			"custom_analysis_data": map[string]any{"outcome": "Appointment Confirmed"},
		},
	}
	if !EvaluateCondition(keyword, metadata.TriggerFilter{Operator: OpIndicatesSuccess}) {
		t.Error("success keyword in custom analysis data must indicate success")
	}
}

func TestIndicatesBooking(t *testing.T) {
	byKey := map[string]any{
		"call_analysis": map[string]any{
			"custom_analysis_data": map[string]any{"appointment_time": "tomorrow 10am"},
		},
	}
	if !EvaluateCondition(byKey, metadata.TriggerFilter{Operator: OpIndicatesBooking}) {
		t.Error("booking keyword in a key must indicate booking")
	}

	byValue := map[string]any{
		"call_analysis": map[string]any{
			"custom_analysis_data": map[string]any{"outcome": "wants to book a demo"},
		},
	}
	if !EvaluateCondition(byValue, metadata.TriggerFilter{Operator: OpIndicatesBooking}) {
		t.Error("booking keyword in a value must indicate booking")
	}

	if EvaluateCondition(callPayload(true, 60000), metadata.TriggerFilter{Operator: OpIndicatesBooking}) {
		t.Error("payload without booking signals must not indicate booking")
	}
}

func TestIndicatesFailure(t *testing.T) {
	cond := metadata.TriggerFilter{Operator: OpIndicatesFailure}

	if !EvaluateCondition(map[string]any{"call_id": "c1"}, cond) {
		t.Error("missing call_analysis must indicate failure")
	}
	if !EvaluateCondition(callPayload(false, 60000), cond) {
		t.Error("call_successful=false must indicate failure")
	}
	if !EvaluateCondition(callPayload(true, 10000), cond) {
		t.Error("call shorter than 30s must indicate failure")
	}

	voicemail := callPayload(true, 60000)
	voicemail["call_analysis"].(map[string]any)["in_voicemail"] = true
	if !EvaluateCondition(voicemail, cond) {
		t.Error("voicemail must indicate failure")
	}

	if EvaluateCondition(callPayload(true, 60000), cond) {
		t.Error("successful long call must not indicate failure")
	}
}

func TestEvaluateConditionsAndCombined(t *testing.T) {
	payload := callPayload(true, 60000)
	conditions := []metadata.TriggerFilter{
		{Operator: OpIndicatesSuccess},
		{Field: "duration_ms", Operator: OpGreaterThan, Value: 30000},
	}
	if !EvaluateConditions(payload, conditions) {
		t.Error("all conditions hold, set must pass")
	}

	conditions = append(conditions, metadata.TriggerFilter{Operator: OpIndicatesFailure})
	if EvaluateConditions(payload, conditions) {
		t.Error("one failing condition must fail the set")
	}
}
