package engine

import (
	"fmt"
	"log"
	"strings"

	"callbridge-backend/internal/metadata"
)

// Basic filter operators shared by trigger filters and workflow conditions.
const (
	OpEquals      = "equals"
	OpNotEquals   = "not_equals"
	OpContains    = "contains"
	OpNotContains = "not_contains"
	OpGreaterThan = "greater_than"
	OpLessThan    = "less_than"
	OpExists      = "exists"
	OpNotExists   = "not_exists"
)

// Semantic operators available only to workflow conditions.
const (
	OpIndicatesSuccess = "indicates_success"
	OpIndicatesBooking = "indicates_booking"
	OpIndicatesFailure = "indicates_failure"
)

// Keyword lists driving the semantic detectors.
var (
	successKeywords = []string{"success", "successful", "booked", "confirmed", "scheduled", "completed", "interested"}
	bookingKeywords = []string{"book", "appointment", "schedule", "meeting", "demo", "consultation"}
)

// shortCallThresholdMs is the duration below which a call counts as failed.
const shortCallThresholdMs = 30000

// ResolvePath walks a dot-path ("a.b.c") through nested maps. The second
// return is false if any intermediate is missing or not a map.
func ResolvePath(payload map[string]any, path string) (any, bool) {
	if path == "" {
		return nil, false
	}
	var current any = payload
	for _, part := range strings.Split(path, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// EvaluateFilters evaluates trigger filters against a payload. Filters are
// AND-combined; an empty list always matches. Unknown operators log a warning
// and pass (basic filters are permissive by default).
func EvaluateFilters(payload map[string]any, filters []metadata.TriggerFilter) bool {
	for _, f := range filters {
		result, known := evaluateBasic(payload, f)
		if !known {
			log.Printf("WARN: unknown filter operator %q on field %q, passing", f.Operator, f.Field)
			continue
		}
		if !result {
			return false
		}
	}
	return true
}

// EvaluateConditions evaluates workflow conditions, which extend the basic
// operator set with the semantic detectors. AND-combined; empty list matches.
func EvaluateConditions(payload map[string]any, conditions []metadata.TriggerFilter) bool {
	for _, c := range conditions {
		if !EvaluateCondition(payload, c) {
			return false
		}
	}
	return true
}

// EvaluateCondition evaluates one workflow condition. Unlike the basic filter
// path, an unrecognized operator here fails closed: smart detectors are
// conservative where plain filters are permissive.
func EvaluateCondition(payload map[string]any, c metadata.TriggerFilter) bool {
	switch c.Operator {
	case OpIndicatesSuccess:
		return indicatesSuccess(payload)
	case OpIndicatesBooking:
		return indicatesBooking(payload)
	case OpIndicatesFailure:
		return indicatesFailure(payload)
	default:
		result, known := evaluateBasic(payload, c)
		if !known {
			log.Printf("WARN: unknown condition operator %q on field %q, failing closed", c.Operator, c.Field)
			return false
		}
		return result
	}
}

// evaluateBasic applies one of the fixed basic operators. The second return
// is false when the operator is not recognized.
func evaluateBasic(payload map[string]any, f metadata.TriggerFilter) (bool, bool) {
	val, present := ResolvePath(payload, f.Field)

	switch f.Operator {
	case OpEquals:
		return present && looseEquals(val, f.Value), true
	case OpNotEquals:
		return !present || !looseEquals(val, f.Value), true
	case OpContains:
		return present && strings.Contains(asString(val), asString(f.Value)), true
	case OpNotContains:
		return !present || !strings.Contains(asString(val), asString(f.Value)), true
	case OpGreaterThan:
		a, aok := toFloat64(val)
		b, bok := toFloat64(f.Value)
		return present && aok && bok && a > b, true
	case OpLessThan:
		a, aok := toFloat64(val)
		b, bok := toFloat64(f.Value)
		return present && aok && bok && a < b, true
	case OpExists:
		return present && val != nil, true
	case OpNotExists:
		return !present || val == nil, true
	}
	return false, false
}

// ── Semantic detectors ──
// These read the voice platform's call analysis block:
// call_analysis.{call_successful, in_voicemail, custom_analysis_data} and
// the top-level duration_ms.

func indicatesSuccess(payload map[string]any) bool {
	if flag, ok := ResolvePath(payload, "call_analysis.call_successful"); ok {
		if b, isBool := flag.(bool); isBool && b {
			return true
		}
	}
	custom := customAnalysisData(payload)
	for _, v := range custom {
		s := strings.ToLower(asString(v))
		for _, kw := range successKeywords {
			if strings.Contains(s, kw) {
				return true
			}
		}
	}
	return false
}

func indicatesBooking(payload map[string]any) bool {
	for k, v := range customAnalysisData(payload) {
		key := strings.ToLower(k)
		val := strings.ToLower(asString(v))
		for _, kw := range bookingKeywords {
			if strings.Contains(key, kw) || strings.Contains(val, kw) {
				return true
			}
		}
	}
	return false
}

func indicatesFailure(payload map[string]any) bool {
	analysis, hasAnalysis := ResolvePath(payload, "call_analysis")
	if !hasAnalysis || analysis == nil {
		return true
	}
	if flag, ok := ResolvePath(payload, "call_analysis.call_successful"); ok {
		if b, isBool := flag.(bool); isBool && !b {
			return true
		}
	}
	if vm, ok := ResolvePath(payload, "call_analysis.in_voicemail"); ok {
		if b, isBool := vm.(bool); isBool && b {
			return true
		}
	}
	if dur, ok := ResolvePath(payload, "duration_ms"); ok {
		if d, isNum := toFloat64(dur); isNum && d < shortCallThresholdMs {
			return true
		}
	}
	return false
}

func customAnalysisData(payload map[string]any) map[string]any {
	raw, ok := ResolvePath(payload, "call_analysis.custom_analysis_data")
	if !ok {
		return nil
	}
	m, _ := raw.(map[string]any)
	return m
}

// ── Conversion helpers ──

func looseEquals(a, b any) bool {
	if a == nil || b == nil {
		return a == b
	}
	if fa, aok := toFloat64(a); aok {
		if fb, bok := toFloat64(b); bok {
			return fa == fb
		}
	}
	return asString(a) == asString(b)
}

func asString(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	}
	return 0, false
}
