package engine

import (
	"errors"
	"reflect"
	"testing"

	"callbridge-backend/internal/metadata"
)

func testSchema() *metadata.CRMSchema {
	return &metadata.CRMSchema{
		Stages:        []metadata.Stage{{ID: 10, Name: "Lead In", PipelineID: 1}},
		Pipelines:     []metadata.Pipeline{{ID: 1, Name: "Sales"}},
		ActivityTypes: []metadata.ActivityType{{ID: 5, Name: "Call"}},
		DealFields:    []metadata.SchemaField{{Key: "lead_source", Name: "Lead Source"}},
		PersonLabels:  []string{"label"},
	}
}

func TestTransformBasicMapping(t *testing.T) {
	source := map[string]any{
		"caller_name": "jane doe",
		"from_number": "5551234567",
		"call_analysis": map[string]any{
			"call_summary": "Asked about roofing.",
		},
	}
	mappings := []metadata.FieldMapping{
		{SourceField: "caller_name", TargetField: "person.name", Transform: "capitalize"},
		{SourceField: "from_number", TargetField: "person.phone", Transform: "phone_format"},
		{SourceField: "call_analysis.call_summary", TargetField: "activity.note"},
	}

	out, err := Transform(source, mappings, nil)
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}

	person := out["person"].(map[string]any)
	if person["name"] != "Jane Doe" {
		t.Errorf("name = %v", person["name"])
	}
	if person["phone"] != "(555) 123-4567" {
		t.Errorf("phone = %v", person["phone"])
	}
	activity := out["activity"].(map[string]any)
	if activity["note"] != "Asked about roofing." {
		t.Errorf("note = %v", activity["note"])
	}
}

func TestTransformRequiredFieldMissing(t *testing.T) {
	mappings := []metadata.FieldMapping{
		{SourceField: "missing_field", TargetField: "person.name", Required: true},
	}
	out, err := Transform(map[string]any{"other": 1}, mappings, nil)
	if out != nil {
		t.Errorf("output should be nil on required-field failure, got %v", out)
	}
	var mapErr *MappingError
	if !errors.As(err, &mapErr) {
		t.Fatalf("expected MappingError, got %v", err)
	}
	if mapErr.Field != "missing_field" {
		t.Errorf("error field = %q", mapErr.Field)
	}
}

func TestTransformOptionalFieldSkipped(t *testing.T) {
	mappings := []metadata.FieldMapping{
		{SourceField: "present", TargetField: "person.name"},
		{SourceField: "absent", TargetField: "person.email"},
	}
	out, err := Transform(map[string]any{"present": "Jane"}, mappings, nil)
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	person := out["person"].(map[string]any)
	if _, ok := person["email"]; ok {
		t.Error("absent optional field must be skipped")
	}
	if person["name"] != "Jane" {
		t.Errorf("name = %v", person["name"])
	}
}

func TestTransformTransforms(t *testing.T) {
	tests := []struct {
		transform string
		in        any
		want      any
	}{
		{"uppercase", "hello", "HELLO"},
		{"lowercase", "HeLLo", "hello"},
		{"capitalize", "jane DOE smith", "Jane Doe Smith"},
		{"truncate_100", string(make([]byte, 150)), string(make([]byte, 100))},
		{"phone_format", "555-123-4567", "(555) 123-4567"},
		{"phone_format", "+447366842442", "447366842442"},
		{"", "untouched", "untouched"},
		{"no_such_transform", "untouched", "untouched"},
	}

	for _, tt := range tests {
		got := applyTransform(tt.in, tt.transform, nil)
		if got != tt.want {
			t.Errorf("applyTransform(%v, %q) = %v, want %v", tt.in, tt.transform, got, tt.want)
		}
	}
}

func TestTransformExpression(t *testing.T) {
	mappings := []metadata.FieldMapping{
		{SourceField: "amount", TargetField: "deal.value", Transform: "expression: value * 2"},
	}
	out, err := Transform(map[string]any{"amount": 100}, mappings, nil)
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	deal := out["deal"].(map[string]any)
	if got, _ := toFloat64(deal["value"]); got != 200 {
		t.Errorf("value = %v, want 200", deal["value"])
	}

	// A broken expression keeps the original value.
	mappings[0].Transform = "expression: ((("
	out, err = Transform(map[string]any{"amount": 100}, mappings, nil)
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	deal = out["deal"].(map[string]any)
	if got, _ := toFloat64(deal["value"]); got != 100 {
		t.Errorf("broken expression must keep value, got %v", deal["value"])
	}
}

func TestTransformSpecialTargets(t *testing.T) {
	source := map[string]any{"trigger": "x"}
	mappings := []metadata.FieldMapping{
		{SourceField: "trigger", TargetField: "deal.stage_id.10"},
		{SourceField: "trigger", TargetField: "activity.type.5"},
		{SourceField: "trigger", TargetField: "deal.owner_id.77"},
		{SourceField: "trigger", TargetField: "deal.lead_source.3"},
	}

	out, err := Transform(source, mappings, testSchema())
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}

	deal := out["deal"].(map[string]any)
	if deal["stage_id"] != 10 {
		t.Errorf("stage_id = %v", deal["stage_id"])
	}
	if deal["owner_id"] != 77 {
		t.Errorf("owner_id = %v", deal["owner_id"])
	}
	if deal["lead_source"] != 3 {
		t.Errorf("custom field option id = %v", deal["lead_source"])
	}
	activity := out["activity"].(map[string]any)
	if activity["type"] != 5 {
		t.Errorf("activity type = %v", activity["type"])
	}
}

func TestTransformUnknownCustomFieldSkipped(t *testing.T) {
	mappings := []metadata.FieldMapping{
		{SourceField: "trigger", TargetField: "deal.not_in_schema.3"},
	}
	out, err := Transform(map[string]any{"trigger": "x"}, mappings, testSchema())
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	if deal, ok := out["deal"].(map[string]any); ok {
		if _, set := deal["not_in_schema"]; set {
			t.Error("unknown custom field must not be set")
		}
	}
}

func TestTransformSchemaValidationDropsInvalidIDs(t *testing.T) {
	source := map[string]any{"trigger": "x"}
	mappings := []metadata.FieldMapping{
		{SourceField: "trigger", TargetField: "deal.stage_id.999"},
		{SourceField: "trigger", TargetField: "activity.type.888"},
	}

	out, err := Transform(source, mappings, testSchema())
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	if deal, ok := out["deal"].(map[string]any); ok {
		if _, set := deal["stage_id"]; set {
			t.Error("unknown stage_id must be dropped")
		}
	}
	if activity, ok := out["activity"].(map[string]any); ok {
		if _, set := activity["type"]; set {
			t.Error("unknown activity type must be dropped")
		}
	}
}

func TestTransformDeterministic(t *testing.T) {
	source := map[string]any{
		"caller_name": "jane doe",
		"from_number": "5551234567",
		"amount":      50,
	}
	mappings := []metadata.FieldMapping{
		{SourceField: "caller_name", TargetField: "person.name", Transform: "capitalize"},
		{SourceField: "from_number", TargetField: "person.phone", Transform: "phone_format"},
		{SourceField: "amount", TargetField: "deal.value", Transform: "expression: value * 3"},
	}

	first, err := Transform(source, mappings, testSchema())
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	second, err := Transform(source, mappings, testSchema())
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("same input must produce same output: %v vs %v", first, second)
	}
}

func TestSuggestFieldMappings(t *testing.T) {
	suggestions := SuggestFieldMappings([]string{"customer_phone", "email_address", "deal_amount", "weird_field"}, testSchema())

	byTarget := map[string]metadata.FieldMapping{}
	for _, s := range suggestions {
		byTarget[s.TargetField] = s
	}

	if m, ok := byTarget["person.phone"]; !ok || m.SourceField != "customer_phone" || m.Transform != "phone_format" {
		t.Errorf("phone suggestion wrong: %+v", byTarget["person.phone"])
	}
	if m, ok := byTarget["person.email"]; !ok || m.SourceField != "email_address" {
		t.Errorf("email suggestion wrong: %+v", byTarget["person.email"])
	}
	if _, ok := byTarget["deal.value"]; !ok {
		t.Error("deal_amount should map to deal.value")
	}
	if len(suggestions) != 3 {
		t.Errorf("unmatched fields must produce no suggestion, got %d", len(suggestions))
	}
}
