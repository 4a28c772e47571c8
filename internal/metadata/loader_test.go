package metadata

import "testing"

func TestParseIntegrationRow(t *testing.T) {
	row := map[string]any{
		"id":             "int-1",
		"name":           "Acme Voice",
		"provider":       "retell",
		"crm_provider":   "pipedrive",
		"access_token":   "tok",
		"webhook_secret": "whsec",
		"active":         int64(1),
		"settings":       `{"pipeline_id":1,"stage_id":10}`,
		"field_mappings": `[{"source_field":"from_number","target_field":"person.phone","required":true}]`,
		"trigger_filters": `[{"field":"event","operator":"equals","value":"call_analyzed"}]`,
		"workflows": `[{"id":"wf-1","name":"Book it","trigger":{"event":"call_triggered"},
			"actions":[{"type":"create_deal","fields":{"title":"{{name}}"}}],"enabled":true}]`,
		"crm_schema":    []byte(`{"stages":[{"id":10,"name":"Lead In","pipeline_id":1}]}`),
		"notifications": `{"email":"owner@example.com","on_error":true}`,
	}

	it, err := parseIntegrationRow(row)
	if err != nil {
		t.Fatalf("parseIntegrationRow: %v", err)
	}

	if it.ID != "int-1" || it.CRMProvider != "pipedrive" || !it.Active {
		t.Errorf("identity fields wrong: %+v", it)
	}
	if it.Settings.PipelineID != 1 || it.Settings.StageID != 10 {
		t.Errorf("settings = %+v", it.Settings)
	}
	if len(it.FieldMappings) != 1 || !it.FieldMappings[0].Required {
		t.Errorf("field mappings = %+v", it.FieldMappings)
	}
	if len(it.TriggerFilters) != 1 || it.TriggerFilters[0].Operator != "equals" {
		t.Errorf("trigger filters = %+v", it.TriggerFilters)
	}
	if len(it.Workflows) != 1 || len(it.Workflows[0].Actions) != 1 {
		t.Errorf("workflows = %+v", it.Workflows)
	}
	if !it.Schema.HasStage(10) {
		t.Error("crm schema not decoded")
	}
	if it.Notifications.Email != "owner@example.com" || !it.Notifications.OnError {
		t.Errorf("notifications = %+v", it.Notifications)
	}
}

func TestParseIntegrationRowBadJSON(t *testing.T) {
	row := map[string]any{
		"id": "int-2", "name": "Broken", "provider": "retell", "crm_provider": "pipedrive",
		"access_token": "", "webhook_secret": "", "active": true,
		"field_mappings": `{not json`,
	}
	if _, err := parseIntegrationRow(row); err == nil {
		t.Fatal("malformed configuration JSON must fail the row")
	}
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	reg.Load([]*Integration{{ID: "a"}, {ID: "b"}})

	if reg.Get("a") == nil || reg.Get("b") == nil {
		t.Error("loaded integrations must resolve")
	}
	if reg.Get("c") != nil {
		t.Error("unknown id must return nil")
	}
	if len(reg.All()) != 2 {
		t.Errorf("All() = %d entries", len(reg.All()))
	}

	// Load replaces, not merges.
	reg.Load([]*Integration{{ID: "c"}})
	if reg.Get("a") != nil || len(reg.All()) != 1 {
		t.Error("Load must replace the previous set")
	}
}
