package metadata

// FieldMapping is a declarative rule translating one source field into one
// target field, with an optional transform. Owned by an integration and
// read-only to the mapping engine.
type FieldMapping struct {
	SourceField string `json:"source_field"`
	TargetField string `json:"target_field"`
	Transform   string `json:"transform,omitempty"`
	Required    bool   `json:"required"`
}

// TriggerFilter is one field/operator/value predicate over an event payload.
// A list of filters is implicitly AND-combined; an empty list always matches.
type TriggerFilter struct {
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Value    any    `json:"value,omitempty"`
}

// WorkflowTrigger names the event type that starts a workflow.
type WorkflowTrigger struct {
	Event string `json:"event"`
}

// WorkflowAction is one templated CRM write in a workflow chain.
// Field values may contain {{dotted.path}} placeholders resolved against the
// execution context.
type WorkflowAction struct {
	Type      string         `json:"type"` // create_person, update_person, create_deal, update_deal, create_activity, update_activity
	CRMObject string         `json:"crm_object,omitempty"`
	Fields    map[string]any `json:"fields"`
}

// BusinessWorkflow is an ordered chain of CRM actions triggered by an event
// type and conditions. Workflows are configuration, not runtime state.
type BusinessWorkflow struct {
	ID         string           `json:"id"`
	Name       string           `json:"name"`
	Trigger    WorkflowTrigger  `json:"trigger"`
	Conditions []TriggerFilter  `json:"conditions,omitempty"`
	Actions    []WorkflowAction `json:"actions"`
	Enabled    bool             `json:"enabled"`
}

// IntegrationSettings carries per-integration CRM defaults applied when a
// workflow or mapping does not set them explicitly.
type IntegrationSettings struct {
	PipelineID int `json:"pipeline_id,omitempty"`
	StageID    int `json:"stage_id,omitempty"`
	OwnerID    int `json:"owner_id,omitempty"`
}

// NotificationSettings controls the opt-in outcome notifications.
type NotificationSettings struct {
	Email     string `json:"email"`
	OnSuccess bool   `json:"on_success"`
	OnError   bool   `json:"on_error"`
}

// Integration binds a voice-platform account to a CRM account together with
// the active mappings, filters, and workflows. Read-only to the pipeline.
type Integration struct {
	ID             string               `json:"id"`
	Name           string               `json:"name"`
	Provider       string               `json:"provider"`     // voice platform, e.g. "retell"
	CRMProvider    string               `json:"crm_provider"` // e.g. "pipedrive"
	AccessToken    string               `json:"-"`
	WebhookSecret  string               `json:"-"`
	Settings       IntegrationSettings  `json:"settings"`
	FieldMappings  []FieldMapping       `json:"field_mappings"`
	TriggerFilters []TriggerFilter      `json:"trigger_filters"`
	Workflows      []BusinessWorkflow   `json:"workflows"`
	Schema         *CRMSchema           `json:"-"`
	Notifications  NotificationSettings `json:"notifications"`
	Active         bool                 `json:"active"`
}
