package metadata

// Stage is one deal stage in a CRM pipeline.
type Stage struct {
	ID         int    `json:"id"`
	Name       string `json:"name"`
	PipelineID int    `json:"pipeline_id"`
}

// Pipeline is one CRM deal pipeline.
type Pipeline struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// FieldOption is one selectable option of an enum custom field.
type FieldOption struct {
	ID    int    `json:"id"`
	Label string `json:"label"`
}

// SchemaField describes one CRM custom field, keyed by its API key.
type SchemaField struct {
	Key     string        `json:"key"`
	Name    string        `json:"name"`
	Options []FieldOption `json:"options,omitempty"`
}

// ActivityType is one CRM activity type.
type ActivityType struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// CRMSchema is the read-only snapshot of a CRM account's structure used to
// validate mapped payloads before dispatch.
type CRMSchema struct {
	Stages        []Stage        `json:"stages"`
	Pipelines     []Pipeline     `json:"pipelines"`
	DealFields    []SchemaField  `json:"deal_fields"`
	PersonFields  []SchemaField  `json:"person_fields"`
	ActivityTypes []ActivityType `json:"activity_types"`
	DealLabels    []string       `json:"deal_labels"`
	PersonLabels  []string       `json:"person_labels"`
}

// HasStage reports whether the stage id exists in the schema.
func (s *CRMSchema) HasStage(id int) bool {
	for _, st := range s.Stages {
		if st.ID == id {
			return true
		}
	}
	return false
}

// HasPipeline reports whether the pipeline id exists in the schema.
func (s *CRMSchema) HasPipeline(id int) bool {
	for _, p := range s.Pipelines {
		if p.ID == id {
			return true
		}
	}
	return false
}

// HasActivityType reports whether the activity type id exists in the schema.
func (s *CRMSchema) HasActivityType(id int) bool {
	for _, at := range s.ActivityTypes {
		if at.ID == id {
			return true
		}
	}
	return false
}

// KnowsFieldKey reports whether the given custom field key is part of the
// schema for the given object ("deal" or "person"), either as a field or a
// label entry.
func (s *CRMSchema) KnowsFieldKey(object, key string) bool {
	var fields []SchemaField
	var labels []string
	switch object {
	case "deal":
		fields, labels = s.DealFields, s.DealLabels
	case "person":
		fields, labels = s.PersonFields, s.PersonLabels
	default:
		return false
	}
	for _, f := range fields {
		if f.Key == key {
			return true
		}
	}
	for _, l := range labels {
		if l == key {
			return true
		}
	}
	return false
}
