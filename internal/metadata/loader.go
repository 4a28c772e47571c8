package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"callbridge-backend/internal/store"
)

// LoadAll reads all active integrations from the database and populates the
// registry. Integrations with malformed configuration JSON are skipped with a
// warning rather than failing the whole load.
func LoadAll(ctx context.Context, q store.Querier, reg *Registry) error {
	rows, err := store.QueryRows(ctx, q,
		`SELECT id, name, provider, crm_provider, access_token, webhook_secret,
		        settings, field_mappings, trigger_filters, workflows, crm_schema,
		        notifications, active
		 FROM _integrations ORDER BY name`)
	if err != nil {
		return fmt.Errorf("load integrations: %w", err)
	}

	var integrations []*Integration
	for _, row := range rows {
		it, err := parseIntegrationRow(row)
		if err != nil {
			log.Printf("WARN: skipping integration %v: %v", row["id"], err)
			continue
		}
		integrations = append(integrations, it)
	}

	reg.Load(integrations)
	log.Printf("Loaded %d integrations into registry", len(integrations))
	return nil
}

// Reload is an alias for LoadAll, called after admin mutations.
func Reload(ctx context.Context, q store.Querier, reg *Registry) error {
	return LoadAll(ctx, q, reg)
}

func parseIntegrationRow(row map[string]any) (*Integration, error) {
	it := &Integration{
		ID:            fmt.Sprintf("%v", row["id"]),
		Name:          fmt.Sprintf("%v", row["name"]),
		Provider:      fmt.Sprintf("%v", row["provider"]),
		CRMProvider:   fmt.Sprintf("%v", row["crm_provider"]),
		AccessToken:   fmt.Sprintf("%v", row["access_token"]),
		WebhookSecret: fmt.Sprintf("%v", row["webhook_secret"]),
		Active:        toBool(row["active"]),
	}

	if err := decodeJSONColumn(row["settings"], &it.Settings); err != nil {
		return nil, fmt.Errorf("settings: %w", err)
	}
	if err := decodeJSONColumn(row["field_mappings"], &it.FieldMappings); err != nil {
		return nil, fmt.Errorf("field_mappings: %w", err)
	}
	if err := decodeJSONColumn(row["trigger_filters"], &it.TriggerFilters); err != nil {
		return nil, fmt.Errorf("trigger_filters: %w", err)
	}
	if err := decodeJSONColumn(row["workflows"], &it.Workflows); err != nil {
		return nil, fmt.Errorf("workflows: %w", err)
	}
	schema := &CRMSchema{}
	if err := decodeJSONColumn(row["crm_schema"], schema); err != nil {
		return nil, fmt.Errorf("crm_schema: %w", err)
	}
	it.Schema = schema
	if err := decodeJSONColumn(row["notifications"], &it.Notifications); err != nil {
		return nil, fmt.Errorf("notifications: %w", err)
	}

	return it, nil
}

// decodeJSONColumn handles both drivers: postgres hands JSONB back as []byte
// or string, sqlite always as string.
func decodeJSONColumn(v any, dest any) error {
	if v == nil {
		return nil
	}
	switch val := v.(type) {
	case []byte:
		return json.Unmarshal(val, dest)
	case string:
		if val == "" {
			return nil
		}
		return json.Unmarshal([]byte(val), dest)
	default:
		data, err := json.Marshal(val)
		if err != nil {
			return err
		}
		return json.Unmarshal(data, dest)
	}
}

func toBool(v any) bool {
	switch val := v.(type) {
	case bool:
		return val
	case int64:
		return val != 0
	case float64:
		return val != 0
	default:
		return false
	}
}
