package engine

import (
	"context"
	"log"

	"callbridge-backend/internal/crm"
	"callbridge-backend/internal/extract"
	"callbridge-backend/internal/metadata"
	"callbridge-backend/internal/phone"
)

// This file holds the CRM write helpers shared by the mapped-payload executor
// and the workflow action executors. Correctness under at-least-once delivery
// comes from searching before creating, not from locking: calling any helper
// twice for the same logical event converges on the same CRM records.

// findOrCreatePerson reconciles a person payload against the CRM. The phone
// number is expanded into all equivalent representations so a caller stored
// as "07366842442" matches an event arriving as "+447366842442".
func findOrCreatePerson(ctx context.Context, client crm.Client, data map[string]any) (crm.Record, error) {
	phoneNumber := asString(data["phone"])

	for _, v := range phone.Variations(phoneNumber) {
		found, err := client.GetPersons(ctx, crm.Query{Term: v.Format, Limit: 1})
		if err != nil {
			return nil, &RemoteError{Op: "search persons", Err: err}
		}
		if len(found) > 0 {
			rec, err := client.UpdatePerson(ctx, found[0].ID(), data)
			if err != nil {
				return nil, &RemoteError{Op: "update person", Err: err}
			}
			return rec, nil
		}
	}

	if email := asString(data["email"]); email != "" && phoneNumber == "" {
		found, err := client.GetPersons(ctx, crm.Query{Term: email, Limit: 1})
		if err != nil {
			return nil, &RemoteError{Op: "search persons", Err: err}
		}
		if len(found) > 0 {
			rec, err := client.UpdatePerson(ctx, found[0].ID(), data)
			if err != nil {
				return nil, &RemoteError{Op: "update person", Err: err}
			}
			return rec, nil
		}
	}

	rec, err := client.CreatePerson(ctx, data)
	if err != nil {
		return nil, &RemoteError{Op: "create person", Err: err}
	}
	return rec, nil
}

// createDeal fills in the integration's pipeline/stage defaults and a
// generated title before writing, then searches for an existing open deal on
// the same person with the same title to stay idempotent across retries.
func createDeal(ctx context.Context, client crm.Client, integ *metadata.Integration, data map[string]any, payload map[string]any) (crm.Record, error) {
	if _, ok := data["title"]; !ok {
		data["title"] = dealTitleFromPayload(payload)
	}
	if _, ok := data["pipeline_id"]; !ok && integ.Settings.PipelineID != 0 {
		data["pipeline_id"] = integ.Settings.PipelineID
	}
	if _, ok := data["stage_id"]; !ok && integ.Settings.StageID != 0 {
		data["stage_id"] = integ.Settings.StageID
	}

	if personID := data["person_id"]; personID != nil {
		existing, err := client.GetDeals(ctx, crm.Query{PersonID: personID})
		if err != nil {
			return nil, &RemoteError{Op: "search deals", Err: err}
		}
		for _, d := range existing {
			if asString(d["title"]) == asString(data["title"]) {
				rec, err := client.UpdateDeal(ctx, d.ID(), data)
				if err != nil {
					return nil, &RemoteError{Op: "update deal", Err: err}
				}
				return rec, nil
			}
		}
	}

	rec, err := client.CreateDeal(ctx, data)
	if err != nil {
		return nil, &RemoteError{Op: "create deal", Err: err}
	}
	return rec, nil
}

// dealTitleFromPayload builds a human-readable deal title out of the call
// analysis block, degrading to the caller number.
func dealTitleFromPayload(payload map[string]any) string {
	summary := ""
	if s, ok := ResolvePath(payload, "call_analysis.call_summary"); ok {
		summary = asString(s)
	}
	var vars map[string]any
	if v, ok := ResolvePath(payload, "retell_llm_dynamic_variables"); ok {
		vars, _ = v.(map[string]any)
	}
	from := ""
	if f, ok := ResolvePath(payload, "from_number"); ok {
		from = asString(f)
	}
	return extract.GenerateDealTitle(summary, vars, from)
}

// ExecuteMapped drives the CRM writes for a mapped payload: person first, so
// the deal can reference it, then deal, then activity. Each write is a best
// effort step; the first failure aborts the remainder.
func ExecuteMapped(ctx context.Context, client crm.Client, integ *metadata.Integration, mapped, payload map[string]any) (map[string]crm.Record, error) {
	written := map[string]crm.Record{}

	if person, ok := mapped[bucketPerson].(map[string]any); ok && len(person) > 0 {
		rec, err := findOrCreatePerson(ctx, client, person)
		if err != nil {
			return written, err
		}
		written[bucketPerson] = rec
	}

	if deal, ok := mapped[bucketDeal].(map[string]any); ok && len(deal) > 0 {
		if p, hit := written[bucketPerson]; hit && deal["person_id"] == nil {
			deal["person_id"] = p.ID()
		}
		rec, err := createDeal(ctx, client, integ, deal, payload)
		if err != nil {
			return written, err
		}
		written[bucketDeal] = rec
	}

	if activity, ok := mapped[bucketActivity].(map[string]any); ok && len(activity) > 0 {
		if p, hit := written[bucketPerson]; hit && activity["person_id"] == nil {
			activity["person_id"] = p.ID()
		}
		if d, hit := written[bucketDeal]; hit && activity["deal_id"] == nil {
			activity["deal_id"] = d.ID()
		}
		rec, err := client.CreateActivity(ctx, activity)
		if err != nil {
			return written, &RemoteError{Op: "create activity", Err: err}
		}
		written[bucketActivity] = rec
	}

	if len(written) == 0 {
		log.Printf("WARN: mapped payload produced no CRM writes")
	}
	return written, nil
}
