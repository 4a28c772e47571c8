package engine

import (
	"context"
	"fmt"
	"log"

	"callbridge-backend/internal/crm"
	"callbridge-backend/internal/instrument"
	"callbridge-backend/internal/metadata"
)

// ActionResult is the outcome of one workflow action.
type ActionResult struct {
	Index   int        `json:"index"`
	Type    string     `json:"type"`
	Success bool       `json:"success"`
	ID      any        `json:"id,omitempty"`
	Data    crm.Record `json:"data,omitempty"`
	Error   string     `json:"error,omitempty"`
}

// WorkflowResult is the transient, non-persisted outcome of one workflow run.
type WorkflowResult struct {
	WorkflowID string         `json:"workflow_id"`
	Name       string         `json:"name"`
	Completed  bool           `json:"completed"`
	Actions    []ActionResult `json:"actions"`
}

// ActionExecutor handles execution of a single workflow action type.
type ActionExecutor interface {
	Execute(ctx context.Context, client crm.Client, integ *metadata.Integration, fields map[string]any, payload map[string]any) (crm.Record, error)
}

// WorkflowRunner executes the business workflows of an integration against
// its CRM account. Tests swap the executor map or the client.
type WorkflowRunner struct {
	executors map[string]ActionExecutor
}

func NewWorkflowRunner() *WorkflowRunner {
	return &WorkflowRunner{executors: DefaultActionExecutors()}
}

func NewWorkflowRunnerWithExecutors(executors map[string]ActionExecutor) *WorkflowRunner {
	return &WorkflowRunner{executors: executors}
}

// RunAll executes every enabled workflow whose trigger matches the event type
// and whose conditions hold. Workflows are independent: one failing does not
// stop the others. Disabled, non-matching, and empty workflows do not appear
// in the result list.
func (r *WorkflowRunner) RunAll(ctx context.Context, client crm.Client, integ *metadata.Integration, eventType string, payload map[string]any) []WorkflowResult {
	ctx, span := instrument.GetInstrumenter(ctx).StartSpan(ctx, "workflow", "runner", "workflow.run_all")
	defer span.End()
	span.SetMetadata("event_type", eventType)

	var results []WorkflowResult
	for i := range integ.Workflows {
		wf := &integ.Workflows[i]
		if !wf.Enabled || wf.Trigger.Event != eventType || len(wf.Actions) == 0 {
			continue
		}
		if !EvaluateConditions(payload, wf.Conditions) {
			continue
		}
		results = append(results, r.run(ctx, client, integ, wf, payload))
	}

	span.SetStatus("ok")
	span.SetMetadata("workflows_run", len(results))
	return results
}

// run executes one workflow's actions in order. Execution stops at the first
// failing action; earlier successful writes are never rolled back.
func (r *WorkflowRunner) run(ctx context.Context, client crm.Client, integ *metadata.Integration, wf *metadata.BusinessWorkflow, payload map[string]any) WorkflowResult {
	result := WorkflowResult{WorkflowID: wf.ID, Name: wf.Name}

	var previous crm.Record
	stepResults := map[string]any{}

	for i, action := range wf.Actions {
		execCtx := buildActionContext(payload, previous, stepResults)
		fields := ResolveFields(action.Fields, execCtx)

		executor, ok := r.executors[action.Type]
		if !ok {
			err := &ConfigError{Message: fmt.Sprintf("unsupported action type: %s", action.Type)}
			log.Printf("ERROR: workflow %s action %d: %v", wf.Name, i, err)
			result.Actions = append(result.Actions, ActionResult{Index: i, Type: action.Type, Error: err.Error()})
			return result
		}

		rec, err := executor.Execute(ctx, client, integ, fields, payload)
		if err != nil {
			log.Printf("ERROR: workflow %s action %d (%s) failed: %v", wf.Name, i, action.Type, err)
			result.Actions = append(result.Actions, ActionResult{Index: i, Type: action.Type, Error: err.Error()})
			return result
		}

		result.Actions = append(result.Actions, ActionResult{
			Index: i, Type: action.Type, Success: true, ID: rec.ID(), Data: rec,
		})
		previous = rec
		stepResults[fmt.Sprintf("action_%d_result", i)] = map[string]any(rec)
	}

	result.Completed = true
	return result
}

// buildActionContext merges the raw event payload with the prior action's
// result and the indexed result slots, for template resolution.
func buildActionContext(payload map[string]any, previous crm.Record, stepResults map[string]any) map[string]any {
	ctx := make(map[string]any, len(payload)+len(stepResults)+1)
	for k, v := range payload {
		ctx[k] = v
	}
	for k, v := range stepResults {
		ctx[k] = v
	}
	if previous != nil {
		ctx["previous_action_result"] = map[string]any(previous)
	}
	return ctx
}

// ── Built-in action executors ──

type createPersonExecutor struct{}

func (e *createPersonExecutor) Execute(ctx context.Context, client crm.Client, _ *metadata.Integration, fields map[string]any, _ map[string]any) (crm.Record, error) {
	return findOrCreatePerson(ctx, client, fields)
}

type updatePersonExecutor struct{}

func (e *updatePersonExecutor) Execute(ctx context.Context, client crm.Client, _ *metadata.Integration, fields map[string]any, _ map[string]any) (crm.Record, error) {
	id, ok := takeID(fields)
	if !ok {
		return nil, &MappingError{Field: "id", Message: "update_person requires an id field"}
	}
	rec, err := client.UpdatePerson(ctx, id, fields)
	if err != nil {
		return nil, &RemoteError{Op: "update person", Err: err}
	}
	return rec, nil
}

type createDealExecutor struct{}

func (e *createDealExecutor) Execute(ctx context.Context, client crm.Client, integ *metadata.Integration, fields map[string]any, payload map[string]any) (crm.Record, error) {
	return createDeal(ctx, client, integ, fields, payload)
}

type updateDealExecutor struct{}

func (e *updateDealExecutor) Execute(ctx context.Context, client crm.Client, _ *metadata.Integration, fields map[string]any, _ map[string]any) (crm.Record, error) {
	id, ok := takeID(fields)
	if !ok {
		return nil, &MappingError{Field: "id", Message: "update_deal requires an id field"}
	}
	rec, err := client.UpdateDeal(ctx, id, fields)
	if err != nil {
		return nil, &RemoteError{Op: "update deal", Err: err}
	}
	return rec, nil
}

type createActivityExecutor struct{}

func (e *createActivityExecutor) Execute(ctx context.Context, client crm.Client, _ *metadata.Integration, fields map[string]any, _ map[string]any) (crm.Record, error) {
	rec, err := client.CreateActivity(ctx, fields)
	if err != nil {
		return nil, &RemoteError{Op: "create activity", Err: err}
	}
	return rec, nil
}

type updateActivityExecutor struct{}

func (e *updateActivityExecutor) Execute(ctx context.Context, client crm.Client, _ *metadata.Integration, fields map[string]any, _ map[string]any) (crm.Record, error) {
	id, ok := takeID(fields)
	if !ok {
		return nil, &MappingError{Field: "id", Message: "update_activity requires an id field"}
	}
	rec, err := client.UpdateActivity(ctx, id, fields)
	if err != nil {
		return nil, &RemoteError{Op: "update activity", Err: err}
	}
	return rec, nil
}

// DefaultActionExecutors returns the built-in set of action executors.
func DefaultActionExecutors() map[string]ActionExecutor {
	return map[string]ActionExecutor{
		"create_person":   &createPersonExecutor{},
		"update_person":   &updatePersonExecutor{},
		"create_deal":     &createDealExecutor{},
		"update_deal":     &updateDealExecutor{},
		"create_activity": &createActivityExecutor{},
		"update_activity": &updateActivityExecutor{},
	}
}

func takeID(fields map[string]any) (any, bool) {
	id, ok := fields["id"]
	if !ok || id == nil {
		return nil, false
	}
	delete(fields, "id")
	return id, true
}
