// Package crm defines the capability interface the pipeline writes through.
// Concrete provider clients live outside the core; the pipeline only depends
// on this contract and must be able to call every operation more than once
// for the same logical retry.
package crm

import "context"

// Record is one CRM object as returned by a provider.
type Record map[string]any

// ID returns the record's id field as a generic value, or nil.
func (r Record) ID() any {
	if r == nil {
		return nil
	}
	return r["id"]
}

// Query narrows a Get* call. All fields are optional.
type Query struct {
	Term     string
	PersonID any
	DealID   any
	Limit    int
}

// Client is the set of operations a CRM adapter must provide.
type Client interface {
	CreatePerson(ctx context.Context, data map[string]any) (Record, error)
	UpdatePerson(ctx context.Context, id any, data map[string]any) (Record, error)
	CreateDeal(ctx context.Context, data map[string]any) (Record, error)
	UpdateDeal(ctx context.Context, id any, data map[string]any) (Record, error)
	CreateActivity(ctx context.Context, data map[string]any) (Record, error)
	UpdateActivity(ctx context.Context, id any, data map[string]any) (Record, error)
	GetPersons(ctx context.Context, q Query) ([]Record, error)
	GetDeals(ctx context.Context, q Query) ([]Record, error)
	GetActivities(ctx context.Context, q Query) ([]Record, error)
}

// Factory builds a client for one integration's CRM account.
type Factory func(accessToken string) Client

// Registry maps CRM provider names to client factories. Providers register
// themselves at startup; the pipeline resolves by name.
type Registry struct {
	factories map[string]Factory
}

func NewClientRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds or replaces a provider factory.
func (r *Registry) Register(provider string, f Factory) {
	r.factories[provider] = f
}

// Client resolves a client for the provider, or false when unknown.
func (r *Registry) Client(provider, accessToken string) (Client, bool) {
	f, ok := r.factories[provider]
	if !ok {
		return nil, false
	}
	return f(accessToken), true
}
