package crm

import (
	"context"
	"log"
	"strings"
	"sync"
)

// MemoryClient is an in-process CRM backed by maps. It stands in for a real
// provider adapter in development, the same way a log notifier stands in for
// a mail sender: every operation works and is logged, nothing leaves the
// process. Search semantics are substring matches over the common lookup
// fields so the pipeline's search-before-create flow behaves realistically.
type MemoryClient struct {
	mu         sync.Mutex
	nextID     int
	persons    map[int]Record
	deals      map[int]Record
	activities map[int]Record
}

func NewMemoryClient() *MemoryClient {
	return &MemoryClient{
		persons:    map[int]Record{},
		deals:      map[int]Record{},
		activities: map[int]Record{},
	}
}

// MemoryFactory returns the same shared client for every access token, so
// records persist across events within one process.
func MemoryFactory() Factory {
	client := NewMemoryClient()
	return func(string) Client { return client }
}

func (c *MemoryClient) CreatePerson(_ context.Context, data map[string]any) (Record, error) {
	return c.create("person", c.persons, data), nil
}

func (c *MemoryClient) UpdatePerson(_ context.Context, id any, data map[string]any) (Record, error) {
	return c.update("person", c.persons, id, data), nil
}

func (c *MemoryClient) CreateDeal(_ context.Context, data map[string]any) (Record, error) {
	return c.create("deal", c.deals, data), nil
}

func (c *MemoryClient) UpdateDeal(_ context.Context, id any, data map[string]any) (Record, error) {
	return c.update("deal", c.deals, id, data), nil
}

func (c *MemoryClient) CreateActivity(_ context.Context, data map[string]any) (Record, error) {
	return c.create("activity", c.activities, data), nil
}

func (c *MemoryClient) UpdateActivity(_ context.Context, id any, data map[string]any) (Record, error) {
	return c.update("activity", c.activities, id, data), nil
}

func (c *MemoryClient) GetPersons(_ context.Context, q Query) ([]Record, error) {
	return c.find(c.persons, q, "phone", "email", "name"), nil
}

func (c *MemoryClient) GetDeals(_ context.Context, q Query) ([]Record, error) {
	return c.find(c.deals, q, "title"), nil
}

func (c *MemoryClient) GetActivities(_ context.Context, q Query) ([]Record, error) {
	return c.find(c.activities, q, "subject"), nil
}

func (c *MemoryClient) create(kind string, records map[int]Record, data map[string]any) Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	rec := Record{"id": c.nextID}
	for k, v := range data {
		rec[k] = v
	}
	records[c.nextID] = rec
	log.Printf("crm(memory): created %s %d", kind, c.nextID)
	return rec
}

func (c *MemoryClient) update(kind string, records map[int]Record, id any, data map[string]any) Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := intID(id)
	rec, ok := records[key]
	if !ok {
		rec = Record{"id": key}
		records[key] = rec
	}
	for k, v := range data {
		rec[k] = v
	}
	log.Printf("crm(memory): updated %s %v", kind, id)
	return rec
}

func (c *MemoryClient) find(records map[int]Record, q Query, searchFields ...string) []Record {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []Record
	for _, rec := range records {
		if q.PersonID != nil && intID(rec["person_id"]) != intID(q.PersonID) {
			continue
		}
		if q.DealID != nil && intID(rec["deal_id"]) != intID(q.DealID) {
			continue
		}
		if q.Term != "" && !matchesTerm(rec, q.Term, searchFields) {
			continue
		}
		out = append(out, rec)
		if q.Limit > 0 && len(out) >= q.Limit {
			break
		}
	}
	return out
}

func matchesTerm(rec Record, term string, fields []string) bool {
	needle := strings.ToLower(term)
	for _, f := range fields {
		if s, ok := rec[f].(string); ok && strings.Contains(strings.ToLower(s), needle) {
			return true
		}
	}
	return false
}

func intID(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return 0
}
