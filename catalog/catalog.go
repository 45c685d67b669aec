package catalog

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/OfekiAlm/practical-networking-from-zero-to-hero/job"
)

// Catalog is an immutable id -> Entry mapping, safe for concurrent use.
type Catalog struct {
	entries map[string]*Entry
	ids     []string
}

// New builds a Catalog. Duplicate or malformed entries are rejected.
func New(entries ...Entry) (*Catalog, error) {
	c := &Catalog{entries: make(map[string]*Entry, len(entries))}
	for i := range entries {
		e := entries[i]
		if err := e.check(); err != nil {
			return nil, err
		}
		if _, exists := c.entries[e.ID]; exists {
			return nil, fmt.Errorf("demo %q is already registered", e.ID)
		}
		c.entries[e.ID] = &e
		c.ids = append(c.ids, e.ID)
	}
	sort.Strings(c.ids)
	return c, nil
}

// MustNew is like New but panics on error. Intended for static registrations.
func MustNew(entries ...Entry) *Catalog {
	c, err := New(entries...)
	if err != nil {
		panic(err)
	}
	return c
}

// Lookup returns the entry registered under id.
func (c *Catalog) Lookup(id string) (*Entry, error) {
	e, ok := c.entries[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", job.ErrUnknownDemo, id)
	}
	return e, nil
}

// Validate looks up id and decodes raw against its schema.
func (c *Catalog) Validate(id string, raw json.RawMessage) (*Entry, any, error) {
	e, err := c.Lookup(id)
	if err != nil {
		return nil, nil, err
	}
	params, err := e.DecodeParams(raw)
	if err != nil {
		return e, nil, err
	}
	return e, params, nil
}

// List returns all entries ordered by id.
func (c *Catalog) List() []*Entry {
	out := make([]*Entry, 0, len(c.ids))
	for _, id := range c.ids {
		out = append(out, c.entries[id])
	}
	return out
}

// Len returns the number of registered entries.
func (c *Catalog) Len() int {
	return len(c.ids)
}
