package catalog

import (
	"fmt"
	"sync"

	"modelhost/pkg/types"
)

// Catalog is the in-memory store of model descriptors. It is read-mostly:
// the lifecycle core only reads it, while discovery and adapter registration
// upsert entries. All methods are safe for concurrent use.
type Catalog struct {
	mu     sync.RWMutex
	models map[string]types.ModelDescriptor
	order  []string // insertion order for stable List output
}

func New() *Catalog {
	return &Catalog{models: make(map[string]types.ModelDescriptor)}
}

// NewWithModels seeds a catalog, preserving slice order.
func NewWithModels(models []types.ModelDescriptor) *Catalog {
	c := New()
	for _, m := range models {
		c.Upsert(m)
	}
	return c
}

// GetModel returns a copy of the descriptor for id, if present.
func (c *Catalog) GetModel(id string) (types.ModelDescriptor, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.models[id]
	return m, ok
}

// List returns descriptors in insertion order. The slice is a copy.
func (c *Catalog) List() []types.ModelDescriptor {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]types.ModelDescriptor, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.models[id])
	}
	return out
}

// Upsert inserts the descriptor or replaces an existing entry with the same
// id. Replacing keeps the original insertion position.
func (c *Catalog) Upsert(d types.ModelDescriptor) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.models[d.ID]; !exists {
		c.order = append(c.order, d.ID)
	}
	c.models[d.ID] = d
}

// SetLocalPath records the discovered artifact path and size for a model.
func (c *Catalog) SetLocalPath(id, path string, sizeBytes int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.models[id]
	if !ok {
		return fmt.Errorf("catalog: unknown model %q", id)
	}
	m.LocalPath = path
	if sizeBytes > 0 && m.MemoryRequiredBytes == 0 {
		m.MemoryRequiredBytes = sizeBytes
	}
	c.models[id] = m
	return nil
}

// ClearLocalPath marks a model as no longer materialized on disk.
// Builtin models are unaffected by artifact removal.
func (c *Catalog) ClearLocalPath(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.models[id]
	if !ok {
		return
	}
	m.LocalPath = ""
	c.models[id] = m
}

// Len reports the number of catalog entries.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.models)
}
