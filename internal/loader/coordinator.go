package loader

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"modelhost/internal/adapters"
	"modelhost/internal/catalog"
	"modelhost/pkg/types"
)

// LoadedModel is a settled, ready-to-use backend instance bound one-to-one
// with a model id.
type LoadedModel struct {
	Descriptor types.ModelDescriptor
	Handle     adapters.ServiceHandle
}

// Coordinator deduplicates concurrent load requests per model id, drives the
// adapter fallback chain, and owns the settled map of loaded models.
//
// A model id is always in exactly one of three states: settled (in the
// loaded map), in-flight (inside the singleflight group), or absent.
type Coordinator struct {
	cat *catalog.Catalog
	reg *adapters.Registry
	log zerolog.Logger

	group singleflight.Group

	mu     sync.RWMutex
	loaded map[string]*LoadedModel
}

func NewCoordinator(cat *catalog.Catalog, reg *adapters.Registry, log zerolog.Logger) *Coordinator {
	return &Coordinator{
		cat:    cat,
		reg:    reg,
		log:    log,
		loaded: make(map[string]*LoadedModel),
	}
}

// LoadModel returns the ready instance for id, loading it at most once no
// matter how many callers request it concurrently. All concurrent callers
// for the same id share a single underlying adapter invocation and receive
// the identical handle or the identical error.
//
// The shared load is detached from any single caller's context: cancelling
// one waiter must not abort work other waiters depend on.
func (c *Coordinator) LoadModel(ctx context.Context, id string) (*LoadedModel, error) {
	if lm, ok := c.GetLoadedModel(id); ok {
		return lm, nil
	}

	loadCtx := context.WithoutCancel(ctx)
	v, err, _ := c.group.Do(id, func() (any, error) {
		return c.load(loadCtx, id)
	})
	if err != nil {
		return nil, err
	}
	return v.(*LoadedModel), nil
}

// load performs the physical load. It runs at most once per id at a time,
// guarded by the singleflight group.
func (c *Coordinator) load(ctx context.Context, id string) (*LoadedModel, error) {
	// A previous flight may have settled the model between the caller's fast
	// path and this execution.
	if lm, ok := c.GetLoadedModel(id); ok {
		return lm, nil
	}

	d, ok := c.cat.GetModel(id)
	if !ok {
		return nil, ErrModelNotFound(id)
	}
	if !d.Materialized() {
		return nil, ErrModelNotMaterialized(id)
	}

	candidates := c.reg.FindAllAdapters(d, d.Modality)
	if len(candidates) == 0 {
		return nil, ErrNoCapableAdapter(id, d.Modality)
	}

	var lastErr error
	var lastFramework string
	for _, a := range candidates {
		handle, err := a.LoadModel(ctx, d, d.Modality)
		if err != nil {
			// Fallback: log and try the next candidate. Only the last error
			// survives to the caller.
			c.log.Warn().Str("model", id).Str("framework", a.FrameworkID()).Err(err).
				Msg("adapter load failed, trying next candidate")
			lastErr = err
			lastFramework = a.FrameworkID()
			continue
		}
		if handle == nil || handle.Modality() != d.Modality {
			// A handle of the wrong capability type is itself a load failure.
			if handle != nil {
				_ = handle.Cleanup(ctx)
			}
			lastErr = ErrAdapterLoadFailed(id, a.FrameworkID(), ErrNoCapableAdapter(id, d.Modality))
			lastFramework = a.FrameworkID()
			c.log.Warn().Str("model", id).Str("framework", a.FrameworkID()).
				Msg("adapter returned handle of wrong capability")
			continue
		}
		lm := &LoadedModel{Descriptor: d, Handle: handle}
		c.mu.Lock()
		c.loaded[id] = lm
		c.mu.Unlock()
		c.log.Info().Str("model", id).Str("framework", a.FrameworkID()).Msg("model loaded")
		return lm, nil
	}
	return nil, ErrAdapterLoadFailed(id, lastFramework, lastErr)
}

// UnloadModel releases the settled instance for id. Unloading a model that
// is not loaded is a no-op.
func (c *Coordinator) UnloadModel(ctx context.Context, id string) error {
	c.mu.Lock()
	lm, ok := c.loaded[id]
	if ok {
		delete(c.loaded, id)
	}
	c.mu.Unlock()
	if !ok {
		return nil
	}
	// Cleanup may block on the native runtime; never hold the map lock here.
	if err := lm.Handle.Cleanup(ctx); err != nil {
		c.log.Warn().Str("model", id).Err(err).Msg("handle cleanup failed")
		return err
	}
	c.log.Info().Str("model", id).Msg("model unloaded")
	return nil
}

// GetLoadedModel returns the settled instance for id, if any.
func (c *Coordinator) GetLoadedModel(id string) (*LoadedModel, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	lm, ok := c.loaded[id]
	return lm, ok
}

// LoadedModels returns a snapshot of all settled instances.
func (c *Coordinator) LoadedModels() []*LoadedModel {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*LoadedModel, 0, len(c.loaded))
	for _, lm := range c.loaded {
		out = append(out, lm)
	}
	return out
}
