package adapters

import (
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"modelhost/internal/catalog"
	"modelhost/pkg/types"
)

type record struct {
	adapter      Adapter
	priority     int
	seq          int
	capabilities map[types.Modality]bool
}

// Registry holds registered backend adapters keyed by framework id and
// resolves ordered candidate lists for a descriptor and modality.
type Registry struct {
	mu      sync.RWMutex
	records map[string]*record
	order   []string // framework ids in first-registration order
	seq     int
	hooked  map[string]bool // framework ids whose OnRegistration already ran

	cat *catalog.Catalog
	log zerolog.Logger
}

func NewRegistry(cat *catalog.Catalog, log zerolog.Logger) *Registry {
	return &Registry{
		records: make(map[string]*record),
		hooked:  make(map[string]bool),
		cat:     cat,
		log:     log,
	}
}

// Register adds an adapter under its framework id. Re-registration replaces
// the previous record and logs a warning; the OnRegistration hook and the
// provided-model import run once per framework id.
func (r *Registry) Register(a Adapter, priority int) {
	id := a.FrameworkID()

	caps := make(map[types.Modality]bool, len(a.Capabilities()))
	for _, m := range a.Capabilities() {
		caps[m] = true
	}

	r.mu.Lock()
	if _, exists := r.records[id]; exists {
		r.log.Warn().Str("framework", id).Msg("adapter re-registered, replacing previous record")
	} else {
		r.order = append(r.order, id)
	}
	r.seq++
	r.records[id] = &record{adapter: a, priority: priority, seq: r.seq, capabilities: caps}
	firstTime := !r.hooked[id]
	r.hooked[id] = true
	r.mu.Unlock()

	if !firstTime {
		return
	}
	if err := a.OnRegistration(); err != nil {
		r.log.Warn().Str("framework", id).Err(err).Msg("adapter registration hook failed")
	}
	for _, d := range a.ProvidedModels() {
		if !d.Materialized() {
			d.Builtin = true
		}
		if _, ok := r.cat.GetModel(d.ID); ok {
			continue
		}
		r.cat.Upsert(d)
		r.log.Info().Str("framework", id).Str("model", d.ID).Msg("imported adapter-provided model")
	}
}

// FindAllAdapters returns all adapters capable of serving the descriptor for
// the modality, ordered: preferred framework first, then descending priority,
// stable on registration order for ties. Absence of candidates is an empty
// slice, not an error.
func (r *Registry) FindAllAdapters(d types.ModelDescriptor, m types.Modality) []Adapter {
	r.mu.RLock()
	candidates := make([]*record, 0, len(r.records))
	for _, rec := range r.records {
		if rec.capabilities[m] {
			candidates = append(candidates, rec)
		}
	}
	r.mu.RUnlock()

	// CanHandle may be arbitrarily expensive; call it outside the lock.
	capable := candidates[:0]
	for _, rec := range candidates {
		if rec.adapter.CanHandle(d) {
			capable = append(capable, rec)
		}
	}

	sort.SliceStable(capable, func(i, j int) bool {
		pi := capable[i].adapter.FrameworkID() == d.PreferredFramework
		pj := capable[j].adapter.FrameworkID() == d.PreferredFramework
		if pi != pj {
			return pi
		}
		if capable[i].priority != capable[j].priority {
			return capable[i].priority > capable[j].priority
		}
		return capable[i].seq < capable[j].seq
	})

	out := make([]Adapter, len(capable))
	for i, rec := range capable {
		out[i] = rec.adapter
	}
	return out
}

// FindBestAdapter returns the head of FindAllAdapters, or false if no
// registered adapter can serve the request.
func (r *Registry) FindBestAdapter(d types.ModelDescriptor, m types.Modality) (Adapter, bool) {
	all := r.FindAllAdapters(d, m)
	if len(all) == 0 {
		return nil, false
	}
	return all[0], true
}

// AvailableFrameworks lists registered framework ids in registration order.
func (r *Registry) AvailableFrameworks() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Get returns the adapter registered under a framework id.
func (r *Registry) Get(frameworkID string) (Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[frameworkID]
	if !ok {
		return nil, false
	}
	return rec.adapter, true
}
