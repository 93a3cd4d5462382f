package lifecycle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"modelhost/internal/adapters"
	"modelhost/internal/loader"
	"modelhost/internal/memory"
	"modelhost/pkg/types"
)

// LoadedModelState is the per-modality bookkeeping record. At most one entry
// exists per modality at any time.
type LoadedModelState struct {
	ModelID          string
	Modality         types.Modality
	Framework        string
	LoadedAt         time.Time
	MemoryUsageBytes int64
	Handle           adapters.ServiceHandle
}

// ProgressFunc receives coarse load progress. Nil is allowed.
type ProgressFunc func(stage string, fraction float64)

// Config tunes the orchestrator's eviction policy.
type Config struct {
	// AutoUnload enables pressure-driven eviction.
	AutoUnload bool
	// AutoUnloadThresholdBytes is the tracked-usage level above which
	// HandleMemoryPressure evicts the oldest model. Zero disables eviction
	// even when AutoUnload is set.
	AutoUnloadThresholdBytes int64
}

// Orchestrator composes the load coordinator, adapter registry, and memory
// monitor. It adds per-modality tracking, lifecycle events, and the
// memory-pressure eviction policy.
type Orchestrator struct {
	coord *loader.Coordinator
	reg   *adapters.Registry
	mon   *memory.Monitor
	cfg   Config
	log   zerolog.Logger

	bus *Bus
	pub Publisher // external fire-and-forget sink (telemetry)

	mu         sync.Mutex
	byModality map[types.Modality]*LoadedModelState

	counterMu sync.Mutex
	loads     uint64
	unloads   uint64
	evictions uint64

	now func() time.Time
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithPublisher installs an external event sink alongside the internal bus.
func WithPublisher(p Publisher) Option {
	return func(o *Orchestrator) {
		if p != nil {
			o.pub = p
		}
	}
}

func New(coord *loader.Coordinator, reg *adapters.Registry, mon *memory.Monitor, cfg Config, log zerolog.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		coord:      coord,
		reg:        reg,
		mon:        mon,
		cfg:        cfg,
		log:        log,
		bus:        NewBus(0),
		pub:        noopPublisher{},
		byModality: make(map[types.Modality]*LoadedModelState),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Events returns a subscription to the lifecycle event stream and a cancel
// func releasing it.
func (o *Orchestrator) Events() (<-chan Event, func()) { return o.bus.Subscribe() }

// SubscriberCount reports how many event subscribers are attached.
func (o *Orchestrator) SubscriberCount() int { return o.bus.SubscriberCount() }

func (o *Orchestrator) emit(e Event) {
	o.bus.Publish(e)
	o.pub.Publish(e)
}

// LoadModel loads id for the given modality, updating the per-modality
// record. Any model the new record displaces is explicitly released, so
// replacement never leaks a handle.
func (o *Orchestrator) LoadModel(ctx context.Context, id string, modality types.Modality, onProgress ProgressFunc) (*loader.LoadedModel, error) {
	will := newEvent(EventWillLoad)
	will.ModelID = id
	will.Modality = modality
	o.emit(will)
	o.progress(onProgress, "resolving", 0.0)

	lm, err := o.coord.LoadModel(ctx, id)
	if err != nil {
		o.emitLoadFailed(id, modality, err)
		return nil, err
	}

	if lm.Handle.Modality() != modality {
		// The settled instance serves a different modality; surfacing it
		// here would hand the caller a handle of the wrong capability.
		err := loader.ErrAdapterLoadFailed(id, lm.Handle.Framework(),
			fmt.Errorf("model %s serves %s, not %s", id, lm.Handle.Modality(), modality))
		o.emitLoadFailed(id, modality, err)
		o.releaseIfUntracked(ctx, id)
		return nil, err
	}
	o.progress(onProgress, "loaded", 0.8)

	usage := lm.Descriptor.MemoryRequiredBytes
	if a, ok := o.reg.Get(lm.Handle.Framework()); ok {
		if est := a.EstimateMemoryUsage(lm.Descriptor); est > 0 {
			usage = est
		}
	}

	state := &LoadedModelState{
		ModelID:          id,
		Modality:         modality,
		Framework:        lm.Handle.Framework(),
		LoadedAt:         o.now(),
		MemoryUsageBytes: usage,
		Handle:           lm.Handle,
	}
	// Install and read the displaced entry under one lock so concurrent
	// loads for the same modality always hand the loser to release; a
	// check-then-act gap here would strand the loser in the coordinator.
	o.mu.Lock()
	displaced := o.byModality[modality]
	o.byModality[modality] = state
	o.mu.Unlock()

	if displaced != nil && displaced.ModelID != id {
		if err := o.release(ctx, displaced.ModelID, displaced); err != nil {
			o.log.Warn().Str("model", displaced.ModelID).Err(err).Msg("unload of replaced model failed")
		}
	}

	o.counterMu.Lock()
	o.loads++
	o.counterMu.Unlock()

	did := newEvent(EventDidLoad)
	did.ModelID = id
	did.Modality = modality
	did.Framework = state.Framework
	o.emit(did)
	o.progress(onProgress, "ready", 1.0)
	return lm, nil
}

func (o *Orchestrator) emitLoadFailed(id string, modality types.Modality, err error) {
	ev := newEvent(EventLoadFailed)
	ev.ModelID = id
	ev.Modality = modality
	ev.Error = err.Error()
	o.emit(ev)
}

func (o *Orchestrator) progress(fn ProgressFunc, stage string, fraction float64) {
	if fn != nil {
		fn(stage, fraction)
	}
}

// UnloadModel releases a model by id and removes its modality record.
// Unloading a model that is not loaded is a no-op.
func (o *Orchestrator) UnloadModel(ctx context.Context, id string) error {
	o.mu.Lock()
	var tracked *LoadedModelState
	for _, st := range o.byModality {
		if st.ModelID == id {
			tracked = st
			break
		}
	}
	o.mu.Unlock()

	if _, loaded := o.coord.GetLoadedModel(id); !loaded && tracked == nil {
		return nil
	}
	return o.release(ctx, id, tracked)
}

// release unloads id through the coordinator with willUnload/didUnload
// sequencing. The tracked state, when known, fills the events' modality and
// framework; callers that already removed the record pass it explicitly.
func (o *Orchestrator) release(ctx context.Context, id string, tracked *LoadedModelState) error {
	will := newEvent(EventWillUnload)
	will.ModelID = id
	if tracked != nil {
		will.Modality = tracked.Modality
		will.Framework = tracked.Framework
	}
	o.emit(will)

	err := o.coord.UnloadModel(ctx, id)

	o.mu.Lock()
	for m, st := range o.byModality {
		if st.ModelID == id {
			delete(o.byModality, m)
		}
	}
	o.mu.Unlock()

	done := newEvent(EventDidUnload)
	done.ModelID = id
	if tracked != nil {
		done.Modality = tracked.Modality
		done.Framework = tracked.Framework
	}
	if err != nil {
		done.Error = err.Error()
	}
	o.emit(done)

	// Failed cleanups carry their error on the didUnload event; only a
	// successful release counts toward the unload total.
	if err == nil {
		o.counterMu.Lock()
		o.unloads++
		o.counterMu.Unlock()
	}
	return err
}

// releaseIfUntracked frees a settled model that no modality record points
// at, so a rejected load cannot strand its handle in the coordinator. A
// model tracked under another modality is left alone.
func (o *Orchestrator) releaseIfUntracked(ctx context.Context, id string) {
	o.mu.Lock()
	for _, st := range o.byModality {
		if st.ModelID == id {
			o.mu.Unlock()
			return
		}
	}
	o.mu.Unlock()
	if err := o.coord.UnloadModel(ctx, id); err != nil {
		o.log.Warn().Str("model", id).Err(err).Msg("release of rejected load failed")
	}
}

// UnloadModels unloads the model tracked for a modality, if any.
func (o *Orchestrator) UnloadModels(ctx context.Context, modality types.Modality) error {
	o.mu.Lock()
	st := o.byModality[modality]
	o.mu.Unlock()
	if st == nil {
		return nil
	}
	return o.UnloadModel(ctx, st.ModelID)
}

// UnloadAllModels unloads every tracked model. The first error is returned
// after all modalities have been attempted.
func (o *Orchestrator) UnloadAllModels(ctx context.Context) error {
	var firstErr error
	for _, m := range types.Modalities() {
		if err := o.UnloadModels(ctx, m); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// GetLoadedModel returns a copy of the modality's tracked state, if any.
func (o *Orchestrator) GetLoadedModel(modality types.Modality) (LoadedModelState, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	st := o.byModality[modality]
	if st == nil {
		return LoadedModelState{}, false
	}
	return *st, true
}

// LoadedStates returns tracked states in canonical modality order.
func (o *Orchestrator) LoadedStates() []LoadedModelState {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]LoadedModelState, 0, len(o.byModality))
	for _, m := range types.Modalities() {
		if st := o.byModality[m]; st != nil {
			out = append(out, *st)
		}
	}
	return out
}

// TrackedUsageBytes sums memory usage across tracked models.
func (o *Orchestrator) TrackedUsageBytes() int64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	var total int64
	for _, st := range o.byModality {
		total += st.MemoryUsageBytes
	}
	return total
}

// Counters returns lifetime load/unload/eviction totals.
func (o *Orchestrator) Counters() (loads, unloads, evictions uint64) {
	o.counterMu.Lock()
	defer o.counterMu.Unlock()
	return o.loads, o.unloads, o.evictions
}

// HandleMemoryPressure samples memory, emits a pressure event, and, when
// auto-unload is enabled and tracked usage exceeds the configured non-zero
// threshold, evicts the model with the oldest load time. Ties on the
// timestamp break by canonical modality order.
func (o *Orchestrator) HandleMemoryPressure(ctx context.Context) (types.MemorySnapshot, error) {
	snap, err := o.mon.CurrentStats()
	if err != nil {
		return types.MemorySnapshot{}, err
	}

	ev := newEvent(EventMemoryPressure)
	ev.Fields = map[string]any{
		"available_bytes": snap.AvailableBytes,
		"pressure":        string(snap.Pressure),
	}
	o.emit(ev)

	if !o.cfg.AutoUnload || o.cfg.AutoUnloadThresholdBytes <= 0 {
		return snap, nil
	}
	if o.TrackedUsageBytes() <= o.cfg.AutoUnloadThresholdBytes {
		return snap, nil
	}

	victim := o.oldestLoaded()
	if victim == "" {
		return snap, nil
	}
	o.log.Info().Str("model", victim).Msg("memory pressure eviction")
	if err := o.UnloadModel(ctx, victim); err != nil {
		return snap, err
	}
	o.counterMu.Lock()
	o.evictions++
	o.counterMu.Unlock()
	return snap, nil
}

// oldestLoaded picks the tracked model with the earliest LoadedAt, breaking
// ties by modality order.
func (o *Orchestrator) oldestLoaded() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	var oldest *LoadedModelState
	for _, m := range types.Modalities() {
		st := o.byModality[m]
		if st == nil {
			continue
		}
		if oldest == nil || st.LoadedAt.Before(oldest.LoadedAt) {
			oldest = st
		}
	}
	if oldest == nil {
		return ""
	}
	return oldest.ModelID
}
