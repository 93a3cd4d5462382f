package adapters

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"modelhost/internal/catalog"
	"modelhost/pkg/types"
)

type fakeHandle struct {
	framework string
	modality  types.Modality
	cleanups  int
}

func (h *fakeHandle) Framework() string                 { return h.framework }
func (h *fakeHandle) Modality() types.Modality          { return h.modality }
func (h *fakeHandle) Cleanup(ctx context.Context) error { h.cleanups++; return nil }

type fakeAdapter struct {
	id        string
	caps      []types.Modality
	canHandle bool
	loadErr   error
	provided  []types.ModelDescriptor
	hookErr   error

	loads int
	hooks int
}

func (a *fakeAdapter) FrameworkID() string            { return a.id }
func (a *fakeAdapter) Capabilities() []types.Modality { return a.caps }
func (a *fakeAdapter) CanHandle(d types.ModelDescriptor) bool {
	return a.canHandle && d.SupportsFramework(a.id)
}
func (a *fakeAdapter) LoadModel(ctx context.Context, d types.ModelDescriptor, m types.Modality) (ServiceHandle, error) {
	a.loads++
	if a.loadErr != nil {
		return nil, a.loadErr
	}
	return &fakeHandle{framework: a.id, modality: m}, nil
}
func (a *fakeAdapter) EstimateMemoryUsage(d types.ModelDescriptor) int64 {
	return d.MemoryRequiredBytes
}
func (a *fakeAdapter) ProvidedModels() []types.ModelDescriptor { return a.provided }
func (a *fakeAdapter) OnRegistration() error                   { a.hooks++; return a.hookErr }

func newTestRegistry() (*Registry, *catalog.Catalog) {
	cat := catalog.New()
	return NewRegistry(cat, zerolog.Nop()), cat
}

func langModel(id string) types.ModelDescriptor {
	return types.ModelDescriptor{ID: id, Modality: types.ModalityLanguage, LocalPath: "/models/" + id + ".gguf"}
}

func TestFindAllOrdersByPriority(t *testing.T) {
	r, _ := newTestRegistry()
	low := &fakeAdapter{id: "low", caps: []types.Modality{types.ModalityLanguage}, canHandle: true}
	high := &fakeAdapter{id: "high", caps: []types.Modality{types.ModalityLanguage}, canHandle: true}
	r.Register(low, 10)
	r.Register(high, 100)

	got := r.FindAllAdapters(langModel("m"), types.ModalityLanguage)
	if len(got) != 2 || got[0].FrameworkID() != "high" || got[1].FrameworkID() != "low" {
		t.Fatalf("unexpected order: %v", frameworkIDs(got))
	}
}

func TestFindAllPreferredFrameworkFirst(t *testing.T) {
	r, _ := newTestRegistry()
	a := &fakeAdapter{id: "a", caps: []types.Modality{types.ModalityLanguage}, canHandle: true}
	b := &fakeAdapter{id: "b", caps: []types.Modality{types.ModalityLanguage}, canHandle: true}
	r.Register(a, 100)
	r.Register(b, 10)

	d := langModel("m")
	d.PreferredFramework = "b"
	got := r.FindAllAdapters(d, types.ModalityLanguage)
	if len(got) != 2 || got[0].FrameworkID() != "b" {
		t.Fatalf("preferred framework not first: %v", frameworkIDs(got))
	}
}

func TestFindAllStableOnPriorityTies(t *testing.T) {
	r, _ := newTestRegistry()
	first := &fakeAdapter{id: "first", caps: []types.Modality{types.ModalityLanguage}, canHandle: true}
	second := &fakeAdapter{id: "second", caps: []types.Modality{types.ModalityLanguage}, canHandle: true}
	r.Register(first, 50)
	r.Register(second, 50)

	got := r.FindAllAdapters(langModel("m"), types.ModalityLanguage)
	if len(got) != 2 || got[0].FrameworkID() != "first" {
		t.Fatalf("tie not broken by registration order: %v", frameworkIDs(got))
	}
}

func TestFindAllFiltersCapabilityAndCanHandle(t *testing.T) {
	r, _ := newTestRegistry()
	stt := &fakeAdapter{id: "stt", caps: []types.Modality{types.ModalitySpeechRecognition}, canHandle: true}
	refusing := &fakeAdapter{id: "refusing", caps: []types.Modality{types.ModalityLanguage}, canHandle: false}
	r.Register(stt, 100)
	r.Register(refusing, 100)

	got := r.FindAllAdapters(langModel("m"), types.ModalityLanguage)
	if len(got) != 0 {
		t.Fatalf("expected empty candidate list, got %v", frameworkIDs(got))
	}
}

func TestFindBestAdapter(t *testing.T) {
	r, _ := newTestRegistry()
	if _, ok := r.FindBestAdapter(langModel("m"), types.ModalityLanguage); ok {
		t.Fatalf("expected no adapter on empty registry")
	}
	a := &fakeAdapter{id: "a", caps: []types.Modality{types.ModalityLanguage}, canHandle: true}
	r.Register(a, 1)
	best, ok := r.FindBestAdapter(langModel("m"), types.ModalityLanguage)
	if !ok || best.FrameworkID() != "a" {
		t.Fatalf("expected adapter a, got ok=%v", ok)
	}
}

func TestRegisterReplaceRunsHookOnce(t *testing.T) {
	r, _ := newTestRegistry()
	a1 := &fakeAdapter{id: "dup", caps: []types.Modality{types.ModalityLanguage}, canHandle: true}
	a2 := &fakeAdapter{id: "dup", caps: []types.Modality{types.ModalityLanguage}, canHandle: true}
	r.Register(a1, 10)
	r.Register(a2, 20)

	if a1.hooks != 1 {
		t.Fatalf("expected first hook to run once, ran %d", a1.hooks)
	}
	if a2.hooks != 0 {
		t.Fatalf("replacement hook must not run again, ran %d", a2.hooks)
	}
	// Replacement record wins the lookup.
	got, ok := r.Get("dup")
	if !ok || got != Adapter(a2) {
		t.Fatalf("expected replacement adapter in registry")
	}
	if fw := r.AvailableFrameworks(); len(fw) != 1 || fw[0] != "dup" {
		t.Fatalf("unexpected frameworks: %v", fw)
	}
}

func TestRegisterImportsProvidedModels(t *testing.T) {
	r, cat := newTestRegistry()
	provided := types.ModelDescriptor{ID: "system-voice", Modality: types.ModalitySpeechSynthesis}
	a := &fakeAdapter{id: "tts", caps: []types.Modality{types.ModalitySpeechSynthesis}, canHandle: true, provided: []types.ModelDescriptor{provided}}
	r.Register(a, 10)

	got, ok := cat.GetModel("system-voice")
	if !ok || !got.Builtin {
		t.Fatalf("provided model not imported as builtin: ok=%v %+v", ok, got)
	}

	// Import must not clobber an existing catalog entry.
	cat.Upsert(types.ModelDescriptor{ID: "system-voice", Name: "edited", Builtin: true})
	r2 := &fakeAdapter{id: "tts", caps: []types.Modality{types.ModalitySpeechSynthesis}, canHandle: true, provided: []types.ModelDescriptor{provided}}
	r.Register(r2, 10)
	again, _ := cat.GetModel("system-voice")
	if again.Name != "edited" {
		t.Fatalf("re-registration clobbered catalog entry: %+v", again)
	}
}

func TestRegisterHookErrorStillRegisters(t *testing.T) {
	r, _ := newTestRegistry()
	a := &fakeAdapter{id: "flaky", caps: []types.Modality{types.ModalityLanguage}, canHandle: true, hookErr: errors.New("hook failed")}
	r.Register(a, 10)
	if _, ok := r.Get("flaky"); !ok {
		t.Fatalf("adapter should be registered despite hook failure")
	}
}

func frameworkIDs(in []Adapter) []string {
	out := make([]string, len(in))
	for i, a := range in {
		out[i] = a.FrameworkID()
	}
	return out
}
