package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"modelhost/pkg/types"
)

func writeModelFile(t *testing.T, dir, name string, sizeKB int) string {
	t.Helper()
	if sizeKB <= 0 {
		sizeKB = 1
	}
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, make([]byte, sizeKB*1024), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func TestUpsertAndGet(t *testing.T) {
	c := New()
	c.Upsert(types.ModelDescriptor{ID: "a", Name: "A", Modality: types.ModalityLanguage})
	got, ok := c.GetModel("a")
	if !ok || got.Name != "A" {
		t.Fatalf("get: ok=%v got=%+v", ok, got)
	}
	if _, ok := c.GetModel("missing"); ok {
		t.Fatalf("expected miss for unknown id")
	}
}

func TestUpsertReplaceKeepsOrder(t *testing.T) {
	c := New()
	c.Upsert(types.ModelDescriptor{ID: "a"})
	c.Upsert(types.ModelDescriptor{ID: "b"})
	c.Upsert(types.ModelDescriptor{ID: "a", Name: "A2"})
	out := c.List()
	if len(out) != 2 || out[0].ID != "a" || out[0].Name != "A2" || out[1].ID != "b" {
		t.Fatalf("unexpected list: %+v", out)
	}
}

func TestListReturnsCopy(t *testing.T) {
	c := NewWithModels([]types.ModelDescriptor{{ID: "a", Name: "A"}})
	out := c.List()
	out[0].Name = "mutated"
	again := c.List()
	if again[0].Name != "A" {
		t.Fatalf("catalog mutated via returned slice")
	}
}

func TestSetLocalPathMaterializes(t *testing.T) {
	c := NewWithModels([]types.ModelDescriptor{{ID: "a"}})
	if err := c.SetLocalPath("a", "/models/a.gguf", 42); err != nil {
		t.Fatalf("set local path: %v", err)
	}
	got, _ := c.GetModel("a")
	if !got.Materialized() || got.MemoryRequiredBytes != 42 {
		t.Fatalf("expected materialized with size, got %+v", got)
	}
	if err := c.SetLocalPath("missing", "/x", 1); err == nil {
		t.Fatalf("expected error for unknown id")
	}
}

func TestSetLocalPathKeepsExplicitSize(t *testing.T) {
	c := NewWithModels([]types.ModelDescriptor{{ID: "a", MemoryRequiredBytes: 100}})
	if err := c.SetLocalPath("a", "/models/a.gguf", 42); err != nil {
		t.Fatalf("set local path: %v", err)
	}
	got, _ := c.GetModel("a")
	if got.MemoryRequiredBytes != 100 {
		t.Fatalf("explicit size overwritten: %+v", got)
	}
}

func TestClearLocalPath(t *testing.T) {
	c := NewWithModels([]types.ModelDescriptor{{ID: "a", LocalPath: "/models/a.gguf"}})
	c.ClearLocalPath("a")
	got, _ := c.GetModel("a")
	if got.Materialized() {
		t.Fatalf("expected unmaterialized after clear")
	}
	c.ClearLocalPath("missing") // no-op
}

func TestScanDirBuildsDescriptors(t *testing.T) {
	d := t.TempDir()
	writeModelFile(t, d, "tinyllama-q4.gguf", 4)
	writeModelFile(t, d, "whisper-base.onnx", 2)
	writeModelFile(t, d, "notes.txt", 1)
	models, err := ScanDir(d)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(models) != 2 {
		t.Fatalf("expected 2 models, got %d", len(models))
	}
	byID := map[string]types.ModelDescriptor{}
	for _, m := range models {
		byID[m.ID] = m
	}
	llm, ok := byID["tinyllama-q4"]
	if !ok || llm.Format != "gguf" || llm.Modality != types.ModalityLanguage {
		t.Fatalf("unexpected llm descriptor: %+v", llm)
	}
	if llm.MemoryRequiredBytes != 4*1024 {
		t.Fatalf("expected size from file, got %d", llm.MemoryRequiredBytes)
	}
	stt, ok := byID["whisper-base"]
	if !ok || stt.Modality != types.ModalitySpeechRecognition {
		t.Fatalf("unexpected stt descriptor: %+v", stt)
	}
}

func TestDiscoverMergesIntoCatalog(t *testing.T) {
	d := t.TempDir()
	p := writeModelFile(t, d, "known.gguf", 1)
	writeModelFile(t, d, "new-model.gguf", 1)
	c := NewWithModels([]types.ModelDescriptor{{ID: "known", Name: "Known", Modality: types.ModalityLanguage}})
	n, err := c.Discover(d)
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 scanned, got %d", n)
	}
	known, _ := c.GetModel("known")
	if known.LocalPath != p || known.Name != "Known" {
		t.Fatalf("known entry not merged in place: %+v", known)
	}
	if _, ok := c.GetModel("new-model"); !ok {
		t.Fatalf("new model not added")
	}
}

func TestModalityForName(t *testing.T) {
	cases := map[string]types.Modality{
		"whisper-small.gguf": types.ModalitySpeechRecognition,
		"kokoro-82m.onnx":    types.ModalitySpeechSynthesis,
		"silero-vad.onnx":    types.ModalityAudio,
		"llama3-q4.gguf":     types.ModalityLanguage,
	}
	for name, want := range cases {
		if got := modalityForName(name); got != want {
			t.Fatalf("%s: expected %s got %s", name, want, got)
		}
	}
}
