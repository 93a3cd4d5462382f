package catalog

import (
	"path/filepath"
	"testing"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"modelhost/pkg/types"
)

func newTestWatcher(t *testing.T, c *Catalog, dir string) *Watcher {
	t.Helper()
	w, err := NewWatcher(c, dir, zerolog.Nop())
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	t.Cleanup(func() { _ = w.Close() })
	return w
}

func TestWatcherHandleCreateMaterializes(t *testing.T) {
	d := t.TempDir()
	c := NewWithModels([]types.ModelDescriptor{{ID: "m1", Modality: types.ModalityLanguage}})
	w := newTestWatcher(t, c, d)

	p := writeModelFile(t, d, "m1.gguf", 2)
	w.handle(fsnotify.Event{Name: p, Op: fsnotify.Create})

	got, _ := c.GetModel("m1")
	if got.LocalPath != p || got.MemoryRequiredBytes != 2*1024 {
		t.Fatalf("expected materialized entry, got %+v", got)
	}
}

func TestWatcherHandleCreateAddsUnknown(t *testing.T) {
	d := t.TempDir()
	c := New()
	w := newTestWatcher(t, c, d)

	p := writeModelFile(t, d, "whisper-tiny.onnx", 1)
	w.handle(fsnotify.Event{Name: p, Op: fsnotify.Create})

	got, ok := c.GetModel("whisper-tiny")
	if !ok || got.Modality != types.ModalitySpeechRecognition || got.Format != "onnx" {
		t.Fatalf("expected discovered descriptor, got ok=%v %+v", ok, got)
	}
}

func TestWatcherHandleRemoveClearsPath(t *testing.T) {
	d := t.TempDir()
	c := NewWithModels([]types.ModelDescriptor{{ID: "m1", LocalPath: filepath.Join(d, "m1.gguf")}})
	w := newTestWatcher(t, c, d)

	w.handle(fsnotify.Event{Name: filepath.Join(d, "m1.gguf"), Op: fsnotify.Remove})
	got, _ := c.GetModel("m1")
	if got.Materialized() {
		t.Fatalf("expected cleared path, got %+v", got)
	}
}

func TestWatcherIgnoresNonModelFiles(t *testing.T) {
	d := t.TempDir()
	c := New()
	w := newTestWatcher(t, c, d)

	w.handle(fsnotify.Event{Name: filepath.Join(d, "README.md"), Op: fsnotify.Create})
	if c.Len() != 0 {
		t.Fatalf("expected no entries, got %d", c.Len())
	}
}
