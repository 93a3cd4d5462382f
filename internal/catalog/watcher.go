package catalog

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"modelhost/pkg/types"
)

// Watcher materializes catalog entries as model files appear in a directory
// and clears local paths when they disappear. It does not delete descriptors;
// a loaded model keeps its catalog entry even if the artifact vanishes.
type Watcher struct {
	cat *Catalog
	dir string
	fw  *fsnotify.Watcher
	log zerolog.Logger
}

// NewWatcher starts watching dir. Call Run to process events and Close to
// release the underlying watcher.
func NewWatcher(cat *Catalog, dir string, log zerolog.Logger) (*Watcher, error) {
	base, err := expandHome(dir)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, err
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(abs); err != nil {
		_ = fw.Close()
		return nil, err
	}
	return &Watcher{cat: cat, dir: abs, fw: fw, log: log}, nil
}

func (w *Watcher) Close() error { return w.fw.Close() }

// Run processes filesystem events until ctx is done or the watcher closes.
func (w *Watcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fw.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			w.log.Warn().Err(err).Msg("models dir watch error")
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	name := filepath.Base(ev.Name)
	format := formatForExt(name)
	if format == "" {
		return
	}
	id := strings.TrimSuffix(name, filepath.Ext(name))
	switch {
	case ev.Op.Has(fsnotify.Create), ev.Op.Has(fsnotify.Write):
		var size int64
		if fi, err := os.Stat(ev.Name); err == nil {
			size = fi.Size()
		}
		if _, ok := w.cat.GetModel(id); ok {
			_ = w.cat.SetLocalPath(id, ev.Name, size)
		} else {
			w.cat.Upsert(types.ModelDescriptor{
				ID:                  id,
				Name:                id,
				Modality:            modalityForName(name),
				Format:              format,
				LocalPath:           ev.Name,
				MemoryRequiredBytes: size,
			})
		}
		w.log.Info().Str("model", id).Str("path", ev.Name).Msg("model artifact discovered")
	case ev.Op.Has(fsnotify.Remove), ev.Op.Has(fsnotify.Rename):
		w.cat.ClearLocalPath(id)
		w.log.Info().Str("model", id).Msg("model artifact removed")
	}
}
