package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"modelhost/pkg/types"
)

// formatForExt maps a file extension to a model format, or "" if the file is
// not a model artifact.
func formatForExt(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".gguf":
		return "gguf"
	case ".onnx":
		return "onnx"
	case ".bin":
		return "bin"
	}
	return ""
}

// modalityForName guesses a modality from well-known model name patterns.
// Defaults to language, which covers the common case of a bare GGUF drop.
func modalityForName(name string) types.Modality {
	n := strings.ToLower(name)
	switch {
	case strings.Contains(n, "whisper"), strings.Contains(n, "asr"), strings.Contains(n, "stt"):
		return types.ModalitySpeechRecognition
	case strings.Contains(n, "tts"), strings.Contains(n, "kokoro"), strings.Contains(n, "piper"):
		return types.ModalitySpeechSynthesis
	case strings.Contains(n, "vad"), strings.Contains(n, "silero"):
		return types.ModalityAudio
	}
	return types.ModalityLanguage
}

// ScanDir scans a directory for model artifacts and builds descriptors from
// filenames. The id is the filename without extension; the file size becomes
// the memory-required estimate.
func ScanDir(dir string) ([]types.ModelDescriptor, error) {
	base, err := expandHome(dir)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("abs path: %w", err)
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	var models []types.ModelDescriptor
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		format := formatForExt(name)
		if format == "" {
			continue
		}
		p := filepath.Join(abs, name)
		var size int64
		if fi, err := os.Stat(p); err == nil {
			size = fi.Size()
		}
		id := strings.TrimSuffix(name, filepath.Ext(name))
		models = append(models, types.ModelDescriptor{
			ID:                  id,
			Name:                id,
			Modality:            modalityForName(name),
			Format:              format,
			LocalPath:           p,
			MemoryRequiredBytes: size,
		})
	}
	return models, nil
}

// Discover merges a directory scan into the catalog: known ids get their
// local path materialized, unknown files become new entries.
func (c *Catalog) Discover(dir string) (int, error) {
	scanned, err := ScanDir(dir)
	if err != nil {
		return 0, err
	}
	for _, d := range scanned {
		if _, ok := c.GetModel(d.ID); ok {
			_ = c.SetLocalPath(d.ID, d.LocalPath, d.MemoryRequiredBytes)
			continue
		}
		c.Upsert(d)
	}
	return len(scanned), nil
}

// expandHome expands a leading '~' to the user's home directory.
func expandHome(path string) (string, error) {
	if path == "" {
		return path, nil
	}
	if path[0] != '~' {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("home dir: %w", err)
	}
	if path == "~" {
		return home, nil
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~/")), nil
}
