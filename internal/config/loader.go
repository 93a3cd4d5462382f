package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config holds runtime parameters for the daemon.
// Zero values mean "unspecified" and are replaced by defaults at wiring time.
type Config struct {
	Addr      string `json:"addr" yaml:"addr" toml:"addr"`
	ModelsDir string `json:"models_dir" yaml:"models_dir" toml:"models_dir"`

	// Memory pressure thresholds in bytes. Available memory below
	// MemoryThresholdBytes classifies as warning, below
	// CriticalThresholdBytes as critical.
	MemoryThresholdBytes   int64 `json:"memory_threshold_bytes" yaml:"memory_threshold_bytes" toml:"memory_threshold_bytes"`
	CriticalThresholdBytes int64 `json:"critical_threshold_bytes" yaml:"critical_threshold_bytes" toml:"critical_threshold_bytes"`

	// AutoUnload enables pressure-driven eviction of the oldest loaded model
	// once tracked usage exceeds AutoUnloadThresholdBytes.
	AutoUnload               bool  `json:"auto_unload" yaml:"auto_unload" toml:"auto_unload"`
	AutoUnloadThresholdBytes int64 `json:"auto_unload_threshold_bytes" yaml:"auto_unload_threshold_bytes" toml:"auto_unload_threshold_bytes"`

	// PressureIntervalSeconds sets how often the background pressure check
	// runs. Zero disables the loop; explicit HandleMemoryPressure calls and
	// HTTP triggers still work.
	PressureIntervalSeconds int `json:"pressure_interval_seconds" yaml:"pressure_interval_seconds" toml:"pressure_interval_seconds"`

	// WatchModelsDir enables the fsnotify watcher that materializes catalog
	// entries when model files appear in ModelsDir.
	WatchModelsDir bool `json:"watch_models_dir" yaml:"watch_models_dir" toml:"watch_models_dir"`
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}
