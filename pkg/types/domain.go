package types

import (
	"fmt"
	"time"
)

// Modality is the capability class of a model: text generation, speech
// recognition, speech synthesis, or raw audio processing (e.g. VAD).
type Modality string

const (
	ModalityLanguage          Modality = "language"
	ModalitySpeechRecognition Modality = "speech_recognition"
	ModalitySpeechSynthesis   Modality = "speech_synthesis"
	ModalityAudio             Modality = "audio"
)

// Modalities lists all known modalities in their canonical order. The order
// is also the deterministic tie-break used by eviction when timestamps match.
func Modalities() []Modality {
	return []Modality{
		ModalityLanguage,
		ModalitySpeechRecognition,
		ModalitySpeechSynthesis,
		ModalityAudio,
	}
}

// ParseModality converts a string to a Modality, accepting the canonical
// wire names only.
func ParseModality(s string) (Modality, error) {
	switch Modality(s) {
	case ModalityLanguage, ModalitySpeechRecognition, ModalitySpeechSynthesis, ModalityAudio:
		return Modality(s), nil
	}
	return "", fmt.Errorf("unknown modality: %q", s)
}

// ModelDescriptor describes a model known to the catalog. Descriptors are
// value types; the catalog hands out copies, so callers cannot mutate
// catalog state through a returned descriptor.
type ModelDescriptor struct {
	// Stable identifier for the model.
	// example: tinyllama-1.1b-q4
	ID string `json:"id" example:"tinyllama-1.1b-q4"`
	// Human-friendly name.
	// example: TinyLlama 1.1B (Q4)
	Name string `json:"name" example:"TinyLlama 1.1B (Q4)"`
	// Capability class this model serves.
	// example: language
	Modality Modality `json:"modality" example:"language"`
	// On-disk format (gguf, onnx, bin).
	// example: gguf
	Format string `json:"format,omitempty" example:"gguf"`
	// Framework ids that can host this model, in preference order.
	CompatibleFrameworks []string `json:"compatible_frameworks,omitempty"`
	// Framework id preferred for this model, if any.
	// example: llamacpp
	PreferredFramework string `json:"preferred_framework,omitempty" example:"llamacpp"`
	// Absolute path of the local artifact; empty until discovered.
	LocalPath string `json:"local_path,omitempty"`
	// Builtin marks adapter-provided models that need no local artifact.
	Builtin bool `json:"builtin,omitempty"`
	// Estimated memory needed to host the model, in bytes. Zero if unknown.
	MemoryRequiredBytes int64 `json:"memory_required_bytes,omitempty"`
	// Context window length, where applicable.
	ContextLength int `json:"context_length,omitempty"`
}

// Materialized reports whether the model can be loaded right now: it either
// has a local artifact or is built into a registered adapter.
func (d ModelDescriptor) Materialized() bool {
	return d.Builtin || d.LocalPath != ""
}

// SupportsFramework reports whether frameworkID appears in the descriptor's
// compatibility list. An empty list means "any framework may try".
func (d ModelDescriptor) SupportsFramework(frameworkID string) bool {
	if len(d.CompatibleFrameworks) == 0 {
		return true
	}
	for _, f := range d.CompatibleFrameworks {
		if f == frameworkID {
			return true
		}
	}
	return false
}

// PressureLevel is a coarse classification of available system memory.
type PressureLevel string

const (
	PressureNone     PressureLevel = "none"
	PressureWarning  PressureLevel = "warning"
	PressureCritical PressureLevel = "critical"
)

// MemorySnapshot is one observation of system and process memory.
type MemorySnapshot struct {
	// Total physical memory in bytes.
	TotalBytes uint64 `json:"total_bytes"`
	// Memory available for new allocations in bytes.
	AvailableBytes uint64 `json:"available_bytes"`
	// Memory in use in bytes.
	UsedBytes uint64 `json:"used_bytes"`
	// Resident set size of this process in bytes.
	ProcessRSSBytes uint64 `json:"process_rss_bytes,omitempty"`
	// Pressure classification at snapshot time.
	// example: none
	Pressure PressureLevel `json:"pressure" example:"none"`
	// Snapshot time.
	Timestamp time.Time `json:"timestamp"`
}

// TrendDirection indicates which way available memory is moving.
type TrendDirection string

const (
	TrendIncreasing TrendDirection = "increasing"
	TrendDecreasing TrendDirection = "decreasing"
	TrendStable     TrendDirection = "stable"
)

// MemoryTrend summarizes available-memory movement over a window.
type MemoryTrend struct {
	// Direction of available memory within the window.
	// example: decreasing
	Direction TrendDirection `json:"direction" example:"decreasing"`
	// Fraction of consecutive sample pairs agreeing with Direction (0..1).
	// example: 0.8
	Confidence float64 `json:"confidence" example:"0.8"`
	// Number of samples considered.
	// example: 10
	Samples int `json:"samples" example:"10"`
}
