package adapters

import (
	"context"

	"modelhost/pkg/types"
)

// ServiceHandle is a live backend instance bound to one model. Cleanup must
// be safe to call more than once and on a partially torn-down handle.
type ServiceHandle interface {
	Framework() string
	Modality() types.Modality
	Cleanup(ctx context.Context) error
}

// Adapter abstracts an inference backend. Concrete implementations wrap a
// native runtime (llama.cpp, ONNX, platform speech APIs) and are registered
// with the Registry under their framework id.
type Adapter interface {
	// FrameworkID is the stable registry key for this backend.
	FrameworkID() string
	// Capabilities lists the modalities this backend can serve.
	Capabilities() []types.Modality
	// CanHandle reports whether the backend supports the given descriptor.
	CanHandle(d types.ModelDescriptor) bool
	// LoadModel initializes the model and returns a ready handle. Loading is
	// expensive (seconds, large allocations) and may block on I/O; callers
	// must treat it as a suspension point.
	LoadModel(ctx context.Context, d types.ModelDescriptor, m types.Modality) (ServiceHandle, error)
	// EstimateMemoryUsage returns the expected resident bytes for the model.
	EstimateMemoryUsage(d types.ModelDescriptor) int64
	// ProvidedModels lists models the backend contributes to the catalog at
	// registration time (e.g. OS-bundled voices).
	ProvidedModels() []types.ModelDescriptor
	// OnRegistration runs once when the adapter is first registered.
	OnRegistration() error
}
