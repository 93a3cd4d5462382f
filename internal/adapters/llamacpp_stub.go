//go:build !llama

package adapters

import (
	"context"
	"strings"

	"modelhost/pkg/types"
)

// This file provides a no-CGO stub for the llama.cpp adapter. It is compiled
// when the 'llama' build tag is NOT set, keeping default builds and CI
// CGO-free. The real adapter lives in llamacpp.go (tagged 'llama').

var llamaBuilt = false

// LlamaCppAdapter is a stub that satisfies Adapter but refuses to load
// models without the 'llama' build tag. This avoids any mocked behavior in
// production binaries built without CGO support.
type LlamaCppAdapter struct {
	ctxSize int
	threads int
}

func NewLlamaCppAdapter(ctxSize, threads int) *LlamaCppAdapter {
	return &LlamaCppAdapter{ctxSize: ctxSize, threads: threads}
}

func (a *LlamaCppAdapter) FrameworkID() string { return LlamaCppFramework }

func (a *LlamaCppAdapter) Capabilities() []types.Modality {
	return []types.Modality{types.ModalityLanguage}
}

func (a *LlamaCppAdapter) CanHandle(d types.ModelDescriptor) bool {
	if !d.SupportsFramework(LlamaCppFramework) {
		return false
	}
	return d.Format == "gguf" || strings.HasSuffix(strings.ToLower(d.LocalPath), ".gguf")
}

func (a *LlamaCppAdapter) LoadModel(ctx context.Context, d types.ModelDescriptor, m types.Modality) (ServiceHandle, error) {
	return nil, ErrLlamaNotBuilt
}

func (a *LlamaCppAdapter) EstimateMemoryUsage(d types.ModelDescriptor) int64 {
	return d.MemoryRequiredBytes
}

func (a *LlamaCppAdapter) ProvidedModels() []types.ModelDescriptor { return nil }

func (a *LlamaCppAdapter) OnRegistration() error { return nil }
