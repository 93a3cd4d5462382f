//go:build llama

package adapters

import (
	"context"
	"errors"
	"strings"
	"sync"

	llama "github.com/go-skynet/go-llama.cpp"

	"modelhost/pkg/types"
)

// llamaBuilt indicates this binary was compiled with real llama support.
var llamaBuilt = true

// LlamaCppAdapter hosts GGUF language models in-process via llama.cpp.
type LlamaCppAdapter struct {
	ctxSize int
	threads int
}

func NewLlamaCppAdapter(ctxSize, threads int) *LlamaCppAdapter {
	if ctxSize <= 0 {
		ctxSize = 2048
	}
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
	if m != types.ModalityLanguage {
		return nil, errors.New("llamacpp: only language models are supported")
	}
	if strings.TrimSpace(d.LocalPath) == "" {
		return nil, errors.New("llamacpp: model path is empty")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ctxSize := a.ctxSize
	if d.ContextLength > 0 && d.ContextLength < ctxSize {
		ctxSize = d.ContextLength
	}
	mdl, err := llama.New(d.LocalPath, llama.SetContext(ctxSize))
	if err != nil {
		return nil, err
	}
	return &llamaHandle{model: mdl}, nil
}

func (a *LlamaCppAdapter) EstimateMemoryUsage(d types.ModelDescriptor) int64 {
	return d.MemoryRequiredBytes
}

func (a *LlamaCppAdapter) ProvidedModels() []types.ModelDescriptor { return nil }

func (a *LlamaCppAdapter) OnRegistration() error { return nil }

// llamaHandle owns the loaded model. Free is idempotent.
type llamaHandle struct {
	mu    sync.Mutex
	model *llama.LLama
}

func (h *llamaHandle) Framework() string        { return LlamaCppFramework }
func (h *llamaHandle) Modality() types.Modality { return types.ModalityLanguage }

func (h *llamaHandle) Cleanup(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.model != nil {
		h.model.Free()
		h.model = nil
	}
	return nil
}
