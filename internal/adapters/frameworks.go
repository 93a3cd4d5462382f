package adapters

import "errors"

// Well-known framework ids.
const (
	LlamaCppFramework = "llamacpp"
)

// ErrLlamaNotBuilt is returned by the llama.cpp stub when the binary was
// built without the 'llama' tag.
var ErrLlamaNotBuilt = errors.New("llamacpp adapter not built (rebuild with -tags=llama)")

// LlamaBuilt reports whether this binary carries the real llama.cpp adapter.
func LlamaBuilt() bool { return llamaBuilt }
