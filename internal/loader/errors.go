package loader

import (
	"errors"

	"modelhost/pkg/types"
)

// modelNotFoundError signals a catalog miss for 404 mapping.
type modelNotFoundError struct{ id string }

func (e modelNotFoundError) Error() string { return "model not found: " + e.id }

func ErrModelNotFound(id string) error { return modelNotFoundError{id: id} }

// IsModelNotFound reports whether err indicates a missing model id.
func IsModelNotFound(err error) bool {
	var e modelNotFoundError
	return errors.As(err, &e)
}

// modelNotMaterializedError signals a known model with no local artifact and
// no builtin backing.
type modelNotMaterializedError struct{ id string }

func (e modelNotMaterializedError) Error() string {
	return "model not downloaded: " + e.id
}

func ErrModelNotMaterialized(id string) error { return modelNotMaterializedError{id: id} }

// IsModelNotMaterialized reports whether err indicates the model has no
// loadable artifact.
func IsModelNotMaterialized(err error) bool {
	var e modelNotMaterializedError
	return errors.As(err, &e)
}

// noCapableAdapterError signals an empty candidate list for the modality.
type noCapableAdapterError struct {
	id       string
	modality types.Modality
}

func (e noCapableAdapterError) Error() string {
	return "no capable adapter for model " + e.id + " (" + string(e.modality) + ")"
}

func ErrNoCapableAdapter(id string, m types.Modality) error {
	return noCapableAdapterError{id: id, modality: m}
}

// IsNoCapableAdapter reports whether err indicates no registered backend can
// serve the model.
func IsNoCapableAdapter(err error) bool {
	var e noCapableAdapterError
	return errors.As(err, &e)
}

// adapterLoadFailedError carries the last adapter's error after the fallback
// chain is exhausted.
type adapterLoadFailedError struct {
	id        string
	framework string
	err       error
}

func (e adapterLoadFailedError) Error() string {
	return "adapter load failed for model " + e.id + " (last framework " + e.framework + "): " + e.err.Error()
}

func (e adapterLoadFailedError) Unwrap() error { return e.err }

func ErrAdapterLoadFailed(id, framework string, err error) error {
	return adapterLoadFailedError{id: id, framework: framework, err: err}
}

// IsAdapterLoadFailed reports whether err indicates every candidate adapter
// failed to load the model.
func IsAdapterLoadFailed(err error) bool {
	var e adapterLoadFailedError
	return errors.As(err, &e)
}
