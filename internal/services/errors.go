package services

import "errors"

// serviceNotFoundError signals an unknown service name.
type serviceNotFoundError struct{ name string }

func (e serviceNotFoundError) Error() string { return "service not found: " + e.name }

func ErrServiceNotFound(name string) error { return serviceNotFoundError{name: name} }

// IsServiceNotFound reports whether err indicates a missing service name.
func IsServiceNotFound(err error) bool {
	var e serviceNotFoundError
	return errors.As(err, &e)
}

// serviceStartupFailedError wraps a service's start failure with its name.
type serviceStartupFailedError struct {
	name string
	err  error
}

func (e serviceStartupFailedError) Error() string {
	return "service startup failed: " + e.name + ": " + e.err.Error()
}

func (e serviceStartupFailedError) Unwrap() error { return e.err }

func ErrServiceStartupFailed(name string, err error) error {
	return serviceStartupFailedError{name: name, err: err}
}

// IsServiceStartupFailed reports whether err came from a failed start, and
// if so for which service.
func IsServiceStartupFailed(err error) (string, bool) {
	var e serviceStartupFailedError
	if errors.As(err, &e) {
		return e.name, true
	}
	return "", false
}

// serviceShutdownFailedError wraps a service's stop failure with its name.
type serviceShutdownFailedError struct {
	name string
	err  error
}

func (e serviceShutdownFailedError) Error() string {
	return "service shutdown failed: " + e.name + ": " + e.err.Error()
}

func (e serviceShutdownFailedError) Unwrap() error { return e.err }

func ErrServiceShutdownFailed(name string, err error) error {
	return serviceShutdownFailedError{name: name, err: err}
}

// IsServiceShutdownFailed reports whether err came from a failed stop, and
// if so for which service.
func IsServiceShutdownFailed(err error) (string, bool) {
	var e serviceShutdownFailedError
	if errors.As(err, &e) {
		return e.name, true
	}
	return "", false
}
