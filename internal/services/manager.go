package services

import (
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
)

// Service is a long-lived auxiliary component managed by name.
type Service interface {
	Start() error
	Stop() error
	IsRunning() bool
}

type entry struct {
	name    string
	svc     Service
	started bool
}

// Manager is a generic named-service start/stop orchestrator, independent of
// models. Services start in registration order and stop in reverse start
// order. Start and stop are deliberately non-atomic: a failure mid-way
// leaves already-transitioned services as they are.
type Manager struct {
	mu       sync.Mutex
	entries  map[string]*entry
	order    []string // registration order
	startSeq []string // names in the order they were started

	retryAttempts uint64
	retryInterval time.Duration

	log zerolog.Logger
}

// Option customizes a Manager.
type Option func(*Manager)

// WithStartRetry retries failed starts up to attempts extra times with a
// constant interval between tries. Off by default, preserving fail-fast.
func WithStartRetry(attempts uint64, interval time.Duration) Option {
	return func(m *Manager) {
		m.retryAttempts = attempts
		m.retryInterval = interval
	}
}

func NewManager(log zerolog.Logger, opts ...Option) *Manager {
	m := &Manager{
		entries: make(map[string]*entry),
		log:     log,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Register adds a service under name. Re-registration replaces the previous
// service and logs a warning; the original registration position is kept.
func (m *Manager) Register(name string, svc Service) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.entries[name]; exists {
		m.log.Warn().Str("service", name).Msg("service re-registered, replacing previous entry")
	} else {
		m.order = append(m.order, name)
	}
	m.entries[name] = &entry{name: name, svc: svc}
}

// Unregister removes a service. A still-running service is left running;
// the caller owns stopping it first.
func (m *Manager) Unregister(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[name]
	if !ok {
		return
	}
	if e.started {
		m.log.Warn().Str("service", name).Msg("unregistering a started service")
	}
	delete(m.entries, name)
	m.order = remove(m.order, name)
	m.startSeq = remove(m.startSeq, name)
}

// Start starts the named service. Starting an already-started service is a
// no-op.
func (m *Manager) Start(name string) error {
	m.mu.Lock()
	e, ok := m.entries[name]
	if !ok {
		m.mu.Unlock()
		return ErrServiceNotFound(name)
	}
	if e.started || e.svc.IsRunning() {
		e.started = true
		m.mu.Unlock()
		return nil
	}
	svc := e.svc
	m.mu.Unlock()

	// Start may block; never call it with the lock held.
	if err := m.startWithRetry(name, svc); err != nil {
		return ErrServiceStartupFailed(name, err)
	}

	m.mu.Lock()
	if e2, ok := m.entries[name]; ok {
		e2.started = true
		m.startSeq = append(remove(m.startSeq, name), name)
	}
	m.mu.Unlock()
	m.log.Info().Str("service", name).Msg("service started")
	return nil
}

func (m *Manager) startWithRetry(name string, svc Service) error {
	if m.retryAttempts == 0 {
		return svc.Start()
	}
	b := backoff.WithMaxRetries(backoff.NewConstantBackOff(m.retryInterval), m.retryAttempts)
	return backoff.Retry(func() error {
		if err := svc.Start(); err != nil {
			m.log.Warn().Str("service", name).Err(err).Msg("service start attempt failed")
			return err
		}
		return nil
	}, b)
}

// Stop stops the named service. Stopping a service that is not started is a
// no-op.
func (m *Manager) Stop(name string) error {
	m.mu.Lock()
	e, ok := m.entries[name]
	if !ok {
		m.mu.Unlock()
		return ErrServiceNotFound(name)
	}
	if !e.started {
		m.mu.Unlock()
		return nil
	}
	svc := e.svc
	m.mu.Unlock()

	if err := svc.Stop(); err != nil {
		return ErrServiceShutdownFailed(name, err)
	}

	m.mu.Lock()
	if e2, ok := m.entries[name]; ok {
		e2.started = false
		m.startSeq = remove(m.startSeq, name)
	}
	m.mu.Unlock()
	m.log.Info().Str("service", name).Msg("service stopped")
	return nil
}

// Restart stops the service if started and starts it again.
func (m *Manager) Restart(name string) error {
	if err := m.Stop(name); err != nil {
		return err
	}
	return m.Start(name)
}

// StartAll starts every not-yet-started service in registration order. On
// the first failure it returns immediately; services already started in this
// call stay started (no rollback).
func (m *Manager) StartAll() error {
	m.mu.Lock()
	plan := make([]string, len(m.order))
	copy(plan, m.order)
	m.mu.Unlock()

	for _, name := range plan {
		if err := m.Start(name); err != nil {
			return err
		}
	}
	return nil
}

// StopAll stops currently-started services in the reverse of their start
// order. The first stop failure aborts the sweep, leaving services earlier
// in the planned order unstopped.
func (m *Manager) StopAll() error {
	m.mu.Lock()
	plan := make([]string, len(m.startSeq))
	copy(plan, m.startSeq)
	m.mu.Unlock()

	for i := len(plan) - 1; i >= 0; i-- {
		if err := m.Stop(plan[i]); err != nil {
			return err
		}
	}
	return nil
}

// Names lists registered service names in registration order.
func (m *Manager) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}

// IsStarted reports whether the named service was started by this manager.
func (m *Manager) IsStarted(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[name]
	return ok && e.started
}

func remove(s []string, name string) []string {
	out := s[:0]
	for _, v := range s {
		if v != name {
			out = append(out, v)
		}
	}
	return out
}
