package memory

import (
	"sync"
	"time"

	"modelhost/pkg/types"
)

// Defaults applied when Configure has not been called.
const (
	defaultMemoryThreshold   = 500_000_000
	defaultCriticalThreshold = 200_000_000
	historyCap               = 100
)

// Sample is one raw reading from the platform.
type Sample struct {
	TotalBytes      uint64
	AvailableBytes  uint64
	UsedBytes       uint64
	ProcessRSSBytes uint64
}

// Sampler produces raw memory readings. The default reads system and
// process stats via gopsutil; tests inject synthetic values.
type Sampler func() (Sample, error)

// Monitor classifies memory pressure and keeps a bounded history of
// snapshots for trend analysis. It is a pure information source: it never
// mutates loaded models.
type Monitor struct {
	mu                sync.Mutex
	sample            Sampler
	memoryThreshold   int64
	criticalThreshold int64
	history           []types.MemorySnapshot
	now               func() time.Time
}

func NewMonitor(sample Sampler) *Monitor {
	if sample == nil {
		sample = SystemSampler
	}
	return &Monitor{
		sample:            sample,
		memoryThreshold:   defaultMemoryThreshold,
		criticalThreshold: defaultCriticalThreshold,
		now:               time.Now,
	}
}

// Configure sets the pressure thresholds in bytes. Non-positive values keep
// the current setting.
func (m *Monitor) Configure(memoryThreshold, criticalThreshold int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if memoryThreshold > 0 {
		m.memoryThreshold = memoryThreshold
	}
	if criticalThreshold > 0 {
		m.criticalThreshold = criticalThreshold
	}
}

// CurrentStats samples memory, classifies pressure, and appends the snapshot
// to the history (oldest entry evicted beyond capacity).
func (m *Monitor) CurrentStats() (types.MemorySnapshot, error) {
	s, err := m.sample()
	if err != nil {
		return types.MemorySnapshot{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	snap := types.MemorySnapshot{
		TotalBytes:      s.TotalBytes,
		AvailableBytes:  s.AvailableBytes,
		UsedBytes:       s.UsedBytes,
		ProcessRSSBytes: s.ProcessRSSBytes,
		Pressure:        m.classify(s.AvailableBytes),
		Timestamp:       m.now(),
	}
	m.history = append(m.history, snap)
	if len(m.history) > historyCap {
		m.history = m.history[len(m.history)-historyCap:]
	}
	return snap, nil
}

// classify must be called with the lock held.
func (m *Monitor) classify(available uint64) types.PressureLevel {
	switch {
	case available < uint64(m.criticalThreshold):
		return types.PressureCritical
	case available < uint64(m.memoryThreshold):
		return types.PressureWarning
	}
	return types.PressureNone
}

// Trend reports the direction of available memory within the window.
// Direction is the sign of (last - first) available bytes. Confidence is the
// fraction of consecutive sample pairs whose delta agrees with the overall
// direction; with fewer than 3 samples in the window it defaults to 0.5.
// Returns false when the window holds fewer than 2 samples.
func (m *Monitor) Trend(window time.Duration) (types.MemoryTrend, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.now().Add(-window)
	var in []types.MemorySnapshot
	for _, s := range m.history {
		if !s.Timestamp.Before(cutoff) {
			in = append(in, s)
		}
	}
	if len(in) < 2 {
		return types.MemoryTrend{}, false
	}

	first := in[0].AvailableBytes
	last := in[len(in)-1].AvailableBytes
	var dir types.TrendDirection
	switch {
	case last > first:
		dir = types.TrendIncreasing
	case last < first:
		dir = types.TrendDecreasing
	default:
		dir = types.TrendStable
	}

	confidence := 0.5
	if len(in) >= 3 {
		agree := 0
		pairs := len(in) - 1
		for i := 1; i < len(in); i++ {
			prev, cur := in[i-1].AvailableBytes, in[i].AvailableBytes
			switch dir {
			case types.TrendIncreasing:
				if cur > prev {
					agree++
				}
			case types.TrendDecreasing:
				if cur < prev {
					agree++
				}
			default:
				if cur == prev {
					agree++
				}
			}
		}
		confidence = float64(agree) / float64(pairs)
	}

	return types.MemoryTrend{Direction: dir, Confidence: confidence, Samples: len(in)}, true
}

// HistoryLen reports the number of retained snapshots.
func (m *Monitor) HistoryLen() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.history)
}
