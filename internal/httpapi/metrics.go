package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"modelhost/internal/lifecycle"
	"modelhost/pkg/types"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "modelhost",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"path", "method", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "modelhost",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"path", "method", "status"},
	)

	httpInflight = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "modelhost",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "In-flight HTTP requests",
		},
		[]string{"path"},
	)

	lifecycleEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "modelhost",
			Subsystem: "lifecycle",
			Name:      "events_total",
			Help:      "Lifecycle events by name",
		},
		[]string{"event"},
	)

	loadedModelsGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "modelhost",
			Subsystem: "lifecycle",
			Name:      "loaded_models",
			Help:      "Number of tracked loaded models",
		},
	)

	pressureLevelGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "modelhost",
			Subsystem: "memory",
			Name:      "pressure_level",
			Help:      "Memory pressure level (0=none, 1=warning, 2=critical)",
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		httpInflight,
		lifecycleEventsTotal,
		loadedModelsGauge,
		pressureLevelGauge,
	)
}

// statusRecorder wraps http.ResponseWriter to capture the status code.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

// Flush keeps streaming responses (SSE) working through the wrapper.
func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// MetricsMiddleware instruments requests for Prometheus.
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := routePatternOrPath(r)
		method := r.Method
		httpInflight.WithLabelValues(path).Inc()
		defer httpInflight.WithLabelValues(path).Dec()

		sr := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(sr, r)
		statusLabel := strconv.Itoa(sr.status)
		httpRequestsTotal.WithLabelValues(path, method, statusLabel).Inc()
		httpRequestDuration.WithLabelValues(path, method, statusLabel).Observe(time.Since(start).Seconds())
	})
}

// routePatternOrPath returns the chi route pattern if available, otherwise
// falls back to the URL path. This avoids high-cardinality label values.
func routePatternOrPath(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return r.URL.Path
}

// metricsPublisher mirrors lifecycle events into Prometheus counters.
type metricsPublisher struct{}

// NewMetricsPublisher returns a lifecycle.Publisher that keeps the metric
// vectors in sync with the lifecycle event stream.
func NewMetricsPublisher() lifecycle.Publisher {
	return metricsPublisher{}
}

func (metricsPublisher) Publish(e lifecycle.Event) {
	lifecycleEventsTotal.WithLabelValues(string(e.Name)).Inc()
	switch e.Name {
	case lifecycle.EventDidLoad:
		loadedModelsGauge.Inc()
	case lifecycle.EventDidUnload:
		loadedModelsGauge.Dec()
	case lifecycle.EventMemoryPressure:
		if lvl, ok := e.Fields["pressure"].(string); ok {
			pressureLevelGauge.Set(pressureValue(types.PressureLevel(lvl)))
		}
	}
}

func pressureValue(p types.PressureLevel) float64 {
	switch p {
	case types.PressureWarning:
		return 1
	case types.PressureCritical:
		return 2
	}
	return 0
}
