package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"modelhost/internal/adapters"
	"modelhost/internal/catalog"
	"modelhost/internal/lifecycle"
	"modelhost/internal/memory"
	"modelhost/pkg/types"
)

// Deps are the components the HTTP layer serves.
type Deps struct {
	Catalog   *catalog.Catalog
	Registry  *adapters.Registry
	Orch      *lifecycle.Orchestrator
	Monitor   *memory.Monitor
	StartTime time.Time
}

// CORS configuration (opt-in). If disabled, no CORS middleware is added.
var (
	corsEnabled        bool
	corsAllowedOrigins []string
	corsAllowedMethods []string
	corsAllowedHeaders []string
)

// SetCORSOptions configures CORS behavior for the HTTP server.
func SetCORSOptions(enabled bool, origins, methods, headers []string) {
	corsEnabled = enabled
	corsAllowedOrigins = append([]string(nil), origins...)
	corsAllowedMethods = append([]string(nil), methods...)
	corsAllowedHeaders = append([]string(nil), headers...)
}

func NewMux(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(MetricsMiddleware)
	r.Use(RequestLogger)
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
		}))
	}

	r.Route("/v1", func(r chi.Router) {
		r.Get("/models", d.handleListModels)
		r.Get("/status", d.handleStatus)
		r.Get("/memory", d.handleMemory)
		r.Get("/events", d.handleEvents)
		r.Post("/models/{id}/load", d.handleLoad)
		r.Post("/models/{id}/unload", d.handleUnload)
		r.Post("/modalities/{modality}/unload", d.handleUnloadModality)
		r.Post("/unload-all", d.handleUnloadAll)
		r.Post("/pressure", d.handlePressure)
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if len(d.Registry.AvailableFrameworks()) > 0 {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("no adapters registered"))
	})
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	MountSwagger(r)

	return r
}

// ListModels godoc
// @Summary List catalog models
// @Produce json
// @Success 200 {object} types.ModelsResponse
// @Router /v1/models [get]
func (d Deps) handleListModels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, types.ModelsResponse{Models: d.Catalog.List()})
}

// Status godoc
// @Summary Report loaded models and memory state
// @Produce json
// @Success 200 {object} types.StatusResponse
// @Router /v1/status [get]
func (d Deps) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap, err := d.Monitor.CurrentStats()
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	loads, unloads, evictions := d.Orch.Counters()
	resp := types.StatusResponse{
		LoadedModels:        []types.LoadedModelStatus{},
		TrackedUsageBytes:   d.Orch.TrackedUsageBytes(),
		Memory:              snap,
		AvailableFrameworks: d.Registry.AvailableFrameworks(),
		UptimeSeconds:       int64(time.Since(d.StartTime) / time.Second),
		ServerTimeUnix:      time.Now().Unix(),
		LoadsTotal:          loads,
		UnloadsTotal:        unloads,
		EvictionsTotal:      evictions,
	}
	for _, st := range d.Orch.LoadedStates() {
		resp.LoadedModels = append(resp.LoadedModels, types.LoadedModelStatus{
			ModelID:          st.ModelID,
			Modality:         st.Modality,
			Framework:        st.Framework,
			LoadedAtUnix:     st.LoadedAt.Unix(),
			MemoryUsageBytes: st.MemoryUsageBytes,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// Memory godoc
// @Summary Current memory snapshot with optional trend
// @Produce json
// @Param window query string false "trend window, e.g. 30s"
// @Success 200 {object} map[string]any
// @Router /v1/memory [get]
func (d Deps) handleMemory(w http.ResponseWriter, r *http.Request) {
	snap, err := d.Monitor.CurrentStats()
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := map[string]any{"snapshot": snap}
	if q := r.URL.Query().Get("window"); q != "" {
		window, err := time.ParseDuration(q)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid window duration")
			return
		}
		if tr, ok := d.Monitor.Trend(window); ok {
			out["trend"] = tr
		}
	}
	writeJSON(w, http.StatusOK, out)
}

// Load godoc
// @Summary Load a model
// @Produce json
// @Param id path string true "model id"
// @Param modality query string false "override modality (defaults to the descriptor's)"
// @Success 200 {object} types.LoadResponse
// @Failure 404 {object} types.ErrorResponse
// @Failure 409 {object} types.ErrorResponse
// @Failure 502 {object} types.ErrorResponse
// @Failure 503 {object} types.ErrorResponse
// @Router /v1/models/{id}/load [post]
func (d Deps) handleLoad(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var modality types.Modality
	if q := r.URL.Query().Get("modality"); q != "" {
		m, err := types.ParseModality(q)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		modality = m
	} else {
		desc, ok := d.Catalog.GetModel(id)
		if !ok {
			writeJSONError(w, http.StatusNotFound, "model not found: "+id)
			return
		}
		modality = desc.Modality
	}

	lm, err := d.Orch.LoadModel(r.Context(), id, modality, nil)
	if err != nil {
		writeLifecycleError(w, err)
		return
	}
	st, _ := d.Orch.GetLoadedModel(modality)
	writeJSON(w, http.StatusOK, types.LoadResponse{
		ModelID:          lm.Descriptor.ID,
		Modality:         modality,
		Framework:        lm.Handle.Framework(),
		MemoryUsageBytes: st.MemoryUsageBytes,
	})
}

// Unload godoc
// @Summary Unload a model by id
// @Produce json
// @Param id path string true "model id"
// @Success 204
// @Router /v1/models/{id}/unload [post]
func (d Deps) handleUnload(w http.ResponseWriter, r *http.Request) {
	if err := d.Orch.UnloadModel(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeLifecycleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UnloadModality godoc
// @Summary Unload the model tracked for a modality
// @Produce json
// @Param modality path string true "modality"
// @Success 204
// @Router /v1/modalities/{modality}/unload [post]
func (d Deps) handleUnloadModality(w http.ResponseWriter, r *http.Request) {
	m, err := types.ParseModality(chi.URLParam(r, "modality"))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := d.Orch.UnloadModels(r.Context(), m); err != nil {
		writeLifecycleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (d Deps) handleUnloadAll(w http.ResponseWriter, r *http.Request) {
	if err := d.Orch.UnloadAllModels(r.Context()); err != nil {
		writeLifecycleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Pressure godoc
// @Summary Run one memory-pressure check
// @Produce json
// @Success 200 {object} types.MemorySnapshot
// @Router /v1/pressure [post]
func (d Deps) handlePressure(w http.ResponseWriter, r *http.Request) {
	snap, err := d.Orch.HandleMemoryPressure(r.Context())
	if err != nil {
		writeLifecycleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Headers already flushed; nothing sensible left to do.
		_ = err
	}
}
