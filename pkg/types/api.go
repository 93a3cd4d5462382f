package types

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: model not found: tinyllama-1.1b-q4
	Error string `json:"error" example:"model not found: tinyllama-1.1b-q4"`
	// HTTP status code.
	// example: 404
	Code int `json:"code" example:"404"`
}

// ModelsResponse wraps the catalog listing returned by GET /v1/models.
type ModelsResponse struct {
	Models []ModelDescriptor `json:"models"`
}

// LoadResponse is returned by POST /v1/models/{id}/load.
type LoadResponse struct {
	// ID of the loaded model.
	// example: tinyllama-1.1b-q4
	ModelID string `json:"model_id" example:"tinyllama-1.1b-q4"`
	// Modality the model was loaded for.
	// example: language
	Modality Modality `json:"modality" example:"language"`
	// Framework that produced the handle.
	// example: llamacpp
	Framework string `json:"framework,omitempty" example:"llamacpp"`
	// Estimated memory used by the loaded instance, in bytes.
	MemoryUsageBytes int64 `json:"memory_usage_bytes,omitempty"`
}

// LoadedModelStatus summarizes one modality's tracked model for /v1/status.
type LoadedModelStatus struct {
	// ID of the tracked model.
	// example: tinyllama-1.1b-q4
	ModelID string `json:"model_id" example:"tinyllama-1.1b-q4"`
	// Modality the model serves.
	// example: language
	Modality Modality `json:"modality" example:"language"`
	// Framework hosting the model.
	// example: llamacpp
	Framework string `json:"framework,omitempty" example:"llamacpp"`
	// Load completion time (unix seconds).
	// example: 1700000000
	LoadedAtUnix int64 `json:"loaded_at_unix" example:"1700000000"`
	// Estimated memory used by the instance, in bytes.
	MemoryUsageBytes int64 `json:"memory_usage_bytes,omitempty"`
}

// StatusResponse is returned by GET /v1/status.
type StatusResponse struct {
	// Tracked models, at most one per modality.
	LoadedModels []LoadedModelStatus `json:"loaded_models"`
	// Sum of tracked memory usage in bytes.
	TrackedUsageBytes int64 `json:"tracked_usage_bytes"`
	// Latest memory snapshot.
	Memory MemorySnapshot `json:"memory"`
	// Framework ids with a registered adapter.
	AvailableFrameworks []string `json:"available_frameworks"`
	// Uptime of the server in seconds.
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
	// Server time in unix seconds.
	// example: 1700000000
	ServerTimeUnix int64 `json:"server_time_unix" example:"1700000000"`
	// Total successful loads since start.
	// example: 12
	LoadsTotal uint64 `json:"loads_total" example:"12"`
	// Total unloads since start.
	// example: 7
	UnloadsTotal uint64 `json:"unloads_total" example:"7"`
	// Total pressure-driven evictions since start.
	// example: 2
	EvictionsTotal uint64 `json:"evictions_total" example:"2"`
}
