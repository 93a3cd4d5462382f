package httpapi

import (
	"encoding/json"
	"net/http"

	"modelhost/internal/loader"
	"modelhost/internal/services"
	"modelhost/pkg/types"
)

// HTTPError allows components to provide an HTTP status code for an error.
type HTTPError interface {
	error
	StatusCode() int
}

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: msg, Code: status})
}

// writeLifecycleError maps typed lifecycle errors to HTTP status codes.
func writeLifecycleError(w http.ResponseWriter, err error) {
	switch {
	case loader.IsModelNotFound(err):
		writeJSONError(w, http.StatusNotFound, err.Error())
	case loader.IsModelNotMaterialized(err):
		writeJSONError(w, http.StatusConflict, err.Error())
	case loader.IsNoCapableAdapter(err):
		writeJSONError(w, http.StatusServiceUnavailable, err.Error())
	case loader.IsAdapterLoadFailed(err):
		writeJSONError(w, http.StatusBadGateway, err.Error())
	case isServiceError(err):
		writeJSONError(w, http.StatusInternalServerError, err.Error())
	default:
		if he, ok := err.(HTTPError); ok {
			writeJSONError(w, he.StatusCode(), he.Error())
			return
		}
		writeJSONError(w, http.StatusInternalServerError, err.Error())
	}
}

func isServiceError(err error) bool {
	if services.IsServiceNotFound(err) {
		return true
	}
	if _, ok := services.IsServiceStartupFailed(err); ok {
		return true
	}
	_, ok := services.IsServiceShutdownFailed(err)
	return ok
}
