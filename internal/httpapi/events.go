package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// handleEvents streams lifecycle events to the client as server-sent events.
//
// @Summary Lifecycle event stream
// @Description Streams load/unload/pressure lifecycle events as SSE. Each
// @Description event is a JSON object on a single `data:` line.
// @Tags events
// @Produce text/event-stream
// @Success 200 {string} string "event stream"
// @Router /v1/events [get]
func (d Deps) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSONError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	events, cancel := d.Orch.Events()
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, open := <-events:
			if !open {
				return
			}
			payload, err := json.Marshal(ev)
			if err != nil {
				logger().Warn().Err(err).Str("event", string(ev.Name)).Msg("drop unmarshalable event")
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
		}
	}
}
