package api

import (
	"net/http"

	"github.com/JakeFAU/appcatalog/internal/enrich"
)

// ProgressSource returns the counters of the current run.
type ProgressSource interface {
	Snapshot() enrich.ProgressSnapshot
}

// ProgressHandler exposes read-only run progress.
type ProgressHandler struct {
	source ProgressSource
}

// NewProgressHandler wires the progress source.
func NewProgressHandler(source ProgressSource) *ProgressHandler {
	return &ProgressHandler{source: source}
}

// Get handles GET /v1/progress. It returns the snapshot as JSON, or 503 when
// no run is being tracked.
func (h *ProgressHandler) Get(w http.ResponseWriter, _ *http.Request) {
	if h == nil || h.source == nil {
		writeError(w, http.StatusServiceUnavailable, "progress unavailable")
		return
	}
	writeJSON(w, http.StatusOK, h.source.Snapshot())
}
