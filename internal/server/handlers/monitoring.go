package handlers

import (
	"log/slog"
	"net/http"
	"time"

	derrors "git.home.luguber.info/inful/updraft/internal/foundation/errors"
	"git.home.luguber.info/inful/updraft/internal/server/responses"
	"git.home.luguber.info/inful/updraft/internal/version"
)

// MonitoringHandlers contains liveness endpoints.
type MonitoringHandlers struct {
	errorAdapter *derrors.HTTPErrorAdapter
}

// NewMonitoringHandlers creates a new monitoring handlers instance.
func NewMonitoringHandlers() *MonitoringHandlers {
	return &MonitoringHandlers{
		errorAdapter: derrors.NewHTTPErrorAdapter(slog.Default()),
	}
}

// HandleHealth handles GET /healthz.
func (h *MonitoringHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	resp := &responses.HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
		Version:   version.Version,
	}
	if err := writeJSONPretty(w, r, http.StatusOK, resp); err != nil {
		internalErr := derrors.WrapError(err, derrors.CategoryInternal, "failed to encode health response").Build()
		h.errorAdapter.WriteErrorResponse(w, r, internalErr)
	}
}
