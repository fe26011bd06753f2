package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gyaneshwarpardhi/circuitflow/internal/config"
	"github.com/gyaneshwarpardhi/circuitflow/internal/engine"
	"github.com/gyaneshwarpardhi/circuitflow/internal/metrics"
)

// maxBodyBytes caps request bodies; a full graph is the largest payload.
const maxBodyBytes = 8 << 20

// Handler holds all HTTP handler dependencies.
type Handler struct {
	eng    *engine.Engine
	loader *config.Loader
	mux    *http.ServeMux
}

// New creates an HTTP handler and registers all routes. loader may be nil,
// in which case the reload route is not served.
func New(eng *engine.Engine, loader *config.Loader) http.Handler {
	h := &Handler{eng: eng, loader: loader, mux: http.NewServeMux()}

	h.mux.HandleFunc("POST /v1/sessions", h.createSession)
	h.mux.HandleFunc("GET /v1/sessions", h.listSessions)
	h.mux.HandleFunc("GET /v1/sessions/{id}", h.getSession)
	h.mux.HandleFunc("DELETE /v1/sessions/{id}", h.closeSession)
	h.mux.HandleFunc("GET /v1/sessions/{id}/graph", h.getGraph)
	h.mux.HandleFunc("PUT /v1/sessions/{id}/graph", h.putGraph)
	h.mux.HandleFunc("GET /v1/sessions/{id}/events", h.listEvents)

	h.mux.HandleFunc("POST /v1/sessions/{id}/nodes", h.addNode)
	h.mux.HandleFunc("GET /v1/sessions/{id}/nodes/{index}", h.getNode)
	h.mux.HandleFunc("DELETE /v1/sessions/{id}/nodes/{index}", h.removeNode)
	h.mux.HandleFunc("PUT /v1/sessions/{id}/nodes/{index}/value", h.setValue)
	h.mux.HandleFunc("PUT /v1/sessions/{id}/nodes/{index}/args", h.setArgs)
	h.mux.HandleFunc("POST /v1/sessions/{id}/connections", h.connect)
	h.mux.HandleFunc("DELETE /v1/sessions/{id}/connections", h.disconnect)

	h.mux.HandleFunc("POST /v1/sessions/{id}/undo", h.undo)
	h.mux.HandleFunc("POST /v1/sessions/{id}/redo", h.redo)
	h.mux.HandleFunc("POST /v1/sessions/{id}/settle", h.settle)
	h.mux.HandleFunc("POST /v1/sessions/{id}/save", h.save)
	h.mux.HandleFunc("POST /v1/sessions/{id}/load", h.load)

	h.mux.HandleFunc("GET /v1/graphs", h.listGraphs)
	h.mux.HandleFunc("GET /v1/types", h.listTypes)
	if loader != nil {
		h.mux.HandleFunc("POST /v1/config/reload", h.reloadConfig)
	}

	h.mux.HandleFunc("GET /healthz", h.healthz)
	h.mux.HandleFunc("GET /readyz", h.readyz)
	h.mux.Handle("GET /metrics", promhttp.Handler())

	return loggingMiddleware(h.mux)
}

// GET /v1/graphs: stored graphs.
func (h *Handler) listGraphs(w http.ResponseWriter, r *http.Request) {
	infos, err := h.eng.Graphs(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"graphs": infos})
}

// GET /v1/types: node kinds a session can create.
func (h *Handler) listTypes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"types": h.eng.Registry().Types()})
}

// POST /v1/config/reload: re-read the config file and apply live settings.
func (h *Handler) reloadConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.loader.Reload()
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"reloaded":         true,
		"version":          cfg.Version,
		"tick_interval_ms": h.eng.TickInterval().Milliseconds(),
		"history_capacity": cfg.Engine.HistoryCapacity,
	})
}

// GET /healthz: always 200 (liveness probe).
func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GET /readyz: 503 if the async script queue is >80% full.
func (h *Handler) readyz(w http.ResponseWriter, r *http.Request) {
	util := h.eng.QueueUtilization()
	metrics.ScriptQueueUtilization.Set(util)
	if util > 0.8 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status":            "overloaded",
			"queue_utilization": util,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":            "ready",
		"queue_utilization": util,
	})
}
