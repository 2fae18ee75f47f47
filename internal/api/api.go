// Package api exposes the pipeline over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/raphaelgruber/healthrag-go/internal/db"
	"github.com/raphaelgruber/healthrag-go/internal/intake"
	"github.com/raphaelgruber/healthrag-go/internal/pipeline"
	"github.com/raphaelgruber/healthrag-go/internal/service"
	"github.com/raphaelgruber/healthrag-go/internal/store"
)

// maxBodyBytes caps request bodies; intake accepts at most 5000 runes.
const maxBodyBytes = 1 << 20

// Handler serves the HTTP API.
type Handler struct {
	app     *service.App
	metrics http.Handler
	logger  *slog.Logger
}

// NewRouter builds the router. metricsHandler serves GET /metrics; when nil
// the collector snapshot is returned as JSON.
func NewRouter(app *service.App, metricsHandler http.Handler) *mux.Router {
	h := &Handler{app: app, metrics: metricsHandler, logger: app.Logger.With("component", "api")}

	router := mux.NewRouter()
	router.HandleFunc("/health", h.health).Methods(http.MethodGet)
	router.HandleFunc("/metrics", h.metricsSnapshot).Methods(http.MethodGet)
	router.HandleFunc("/ingest", h.ingest).Methods(http.MethodPost)
	router.HandleFunc("/reports", h.reports).Methods(http.MethodPost)
	router.HandleFunc("/guard", h.guard).Methods(http.MethodPost)
	router.HandleFunc("/knowledge/search", h.searchKnowledge).Methods(http.MethodPost)
	router.HandleFunc("/records", h.listRecords).Methods(http.MethodGet)
	router.HandleFunc("/records/{id}", h.getRecord).Methods(http.MethodGet)
	router.Use(h.logRequests)
	return router
}

type errorResponse struct {
	Error string `json:"error"`
}

type guardRequest struct {
	Text string `json:"text"`
}

type searchRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k"`
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	cfg := h.app.Config
	writeJSON(w, http.StatusOK, map[string]any{
		"status":           "ok",
		"app":              cfg.AppName,
		"environment":      cfg.AppEnv,
		"pipeline_version": cfg.PipelineVersion,
		"rag_enabled":      h.app.Pipeline.RetrievalEnabled(),
		"indexed_chunks":   h.app.Knowledge.Count(),
	})
}

func (h *Handler) metricsSnapshot(w http.ResponseWriter, r *http.Request) {
	if h.metrics != nil {
		h.metrics.ServeHTTP(w, r)
		return
	}
	writeJSON(w, http.StatusOK, h.app.Metrics.Snapshot())
}

func (h *Handler) ingest(w http.ResponseWriter, r *http.Request) {
	var req service.ReportRequest
	if !h.decode(w, r, &req) {
		return
	}
	rec, err := h.app.Reports.Intake(req)
	if errors.Is(err, intake.ErrInvalid) {
		h.logger.Warn("intake rejected", "error", err)
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	if err != nil {
		h.logger.Error("intake failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *Handler) reports(w http.ResponseWriter, r *http.Request) {
	var req service.ReportRequest
	if !h.decode(w, r, &req) {
		return
	}
	trace, err := h.app.Reports.Generate(r.Context(), req)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, trace)
	case pipeline.IsClientError(err):
		writeJSON(w, http.StatusBadRequest, trace)
	default:
		h.logger.Warn("report run failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, trace)
	}
}

func (h *Handler) guard(w http.ResponseWriter, r *http.Request) {
	var req guardRequest
	if !h.decode(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, h.app.Reports.Guard(req.Text))
}

func (h *Handler) searchKnowledge(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if !h.decode(w, r, &req) {
		return
	}
	hits, err := h.app.Knowledge.Search(r.Context(), req.Query, req.TopK)
	if err != nil {
		h.logger.Error("knowledge search failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"query": req.Query, "hits": hits})
}

func (h *Handler) listRecords(w http.ResponseWriter, r *http.Request) {
	if h.app.Records == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "persistence is disabled"})
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "limit must be a non-negative integer"})
			return
		}
		limit = n
	}
	records, err := h.app.Records.ListRecords(r.Context(), limit)
	if err != nil {
		h.logger.Error("list records failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": records, "count": len(records)})
}

func (h *Handler) getRecord(w http.ResponseWriter, r *http.Request) {
	if h.app.Records == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "persistence is disabled"})
		return
	}
	id := mux.Vars(r)["id"]
	rec, err := h.app.Records.GetRecord(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) || errors.Is(err, db.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "record not found"})
		return
	}
	if err != nil {
		h.logger.Error("get record failed", "id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return false
	}
	return true
}

func (h *Handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		h.logger.Debug("request", "method", r.Method, "path", r.URL.Path, "status", rec.status)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
