// Package httpapi exposes the query service as a JSON API.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"staytrack/internal/entry"
	"staytrack/internal/export"
	"staytrack/internal/query"
	"staytrack/internal/risk"
	"staytrack/internal/service"
)

// Handler serves the API routes.
type Handler struct {
	svc *service.Service
}

// NewRouter builds the chi router for svc.
func NewRouter(svc *service.Service) http.Handler {
	h := &Handler{svc: svc}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Get("/healthz", h.health)
	r.Handle("/metrics", svc.Metrics().Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/persons", h.listPersons)
		r.Get("/persons/{passport}", h.getPerson)
		r.Get("/search", h.search)
		r.Post("/batch", h.batch)
		r.Get("/statistics", h.statistics)
		r.Get("/statistics/nationalities", h.nationalities)
		r.Get("/narrative", h.narrative)
		r.Get("/matrix", h.matrix)
		r.Get("/risk", h.risk)
		r.Get("/last-update", h.lastUpdate)
		r.Get("/export.xlsx", h.exportXLSX)
	})
	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("took", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	body := map[string]string{"error": code}
	if status < http.StatusInternalServerError {
		body["error_description"] = err.Error()
	} else {
		log.Error().Err(err).Msg("Request failed")
	}
	writeJSON(w, status, body)
}

// engine fetches today's snapshot engine, writing a 500 on failure.
func (h *Handler) engine(w http.ResponseWriter, r *http.Request) (*query.Engine, bool) {
	eng, err := h.svc.Engine(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", err)
		return nil, false
	}
	return eng, true
}

// filter parses the request filter, writing a 400 on failure.
func (h *Handler) filter(w http.ResponseWriter, r *http.Request) (query.Filter, bool) {
	f, err := ParseFilter(r.URL.Query())
	if err == nil {
		err = f.Validate()
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return f, false
	}
	return f, true
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) listPersons(w http.ResponseWriter, r *http.Request) {
	f, ok := h.filter(w, r)
	if !ok {
		return
	}
	eng, ok := h.engine(w, r)
	if !ok {
		return
	}
	h.svc.Metrics().IncQuery("list")
	page, err := eng.List(f)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *Handler) getPerson(w http.ResponseWriter, r *http.Request) {
	eng, ok := h.engine(w, r)
	if !ok {
		return
	}
	h.svc.Metrics().IncQuery("get")
	passport := chi.URLParam(r, "passport")
	p, found := eng.Get(passport)
	if !found {
		writeError(w, http.StatusNotFound, "not_found", errors.New("no person with passport "+entry.NormalizePassport(passport)))
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) search(w http.ResponseWriter, r *http.Request) {
	eng, ok := h.engine(w, r)
	if !ok {
		return
	}
	h.svc.Metrics().IncQuery("search")
	results, err := eng.Search(r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results, "count": len(results)})
}

// BatchRequest is the body of POST /api/batch.
type BatchRequest struct {
	Passports string `json:"passports"`
	Limit     int    `json:"limit,omitempty"`
	Offset    int    `json:"offset,omitempty"`
}

func (h *Handler) batch(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	eng, ok := h.engine(w, r)
	if !ok {
		return
	}
	h.svc.Metrics().IncQuery("batch")
	writeJSON(w, http.StatusOK, eng.Batch(req.Passports, req.Limit, req.Offset))
}

func (h *Handler) statistics(w http.ResponseWriter, r *http.Request) {
	f, ok := h.filter(w, r)
	if !ok {
		return
	}
	eng, ok := h.engine(w, r)
	if !ok {
		return
	}
	h.svc.Metrics().IncQuery("statistics")
	s, err := eng.Statistics(f)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *Handler) nationalities(w http.ResponseWriter, r *http.Request) {
	f, ok := h.filter(w, r)
	if !ok {
		return
	}
	eng, ok := h.engine(w, r)
	if !ok {
		return
	}
	h.svc.Metrics().IncQuery("nationalities")
	out, err := eng.ByNationality(f, f.Limit)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) narrative(w http.ResponseWriter, r *http.Request) {
	f, ok := h.filter(w, r)
	if !ok {
		return
	}
	eng, ok := h.engine(w, r)
	if !ok {
		return
	}
	h.svc.Metrics().IncQuery("narrative")
	text, err := eng.Narrative(f)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	purpose, err := eng.PurposeNarrative(f)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"summary": text, "purpose": purpose})
}

func (h *Handler) matrix(w http.ResponseWriter, r *http.Request) {
	f, ok := h.filter(w, r)
	if !ok {
		return
	}
	eng, ok := h.engine(w, r)
	if !ok {
		return
	}
	h.svc.Metrics().IncQuery("matrix")
	m, err := eng.Matrix(f)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (h *Handler) risk(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var level risk.Level
	if v := q.Get("level"); v != "" {
		var err error
		if level, err = risk.ParseLevel(v); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", err)
			return
		}
	}
	limit, err := intParam(q, "limit")
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	h.svc.Metrics().IncQuery("risk")
	out, err := h.svc.Risk(r.Context(), level, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) lastUpdate(w http.ResponseWriter, r *http.Request) {
	eng, ok := h.engine(w, r)
	if !ok {
		return
	}
	body := map[string]any{"as_of": entry.FormatISO(eng.AsOf()), "persons": eng.Len()}
	if t := eng.LastUpdate(); !t.IsZero() {
		body["last_update"] = t
	}
	writeJSON(w, http.StatusOK, body)
}

func (h *Handler) exportXLSX(w http.ResponseWriter, r *http.Request) {
	f, ok := h.filter(w, r)
	if !ok {
		return
	}
	h.svc.Metrics().IncQuery("export")
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.FileName(time.Now())+`"`)
	if _, err := h.svc.ExportXLSX(r.Context(), w, f); err != nil {
		log.Error().Err(err).Msg("Export failed")
		http.Error(w, "export failed", http.StatusInternalServerError)
	}
}
