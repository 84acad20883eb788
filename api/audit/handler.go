// Package audit exposes the audit trail and the human decision workflow
// over HTTP.
package audit

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"github.com/kilianp07/fleetdispatch/core/assistant"
	coreaudit "github.com/kilianp07/fleetdispatch/core/audit"
	"github.com/kilianp07/fleetdispatch/core/backend"
	"github.com/kilianp07/fleetdispatch/core/logger"
	"github.com/kilianp07/fleetdispatch/core/model"
)

const maxBodyBytes = 4 << 20

// Searcher queries audit entries. *coreaudit.Log implements it.
type Searcher interface {
	Search(ctx context.Context, q coreaudit.Query) ([]model.AuditEntry, error)
}

// Assistant generates suggestions and records decisions.
// *assistant.Engine implements it.
type Assistant interface {
	GenerateSuggestions(ctx context.Context, snap model.Snapshot) (model.AutomationResult, error)
	LogHumanDecision(ctx context.Context, h assistant.HumanDecision) (model.AuditEntry, error)
}

// BackendLister describes the registered optimization backends.
// *backend.Manager implements it.
type BackendLister interface {
	Describe() []backend.BackendInfo
}

// Options configures the router.
type Options struct {
	// Token, when set, is required as "Bearer <token>" on /api routes.
	Token     string
	RateLimit float64
	RateBurst int
	Logger    logger.Logger
}

type handler struct {
	audit     Searcher
	assistant Assistant
	backends  BackendLister
	log       logger.Logger
}

// NewRouter returns the HTTP API:
//
//	GET  /healthz
//	GET  /api/audit
//	GET  /api/backends
//	POST /api/suggestions
//	POST /api/suggestions/{id}/decision
func NewRouter(a Searcher, asst Assistant, b BackendLister, opts Options) http.Handler {
	h := &handler{audit: a, assistant: asst, backends: b, log: logger.OrNop(opts.Logger)}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Route("/api", func(r chi.Router) {
		if opts.RateLimit > 0 {
			r.Use(rateLimit(rate.NewLimiter(rate.Limit(opts.RateLimit), max(opts.RateBurst, 1))))
		}
		if opts.Token != "" {
			r.Use(bearer(opts.Token))
		}
		r.Get("/audit", h.listAudit)
		r.Get("/backends", h.listBackends)
		r.Post("/suggestions", h.suggest)
		r.Post("/suggestions/{id}/decision", h.decide)
	})
	return r
}

func bearer(token string) func(http.Handler) http.Handler {
	want := []byte("Bearer " + token)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if subtle.ConstantTimeCompare([]byte(r.Header.Get("Authorization")), want) != 1 {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func rateLimit(l *rate.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.Allow() {
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (h *handler) listAudit(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	entries, err := h.audit.Search(r.Context(), q)
	if err != nil {
		h.log.Errorf("audit query: %v", err)
		writeError(w, http.StatusInternalServerError, "audit query failed")
		return
	}
	if entries == nil {
		entries = []model.AuditEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func parseQuery(r *http.Request) (coreaudit.Query, error) {
	v := r.URL.Query()
	q := coreaudit.Query{
		LoadID:       v.Get("load_id"),
		UserID:       v.Get("user_id"),
		SuggestionID: v.Get("suggestion_id"),
		Action:       model.AuditAction(v.Get("action")),
	}
	if q.Action != "" && !q.Action.Valid() {
		return q, errors.New("unknown action " + string(q.Action))
	}
	for _, p := range []struct {
		key string
		dst *time.Time
	}{{"start", &q.Start}, {"end", &q.End}} {
		if s := v.Get(p.key); s != "" {
			t, err := time.Parse(time.RFC3339, s)
			if err != nil {
				return q, errors.New(p.key + " must be RFC3339")
			}
			*p.dst = t
		}
	}
	if s := v.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return q, errors.New("limit must be a non-negative integer")
		}
		q.Limit = n
	}
	return q, nil
}

func (h *handler) listBackends(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.backends.Describe())
}

func (h *handler) suggest(w http.ResponseWriter, r *http.Request) {
	var snap model.Snapshot
	if err := decode(w, r, &snap); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := h.assistant.GenerateSuggestions(r.Context(), snap)
	switch {
	case errors.Is(err, model.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case err != nil:
		h.log.Errorf("generate suggestions: %v", err)
		writeError(w, http.StatusInternalServerError, "suggestion generation failed")
	default:
		writeJSON(w, http.StatusOK, res)
	}
}

type decisionRequest struct {
	UserID           string             `json:"user_id"`
	Decision         assistant.Decision `json:"decision"`
	Reason           string             `json:"reason"`
	OverrideDriverID string             `json:"override_driver_id"`
}

func (h *handler) decide(w http.ResponseWriter, r *http.Request) {
	var req decisionRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	entry, err := h.assistant.LogHumanDecision(r.Context(), assistant.HumanDecision{
		SuggestionID:     chi.URLParam(r, "id"),
		UserID:           req.UserID,
		Decision:         req.Decision,
		Reason:           req.Reason,
		OverrideDriverID: req.OverrideDriverID,
	})
	switch {
	case errors.Is(err, assistant.ErrInvalidDecision):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, assistant.ErrUnknownSuggestion):
		writeError(w, http.StatusNotFound, err.Error())
	case err != nil:
		h.log.Errorf("log decision: %v", err)
		writeError(w, http.StatusServiceUnavailable, "decision was not recorded")
	default:
		writeJSON(w, http.StatusCreated, entry)
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.New("invalid body: " + err.Error())
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
