package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/lazyq"
	"github.com/kailas-cloud/lazyq/internal/config"
	"github.com/kailas-cloud/lazyq/internal/metrics"
)

type errorCode string

const (
	codeUnauthorized     errorCode = "unauthorized"
	codeValidationFailed errorCode = "validation_failed"
	codeIndexNotFound    errorCode = "index_not_found"
	codeSearchFailed     errorCode = "search_failed"
	codeExcerptFailed    errorCode = "excerpt_failed"
	codeInternalError    errorCode = "internal_error"
)

type errorResponse struct {
	Code    errorCode `json:"code"`
	Message string    `json:"message"`
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Pinger reports whether the search store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server serves search over the configured indexes.
type Server struct {
	indexes       map[string]*lazyq.Query[Doc]
	health        Pinger
	defaultLimit  int
	maxLimit      int
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	indexes map[string]*lazyq.Query[Doc],
	health Pinger,
	search config.SearchConfig,
	logger *zap.Logger,
) *Server {
	s := &Server{
		indexes:      indexes,
		health:       health,
		defaultLimit: search.DefaultLimit,
		maxLimit:     search.MaxResults,
		logger:       logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(lazyq.ErrInvalidArgument, http.StatusBadRequest, codeValidationFailed),
		sentinelHandler(lazyq.ErrOutOfRange, http.StatusBadRequest, codeValidationFailed),
		sentinelHandler(lazyq.ErrExcerptFieldsNotSubset, http.StatusBadRequest, codeValidationFailed),
		sentinelHandler(lazyq.ErrExcerpt, http.StatusBadGateway, codeExcerptFailed),
		sentinelHandler(lazyq.ErrSearch, http.StatusBadGateway, codeSearchFailed),
	}
	return s
}

// Routes mounts the API on r.
func (s *Server) Routes(r chi.Router) {
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
	r.Get("/search/{index}", s.Search)
}

type searchItem struct {
	ID         uint64            `json:"id"`
	Weight     float64           `json:"weight"`
	Fields     map[string]any    `json:"fields"`
	Highlights map[string]string `json:"highlights,omitempty"`
}

type searchResponse struct {
	Items  []searchItem `json:"items"`
	Offset int          `json:"offset"`
	Limit  int          `json:"limit"`
	Total  int          `json:"total"`
}

// Search handles GET /search/{index}.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "index")
	base, ok := s.indexes[name]
	if !ok {
		writeError(w, http.StatusNotFound, codeIndexNotFound, "unknown index "+name)
		return
	}

	params, err := parseSearchParams(r.URL.Query(), s.defaultLimit, s.maxLimit)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	q, err := params.apply(base)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	ctx := r.Context()
	results, err := q.Results(ctx)
	if err != nil {
		metrics.SearchRequestsTotal.WithLabelValues(name, "error").Inc()
		s.handleDomainError(w, err)
		return
	}
	metrics.SearchRequestsTotal.WithLabelValues(name, "ok").Inc()
	metrics.SearchResults.WithLabelValues(name).Observe(float64(len(results)))

	items := make([]searchItem, len(results))
	for i, res := range results {
		items[i] = searchItem{ID: res.ID(), Weight: res.Weight(), Fields: res.Fields}
		if len(params.highlight) == 0 {
			continue
		}
		snippets, err := q.Excerpt(ctx, res)
		if err != nil {
			metrics.ExcerptsTotal.WithLabelValues(name, "error").Inc()
			s.handleDomainError(w, err)
			return
		}
		metrics.ExcerptsTotal.WithLabelValues(name, "ok").Inc()
		items[i].Highlights = make(map[string]string, len(snippets))
		for j, f := range params.highlight {
			if j < len(snippets) {
				items[i].Highlights[f] = snippets[j]
			}
		}
	}

	writeJSON(w, http.StatusOK, searchResponse{
		Items:  items,
		Offset: params.offset,
		Limit:  params.limit,
		Total:  len(items),
	})
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if err := s.health.Ping(r.Context()); err != nil {
		s.logger.Warn("health check failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, healthResponse{
			Status: "unhealthy",
			Checks: map[string]string{"database": "unavailable"},
		})
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{
		Status: "healthy",
		Checks: map[string]string{"database": "ok"},
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code errorCode, message string) {
	writeJSON(w, status, errorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a client-facing message without exposing
// backend internals. Validation errors describe the caller's own input and
// are passed through.
func safeDomainMessage(err error) string {
	if errors.Is(err, lazyq.ErrInvalidArgument) || errors.Is(err, lazyq.ErrOutOfRange) ||
		errors.Is(err, lazyq.ErrExcerptFieldsNotSubset) {
		return err.Error()
	}
	for _, s := range []error{lazyq.ErrExcerpt, lazyq.ErrSearch} {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code errorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}
