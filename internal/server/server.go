// Package server exposes the Opora HTTP API: directory CRUD and filtering,
// the text assistant, semantic search, and the operational endpoints
// (/metrics, /healthz, /readyz).
//
// All API responses are JSON. Errors follow a single envelope:
//
//	{"error": "description"}
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/opora-ua/opora/internal/directory"
	"github.com/opora-ua/opora/internal/health"
	"github.com/opora-ua/opora/internal/observe"
	"github.com/opora-ua/opora/pkg/provider/chat"
	"github.com/opora-ua/opora/pkg/provider/embeddings"
)

// defaultSearchLimit is the semantic search result count when the request
// does not specify one.
const defaultSearchLimit = 5

// maxSearchLimit caps the semantic search result count.
const maxSearchLimit = 25

// Responder answers a chat conversation. Implemented by assist.Assistant.
type Responder interface {
	Respond(ctx context.Context, history []chat.Message) (string, error)
}

// Config assembles the collaborators of a [Server].
type Config struct {
	// Store is the organization directory. Required.
	Store directory.Store

	// Assistant answers /api/chat requests. Optional; when nil the endpoint
	// returns 503.
	Assistant Responder

	// Embedder and Semantic together serve /api/search. Optional; when either
	// is nil the endpoint returns 503.
	Embedder embeddings.Provider
	Semantic *directory.SemanticIndex

	// Checkers are evaluated by /readyz.
	Checkers []health.Checker

	// Logger defaults to slog.Default.
	Logger *slog.Logger

	// Metrics defaults to observe.DefaultMetrics.
	Metrics *observe.Metrics
}

// Server is the Opora HTTP API. Create with [New], mount via [Server.Handler].
type Server struct {
	cfg     Config
	log     *slog.Logger
	metrics *observe.Metrics
}

// New validates cfg and creates a Server.
func New(cfg Config) (*Server, error) {
	if cfg.Store == nil {
		return nil, errors.New("server: Store is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}
	return &Server{cfg: cfg, log: cfg.Logger, metrics: cfg.Metrics}, nil
}

// Handler returns the fully routed HTTP handler. API routes are wrapped in
// the observability middleware; /metrics and the health probes are not.
func (s *Server) Handler() http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("GET /api/organizations", s.handleListOrganizations)
	api.HandleFunc("POST /api/organizations", s.handleAddOrganization)
	api.HandleFunc("GET /api/organizations/{id}", s.handleGetOrganization)
	api.HandleFunc("PUT /api/organizations/{id}", s.handleUpdateOrganization)
	api.HandleFunc("DELETE /api/organizations/{id}", s.handleRemoveOrganization)
	api.HandleFunc("GET /api/regions", s.handleRegions)
	api.HandleFunc("POST /api/chat", s.handleChat)
	api.HandleFunc("POST /api/search", s.handleSearch)

	root := http.NewServeMux()
	root.Handle("/api/", observe.Middleware(s.metrics)(api))
	root.Handle("GET /metrics", promhttp.Handler())
	health.New(s.cfg.Checkers...).Register(root)
	return root
}

// ── directory ──

func (s *Server) handleListOrganizations(w http.ResponseWriter, r *http.Request) {
	orgs, err := s.cfg.Store.List(r.Context())
	if err != nil {
		s.internalError(w, "list organizations", err)
		return
	}

	q := r.URL.Query()
	filtered := directory.Filter(orgs, directory.Query{
		Region:     q.Get("region"),
		Status:     directory.Status(q.Get("status")),
		Category:   directory.Category(q.Get("category")),
		Search:     q.Get("q"),
		BudgetOnly: q.Get("budget") == "true",
	})
	if filtered == nil {
		filtered = []directory.Organization{}
	}
	writeJSON(w, http.StatusOK, filtered)
}

func (s *Server) handleGetOrganization(w http.ResponseWriter, r *http.Request) {
	org, err := s.cfg.Store.Get(r.Context(), r.PathValue("id"))
	if errors.Is(err, directory.ErrNotFound) {
		writeError(w, http.StatusNotFound, "organization not found")
		return
	}
	if err != nil {
		s.internalError(w, "get organization", err)
		return
	}
	writeJSON(w, http.StatusOK, org)
}

func (s *Server) handleAddOrganization(w http.ResponseWriter, r *http.Request) {
	var org directory.Organization
	if err := json.NewDecoder(r.Body).Decode(&org); err != nil {
		writeError(w, http.StatusBadRequest, "invalid organization JSON")
		return
	}

	added, err := s.cfg.Store.Add(r.Context(), org)
	if errors.Is(err, directory.ErrDuplicateID) {
		writeError(w, http.StatusConflict, "organization already exists")
		return
	}
	if errors.Is(err, directory.ErrInvalid) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		s.internalError(w, "add organization", err)
		return
	}
	writeJSON(w, http.StatusCreated, added)
}

func (s *Server) handleUpdateOrganization(w http.ResponseWriter, r *http.Request) {
	var org directory.Organization
	if err := json.NewDecoder(r.Body).Decode(&org); err != nil {
		writeError(w, http.StatusBadRequest, "invalid organization JSON")
		return
	}
	org.ID = r.PathValue("id")

	err := s.cfg.Store.Update(r.Context(), org)
	if errors.Is(err, directory.ErrNotFound) {
		writeError(w, http.StatusNotFound, "organization not found")
		return
	}
	if errors.Is(err, directory.ErrInvalid) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		s.internalError(w, "update organization", err)
		return
	}
	writeJSON(w, http.StatusOK, org)
}

func (s *Server) handleRemoveOrganization(w http.ResponseWriter, r *http.Request) {
	err := s.cfg.Store.Remove(r.Context(), r.PathValue("id"))
	if errors.Is(err, directory.ErrNotFound) {
		writeError(w, http.StatusNotFound, "organization not found")
		return
	}
	if err != nil {
		s.internalError(w, "remove organization", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRegions(w http.ResponseWriter, r *http.Request) {
	orgs, err := s.cfg.Store.List(r.Context())
	if err != nil {
		s.internalError(w, "list regions", err)
		return
	}
	regions := directory.Regions(orgs)
	if regions == nil {
		regions = []string{}
	}
	writeJSON(w, http.StatusOK, regions)
}

// ── chat ──

type chatRequest struct {
	Messages []chat.Message `json:"messages"`
}

type chatResponse struct {
	Reply string `json:"reply"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Assistant == nil {
		writeError(w, http.StatusServiceUnavailable, "chat assistant is not configured")
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid chat JSON")
		return
	}
	if len(req.Messages) == 0 {
		writeError(w, http.StatusBadRequest, "messages must not be empty")
		return
	}

	reply, err := s.cfg.Assistant.Respond(r.Context(), req.Messages)
	if err != nil {
		s.internalError(w, "chat", err)
		return
	}
	writeJSON(w, http.StatusOK, chatResponse{Reply: reply})
}

// ── semantic search ──

type searchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

type searchHit struct {
	Organization directory.Organization `json:"organization"`
	Distance     float64                `json:"distance"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Embedder == nil || s.cfg.Semantic == nil {
		writeError(w, http.StatusServiceUnavailable, "semantic search is not configured")
		return
	}

	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid search JSON")
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "query must not be empty")
		return
	}
	limit := req.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}

	vec, err := s.cfg.Embedder.Embed(r.Context(), req.Query)
	if err != nil {
		s.metrics.RecordProviderError(r.Context(), "embeddings", "embed")
		s.internalError(w, "embed query", err)
		return
	}

	results, err := s.cfg.Semantic.Search(r.Context(), vec, limit)
	if err != nil {
		s.internalError(w, "semantic search", err)
		return
	}

	hits := make([]searchHit, 0, len(results))
	for _, res := range results {
		org, err := s.cfg.Store.Get(r.Context(), res.OrganizationID)
		if errors.Is(err, directory.ErrNotFound) {
			// Index lag after a removal; skip stale hits.
			continue
		}
		if err != nil {
			s.internalError(w, "load search hit", err)
			return
		}
		hits = append(hits, searchHit{Organization: org, Distance: res.Distance})
	}
	writeJSON(w, http.StatusOK, hits)
}

// ── helpers ──

func (s *Server) internalError(w http.ResponseWriter, op string, err error) {
	s.log.Error("request failed", "op", op, "error", err)
	writeError(w, http.StatusInternalServerError, "internal error")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error":"encoding failed"}`, http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
