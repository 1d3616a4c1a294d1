// Package mockapi is a development implementation of the content API: the
// batch action endpoint, content snapshots and a health check, backed by
// in-memory state seeded from YAML.
package mockapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"github.com/marcus/feedsync/internal/syncclient"
)

// Config configures the mock server.
type Config struct {
	ListenAddr string
	Latency    time.Duration // added to every batch request
}

// Server serves the mock API.
type Server struct {
	config  Config
	http    *http.Server
	content *contentStore
	tokens  map[string]string

	mu       sync.Mutex
	failNext int
	batches  int
}

// NewServer creates a server from cfg and an optional seed.
func NewServer(cfg Config, seed *Seed) *Server {
	s := &Server{config: cfg, content: newContentStore(seed)}
	if seed != nil {
		s.tokens = seed.Tokens
	}
	s.http = &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s
}

// Handler builds the router with all routes and middleware.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/v1/actions/batch", s.requireAuth(s.handleBatch)).Methods(http.MethodPost)
	r.HandleFunc("/v1/content/{id}", s.requireAuth(s.handleContent)).Methods(http.MethodGet)
	r.HandleFunc("/v1/content/{id}", s.handleCreateContent).Methods(http.MethodPut)
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "no such route")
	})

	return chain(r, recoveryMiddleware, requestIDMiddleware, loggingMiddleware, maxBytesMiddleware(1<<20))
}

// Start begins listening (non-blocking).
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.config.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	go func() {
		if err := s.http.Serve(ln); err != nil && err != http.ErrServerClosed {
			slog.Error("http server", "err", err)
		}
	}()
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// FailNext makes the next n batch requests fail with 503.
func (s *Server) FailNext(n int) {
	s.mu.Lock()
	s.failNext = n
	s.mu.Unlock()
}

// Batches returns how many batch requests have been received.
func (s *Server) Batches() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.batches
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, syncclient.HealthResponse{Status: "ok"})
}

func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.batches++
	fail := s.failNext > 0
	if fail {
		s.failNext--
	}
	s.mu.Unlock()

	if s.config.Latency > 0 {
		select {
		case <-time.After(s.config.Latency):
		case <-r.Context().Done():
			return
		}
	}
	if fail {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "injected failure")
		return
	}

	var req syncclient.BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON: "+err.Error())
		return
	}
	actor := req.ActorID
	if bound := tokenActor(r.Context()); bound != "" {
		if actor != "" && actor != bound {
			writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, "actorId does not match token")
			return
		}
		actor = bound
	}
	if actor == "" {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "actorId is required")
		return
	}

	resp := syncclient.BatchResponse{Success: true, Processed: make([]syncclient.ActionOutcome, 0, len(req.Actions))}
	for _, a := range req.Actions {
		resp.Processed = append(resp.Processed, s.content.apply(actor, a))
	}
	logFor(r.Context()).Debug("batch applied", "actor", actor, "actions", len(req.Actions))
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleContent(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	actor := r.URL.Query().Get("actor")
	if bound := tokenActor(r.Context()); bound != "" {
		actor = bound
	}
	resp, ok := s.content.get(id, actor)
	if !ok {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "content "+id+" not found")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleCreateContent registers an empty content item so local setups can
// act on ids that were not in the seed.
func (s *Server) handleCreateContent(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	s.content.ensure(id)
	resp, _ := s.content.get(id, "")
	writeJSON(w, http.StatusCreated, resp)
}
