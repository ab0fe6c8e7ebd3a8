package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/IshaanNene/feedstalk/internal/config"
	"github.com/IshaanNene/feedstalk/internal/sites"
	"github.com/IshaanNene/feedstalk/internal/storage"
	"github.com/IshaanNene/feedstalk/internal/types"
)

// Server exposes the site registry over HTTP.
type Server struct {
	mux    *http.ServeMux
	addr   string
	logger *slog.Logger

	sites *sites.Sites
	store storage.Store // may be nil

	srv *http.Server
}

// NewServer creates a new API server. store may be nil, in which case
// custom sites and ?save=1 are unavailable.
func NewServer(cfg *config.Config, registry *sites.Sites, store storage.Store, logger *slog.Logger) *Server {
	s := &Server{
		mux:    http.NewServeMux(),
		addr:   net.JoinHostPort(cfg.API.Host, strconv.Itoa(cfg.API.Port)),
		logger: logger.With("component", "api_server"),
		sites:  registry,
		store:  store,
	}

	s.registerRoutes(cfg.Metrics)
	return s
}

// Handler returns the routed handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// ListenAndServe blocks until ctx is cancelled or the listener fails.
func (s *Server) ListenAndServe(ctx context.Context) error {
	s.srv = &http.Server{
		Addr:              s.addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("API server starting", "addr", s.addr)
		errCh <- s.srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.logger.Info("API server shutting down")
		return s.srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) registerRoutes(metrics config.MetricsConfig) {
	s.mux.HandleFunc("GET /api/health", s.handleHealth)

	s.mux.HandleFunc("GET /api/sites", s.handleListSites)
	s.mux.HandleFunc("GET /api/find", s.handleFind)
	s.mux.HandleFunc("GET /api/sites/{name}/{id}", s.handleUser)
	s.mux.HandleFunc("POST /api/preview", s.handlePreview)

	if metrics.Enabled {
		s.mux.Handle("GET "+metrics.Path, s.sites.Metrics())
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": config.Version,
	})
}

func (s *Server) handleListSites(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string][]string{"sites": s.sites.Names()})
}

func (s *Server) handleFind(w http.ResponseWriter, r *http.Request) {
	input := r.URL.Query().Get("input")
	if input == "" {
		s.jsonResponse(w, http.StatusBadRequest, map[string]string{"error": "missing input parameter"})
		return
	}

	name, id, ok := s.sites.Find(input)
	if !ok {
		s.jsonResponse(w, http.StatusNotFound, map[string]string{"error": "no site owns this input"})
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]string{"site": name, "id": id})
}

func (s *Server) handleUser(w http.ResponseWriter, r *http.Request) {
	name, id := r.PathValue("name"), r.PathValue("id")

	user, err := s.sites.User(r.Context(), s.store, name, id)
	if err != nil {
		s.errorResponse(w, err)
		return
	}

	if r.URL.Query().Get("save") == "1" && s.store != nil {
		if err := s.store.SaveUser(r.Context(), name, user); err != nil {
			s.logger.Warn("aggregate not cached", "site", name, "id", id, "error", err)
		}
	}
	s.jsonResponse(w, http.StatusOK, user)
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	var def types.SiteDefinition
	if err := json.NewDecoder(r.Body).Decode(&def); err != nil {
		s.jsonResponse(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	user, err := s.sites.Preview(r.Context(), &def)
	if err != nil {
		s.errorResponse(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, user)
}

// errorResponse maps the error taxonomy onto status codes. Upstream
// failures other than a missing aggregate are reported as 502.
func (s *Server) errorResponse(w http.ResponseWriter, err error) {
	var exErr *types.ExtractionError
	status := http.StatusBadGateway
	switch {
	case errors.Is(err, types.ErrNotFound):
		status = http.StatusNotFound
	case errors.As(err, &exErr), errors.Is(err, types.ErrUnknownSite):
		status = http.StatusUnprocessableEntity
	}
	s.jsonResponse(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Debug("write response", "error", err)
	}
}
