package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/voyagen/confsync/internal/clock"
	"github.com/voyagen/confsync/internal/config"
	"github.com/voyagen/confsync/internal/logging"
	"github.com/voyagen/confsync/internal/service"
	"github.com/voyagen/confsync/internal/store"
)

// Deps are the collaborators of the HTTP API.
type Deps struct {
	Config *config.Config
	Store  store.Store
	// Queue receives podcast request fetch jobs. nil disables fetching.
	Queue service.JobQueue
	// Clock is the admin-adjustable application clock behind /api/time.
	Clock *clock.Adjustable
}

// Server holds dependencies for the HTTP API.
type Server struct {
	cfg      *config.Config
	store    store.Store
	clock    *clock.Adjustable
	importer *service.Importer
	changes  *service.Aggregator
	requests *service.Requests
	cbor     cbor.EncMode
	router   chi.Router
}

// New creates a Server and registers routes.
func New(d Deps) (*Server, error) {
	if d.Clock == nil {
		d.Clock = clock.NewAdjustable(clock.System{})
	}
	encMode, err := cbor.EncOptions{Time: cbor.TimeRFC3339Nano}.EncMode()
	if err != nil {
		return nil, fmt.Errorf("cbor encoder: %w", err)
	}

	srv := &Server{
		cfg:      d.Config,
		store:    d.Store,
		clock:    d.Clock,
		importer: service.NewImporter(d.Store, d.Clock),
		changes:  service.NewAggregator(d.Store),
		requests: service.NewRequests(d.Store, d.Queue),
		cbor:     encMode,
	}
	srv.routes()
	return srv, nil
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(withLogging)
	r.Use(middleware.Recoverer)
	r.Use(withCORS)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Route("/podcast", func(r chi.Router) {
			r.Post("/import", s.handleImport)
			r.Get("/all", s.handleAllPodcasts)
			r.Post("/requests", s.handleSubmitRequest)
			r.Get("/requests/{id}", s.handleGetRequest)
		})

		r.Route("/sync", func(r chi.Router) {
			r.Get("/podcasts", s.handleSyncPodcasts)
			r.Get("/sessions", syncHandler(s, s.changes.SessionsChangedSince))
			r.Get("/speakers", syncHandler(s, s.changes.SpeakersChangedSince))
			r.Get("/rooms", syncHandler(s, s.changes.RoomsChangedSince))
			r.Get("/categories", syncHandler(s, s.changes.CategoriesChangedSince))
		})

		r.Get("/time", s.handleGetTime)
		r.With(requireAdmin(s.adminSecret())).Post("/time/{value}", s.handleSetTime)

		r.Get("/docs", handleSwaggerUI)
		r.Get("/docs/openapi.yaml", handleOpenAPISpec)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, r, http.StatusNotFound, "no route for "+r.URL.Path)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, r, http.StatusMethodNotAllowed, r.Method+" is not allowed on "+r.URL.Path)
	})
	s.router = r
}

func (s *Server) adminSecret() string {
	if s.cfg == nil {
		return ""
	}
	return s.cfg.AdminSecret
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe starts the HTTP server on the configured port.
// It blocks until the server is shut down or ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	addr := ":" + s.cfg.ServerPort
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      s,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  120 * time.Second,
		BaseContext:  func(_ net.Listener) context.Context { return ctx },
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logging.Error().Err(err).Msg("server shutdown")
		}
	}()

	logging.Info().Str("addr", addr).Msg("listening")
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("ListenAndServe: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		logging.FromContext(r.Context()).Warn().Err(err).Msg("health check failed")
		writeStatus(w, r, http.StatusServiceUnavailable, "database unreachable")
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}
