// Package web provides the HTTP server for staged imports and the backing
// store it commits to.
package web

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/JonMunkholm/rosterimport/internal/core"
	mw "github.com/JonMunkholm/rosterimport/internal/web/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// DefaultMaxFileSize bounds uploads when Options leaves it unset (25MB).
const DefaultMaxFileSize = 25 << 20

// Options configures the server.
type Options struct {
	MaxFileSize    int64
	MaxSessions    int
	SessionWait    time.Duration
	SessionTTL     time.Duration
	ExecuteTimeout time.Duration
	TrustedProxies []string

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// Server is the HTTP front end.
//
// Each import session owns a core.Pipeline built by newPipeline. History
// and rollback go through a session-less pipeline. When backend is non-nil
// the store contract is also served under /api/store.
type Server struct {
	opts     Options
	sessions *sessionStore
	limiter  *SessionLimiter
	admin    *core.Pipeline
	backend  core.Store
	router   *chi.Mux
	server   *http.Server
}

// NewServer builds the router.
func NewServer(newPipeline func() *core.Pipeline, backend core.Store, opts Options) *Server {
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = DefaultMaxFileSize
	}

	limiter := NewSessionLimiter(opts.MaxSessions, opts.SessionWait)
	s := &Server{
		opts:     opts,
		limiter:  limiter,
		sessions: newSessionStore(newPipeline, limiter, opts.SessionTTL),
		admin:    newPipeline(),
		backend:  backend,
		router:   chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(mw.TrustedRealIP(s.opts.TrustedProxies))
	s.router.Use(mw.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(securityHeaders)
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/record-types", s.handleRecordTypes)

		r.Route("/imports", func(r chi.Router) {
			r.Post("/", s.handleCreateImport)
			r.Route("/{sessionID}", func(r chi.Router) {
				r.Get("/", s.handleGetImport)
				r.Delete("/", s.handleDeleteImport)
				r.Put("/rows/{row}", s.handleSetRow)
				r.Post("/execute", s.handleExecute)
				r.Get("/progress", s.handleProgress)
				r.Post("/cancel", s.handleCancel)
			})
		})

		r.Get("/batches", s.handleHistory)
		r.Post("/batches/{batchID}/rollback", s.handleRollback)

		if s.backend != nil {
			r.Route("/store", func(r chi.Router) {
				r.Use(middleware.Timeout(60 * time.Second))
				r.Post("/batches/commit", s.handleStoreCommit)
				r.Get("/batches", s.handleStoreList)
				r.Post("/batches/{batchID}/rollback", s.handleStoreRollback)
				r.Post("/parse/spreadsheet", s.handleStoreParse)
			})
		}
	})
}

// Start listens on addr until Shutdown.
func (s *Server) Start(addr string) error {
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout, // 0 keeps progress streams open
		IdleTimeout:  s.opts.IdleTimeout,
	}

	slog.Info("starting server", "addr", addr)
	return s.server.ListenAndServe()
}

// Shutdown stops accepting requests and drops every session.
func (s *Server) Shutdown(ctx context.Context) error {
	defer s.admin.Close()
	defer s.sessions.closeAll()
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the handler, mainly for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"status":   "ok",
		"sessions": s.limiter.Status(),
	})
}

// securityHeaders adds the headers every JSON API response should carry.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}
