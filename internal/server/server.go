// Package server exposes the store over the REST contract the editor talks
// to: the tool catalog, platforms, fragment search and server-side
// generation.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/ravi-parthasarathy/pipegen/internal/config"
	"github.com/ravi-parthasarathy/pipegen/internal/store"
	"github.com/ravi-parthasarathy/pipegen/pkg/compose"
	"github.com/ravi-parthasarathy/pipegen/pkg/llm"
)

// shutdownTimeout bounds graceful shutdown in Run.
const shutdownTimeout = 15 * time.Second

// Option configures a Server.
type Option func(*Server)

// WithDrafter drafts fragments for generate requests the store cannot satisfy.
func WithDrafter(d *llm.Drafter) Option {
	return func(s *Server) { s.drafter = d }
}

// WithComposeOptions passes options through to the generate composer.
func WithComposeOptions(opts ...compose.Option) Option {
	return func(s *Server) { s.composeOpts = append(s.composeOpts, opts...) }
}

// Server serves the REST API.
type Server struct {
	repo        store.Repository
	cfg         config.ServerConfig
	log         *zap.Logger
	drafter     *llm.Drafter
	composeOpts []compose.Option
	composer    *compose.Composer
	router      chi.Router
}

// New builds the server and its router.
func New(repo store.Repository, cfg config.ServerConfig, logger *zap.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{repo: repo, cfg: cfg, log: logger.Named("server")}
	for _, o := range opts {
		o(s)
	}

	copts := append([]compose.Option{compose.WithLogger(logger)}, s.composeOpts...)
	if s.drafter != nil {
		copts = append(copts, compose.WithFallback(s.drafter.Resolver()))
	}
	s.composer = compose.New(repo, copts...)
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors(s.cfg.CORSOrigin))
	r.Use(requestLogger(s.log))

	r.Get("/health", s.handleHealth)
	r.Get("/tools", s.handleListTools)
	r.Get("/platforms", s.handleListPlatforms)
	r.Get("/pipelines/search", s.handleSearchPipelines)

	r.Group(func(r chi.Router) {
		if s.cfg.JWTSecret != "" {
			r.Use(bearerAuth([]byte(s.cfg.JWTSecret), s.log))
		}
		r.Post("/tools", s.handleCreateTool)
		r.Post("/platforms", s.handleCreatePlatform)
		r.Post("/pipelines", s.handleCreatePipeline)
		r.Post("/pipelines/generate", s.handleGenerate)
	})
	return r
}

// ServeHTTP makes Server an http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Run listens on cfg.Addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening", zap.String("addr", s.cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.log.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
