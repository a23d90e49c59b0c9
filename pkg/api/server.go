package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/cuemby/relay/pkg/cache"
	"github.com/cuemby/relay/pkg/types"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// ContentService is the write path the API exposes
type ContentService interface {
	Create(ctx context.Context, in types.NewContent) (*types.Content, error)
	Like(ctx context.Context, id uint64) (*types.Content, error)
	Get(ctx context.Context, id uint64) (*types.Content, error)
	ListLatest(ctx context.Context) ([]*types.Content, error)
}

// Config holds configuration for the write API server
type Config struct {
	ServiceID      string   `yaml:"serviceId"`
	Addr           string   `yaml:"addr"`
	AllowedOrigins []string `yaml:"allowedOrigins"`
}

// DefaultConfig returns the configuration of a standalone API process
func DefaultConfig() Config {
	return Config{
		ServiceID:      "api-1",
		Addr:           ":3000",
		AllowedOrigins: []string{"*"},
	}
}

// Server is the HTTP surface of the write path
type Server struct {
	cfg     Config
	content ContentService
	cache   cache.Cache
	logger  zerolog.Logger

	mu     sync.Mutex
	server *http.Server
}

// NewServer creates a new API server. c is used only for admin purges.
func NewServer(cfg Config, content ContentService, c cache.Cache, logger zerolog.Logger) *Server {
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = DefaultConfig().AllowedOrigins
	}
	return &Server{
		cfg:     cfg,
		content: content,
		cache:   c,
		logger:  logger,
	}
}

// Handler returns the router serving every API route
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(
		withCORS(s.cfg.AllowedOrigins),
		withLogger(s.logger),
		withMetrics,
		middleware.Recoverer,
	)

	r.Route("/content", func(r chi.Router) {
		r.Get("/", s.listContent)
		r.Post("/", s.createContent)
		r.Get("/{id}", s.getContent)
		r.Post("/{id}/like", s.likeContent)
	})
	r.Route("/cache/{namespace}", func(r chi.Router) {
		r.Delete("/", s.purgeCache)
		r.Delete("/{pattern}", s.purgeCache)
	})

	s.mountHealth(r)
	return r
}

// Start serves the API on its configured address until Stop is called
func (s *Server) Start() error {
	server := &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	s.mu.Lock()
	s.server = server
	s.mu.Unlock()

	s.logger.Info().Str("addr", s.cfg.Addr).Msg("API listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("api server failed: %w", err)
	}
	return nil
}

// Stop gracefully stops the server
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	server := s.server
	s.mu.Unlock()

	if server == nil {
		return nil
	}
	return server.Shutdown(ctx)
}
