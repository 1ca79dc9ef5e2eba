package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/MulatuMekonnen/EthioKidsLearn-sub001/pkg/domain/interfaces"
)

// config holds internal HTTP server configuration
type config struct {
	addr    string
	metrics http.Handler
	records interfaces.RecordStore
}

// Option is a functional option for Server configuration
type Option func(*config)

// WithAddr sets the server address
func WithAddr(addr string) Option {
	return func(c *config) {
		c.addr = addr
	}
}

// WithMetricsHandler exposes h at /metrics
func WithMetricsHandler(h http.Handler) Option {
	return func(c *config) {
		c.metrics = h
	}
}

// WithRecordStore enables POST /contents/{id}/sync, which pulls the descriptor from the
// remote record store before downloading
func WithRecordStore(records interfaces.RecordStore) Option {
	return func(c *config) {
		c.records = records
	}
}

// Server represents the HTTP server
type Server struct {
	*http.Server
}

// NewServer creates a new HTTP server
func NewServer(
	ctx context.Context,
	cacheUC interfaces.OfflineCacheUseCase,
	opts ...Option,
) (*Server, error) {
	cfg := &config{
		addr: "localhost:8080",
	}
	for _, opt := range opts {
		opt(cfg)
	}

	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(LoggingMiddleware(ctx))
	router.Use(middleware.Recoverer)

	router.Get("/health", handleHealth(cacheUC))
	if cfg.metrics != nil {
		router.Method(http.MethodGet, "/metrics", cfg.metrics)
	}

	contents := NewContentHandler(cacheUC, cfg.records)
	router.Route("/contents", func(r chi.Router) {
		r.Get("/", contents.List)
		r.Get("/{id}", contents.Get)
		r.Put("/{id}", contents.Download)
		r.Delete("/{id}", contents.Remove)
		r.Post("/{id}/sync", contents.Sync)
	})
	router.Post("/integrity", contents.Verify)

	server := &Server{
		Server: &http.Server{
			Addr:              cfg.addr,
			Handler:           router,
			ReadHeaderTimeout: 15 * time.Second,
		},
	}

	return server, nil
}
