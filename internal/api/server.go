// Package api provides the HTTP API server and handlers for the Quill blog.
package api

import (
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/quillpress/quill-server/internal/authz"
	"github.com/quillpress/quill-server/internal/ratelimit"
	"github.com/quillpress/quill-server/internal/store"
)

// defaultMaxUploadBytes bounds multipart bodies when no limit is configured.
const defaultMaxUploadBytes = 10 << 20

// Options carries the HTTP-facing settings of the server.
type Options struct {
	Version        string
	AllowedOrigins []string
	MaxUploadBytes int64
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	store       store.Store
	services    *Services
	storage     *StorageServices
	gate        *authz.Gate
	authLimiter *ratelimit.KeyedRateLimiter
	router      *chi.Mux
	api         huma.API
	opts        Options
	logger      *slog.Logger
}

// NewServer creates a new HTTP server with all routes configured.
// authLimiter may be nil to disable rate limiting of the auth endpoints.
func NewServer(
	opts Options,
	st store.Store,
	services *Services,
	storage *StorageServices,
	gate *authz.Gate,
	authLimiter *ratelimit.KeyedRateLimiter,
	logger *slog.Logger,
) *Server {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = defaultMaxUploadBytes
	}
	if opts.Version == "" {
		opts.Version = "1.0.0"
	}
	if storage == nil {
		storage = &StorageServices{}
	}

	s := &Server{
		store:       st,
		services:    services,
		storage:     storage,
		gate:        gate,
		authLimiter: authLimiter,
		router:      chi.NewRouter(),
		opts:        opts,
		logger:      logger,
	}

	s.setupMiddleware()

	humaConfig := huma.DefaultConfig("Quill API", opts.Version)
	humaConfig.Info.Description = "Blog backend: authentication, articles, moderation, and feeds."
	humaConfig.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"bearer": {
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "PASETO",
		},
	}
	humaConfig.Transformers = append(humaConfig.Transformers, EnvelopeTransformer)

	s.api = humachi.New(s.router, humaConfig)
	RegisterErrorHandler()

	s.registerRoutes()

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// API exposes the huma API, mainly for tests and OpenAPI export.
func (s *Server) API() huma.API {
	return s.api
}

// setupMiddleware configures middleware stack.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))

	origins := s.opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
}

// registerRoutes registers every route group.
func (s *Server) registerRoutes() {
	s.registerHealthRoutes()
	s.registerAuthRoutes()
	s.registerUserRoutes()
	s.registerArticleRoutes()
	s.registerAdminRoutes()
	s.registerFeedRoutes()
	s.registerMediaRoutes()
}

// limitAuth wraps h with the auth rate limiter when one is configured.
func (s *Server) limitAuth(h http.Handler) http.Handler {
	if s.authLimiter == nil {
		return h
	}
	return ratelimit.Middleware(s.authLimiter, s.logger)(h)
}

// rateLimited is the huma counterpart of limitAuth.
func (s *Server) rateLimited(ctx huma.Context, next func(huma.Context)) {
	if s.authLimiter == nil {
		next(ctx)
		return
	}
	r, w := humachi.Unwrap(ctx)
	s.limitAuth(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		next(ctx)
	})).ServeHTTP(w, r)
}
