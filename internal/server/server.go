package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fleveque/image-service/internal/codec"
	"github.com/fleveque/image-service/internal/config"
	"github.com/fleveque/image-service/internal/metrics"
	"github.com/fleveque/image-service/internal/middleware"
)

// Deps are the long-lived collaborators the server is built from.
// main builds them from config; tests swap in their own engine.
type Deps struct {
	// Engine is the raw codec engine. The server instruments it.
	Engine codec.Engine
	// Metrics is nil when metrics are disabled.
	Metrics *metrics.Metrics
}

// NewDeps builds the production dependencies described by cfg.
func NewDeps(cfg *config.Config) (Deps, error) {
	engine, err := codec.New(cfg.Codec.Engine)
	if err != nil {
		return Deps{}, fmt.Errorf("creating codec engine: %w", err)
	}

	deps := Deps{Engine: engine}
	if cfg.Metrics.Enabled {
		deps.Metrics = metrics.New()
	}
	return deps, nil
}

// Server wraps the HTTP server and its dependencies.
// In Go, you typically compose a struct with all the pieces your server needs,
// then wire them together in the constructor (New function).
type Server struct {
	cfg    *config.Config
	router *gin.Engine
	logger *zap.Logger
	http   *http.Server
}

// New creates and configures a new Server.
func New(cfg *config.Config, deps Deps, logger *zap.Logger) *Server {
	// Set Gin mode based on log level
	if cfg.Log.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// gin trusts X-Forwarded-For from any peer unless told otherwise, which
	// would let clients pick their own rate-limit key. Only the configured
	// proxies are believed; with none, ClientIP is the peer address.
	if err := router.SetTrustedProxies(cfg.Server.TrustedProxies); err != nil {
		logger.Error("invalid trusted proxies, trusting none", zap.Error(err))
		_ = router.SetTrustedProxies(nil)
	}

	// Recovery middleware catches panics and returns 500 instead of crashing.
	// Order matters: request ID and tracing come first so that every later
	// middleware (and the handler) can log and annotate with them.
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Tracing())
	router.Use(middleware.Logger(logger))
	if deps.Metrics != nil {
		router.Use(middleware.Metrics(deps.Metrics))
	}
	router.Use(middleware.CORS(cfg.CORS))

	RegisterRoutes(router, cfg, deps, logger)

	s := &Server{
		cfg:    cfg,
		router: router,
		logger: logger,
		http: &http.Server{
			Addr:         cfg.Server.Address(),
			Handler:      router,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
			IdleTimeout:  cfg.Server.IdleTimeout,
		},
	}

	return s
}

// Start begins listening for HTTP requests. This blocks until the server stops.
func (s *Server) Start() error {
	s.logger.Info("starting server",
		zap.String("address", s.cfg.Server.Address()),
		zap.String("engine", s.cfg.Codec.Engine),
	)
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server listen: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server, waiting for in-flight requests to complete.
// context.Context is Go's way of handling cancellation and timeouts, you'll see it everywhere.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")
	return s.http.Shutdown(ctx)
}

// Router returns the underlying Gin engine (useful for testing).
func (s *Server) Router() *gin.Engine {
	return s.router
}
