// Package server configures the HTTP server and routes.
package server

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fleveque/image-service/internal/codec"
	"github.com/fleveque/image-service/internal/config"
	"github.com/fleveque/image-service/internal/handler"
	"github.com/fleveque/image-service/internal/middleware"
	"github.com/fleveque/image-service/internal/model"
	"github.com/fleveque/image-service/internal/service"
)

// RegisterRoutes sets up all HTTP routes on the Gin engine.
// In Go, we pass dependencies explicitly, no DI container and no magic.
// Each handler gets exactly the dependencies it needs.
func RegisterRoutes(r *gin.Engine, cfg *config.Config, deps Deps, logger *zap.Logger) {
	// A nil *metrics.Metrics stored in an interface is not a nil interface,
	// so the optional observers are only assigned when metrics exist.
	var (
		codecObs codec.Observer
		recorder service.OperationRecorder
		uploads  handler.UploadObserver
		onReject func()
	)
	if deps.Metrics != nil {
		codecObs = deps.Metrics
		recorder = deps.Metrics
		uploads = deps.Metrics
		onReject = deps.Metrics.IncRateLimitRejected
	}

	engine := codec.Instrument(deps.Engine, codecObs)
	pipeline := service.NewPipeline(engine, PipelineOptions(cfg.Processing), recorder, logger)
	metadata := service.NewMetadataService(engine)

	healthHandler := handler.NewHealthHandler()
	imageHandler := handler.NewImageHandler(pipeline, metadata, cfg.Upload.MaxBytes, uploads, logger)

	// Public, unlimited endpoints
	r.GET("/", healthHandler.Root)
	r.GET("/api/health", healthHandler.Health)
	if deps.Metrics != nil {
		r.GET(cfg.Metrics.Path, gin.WrapH(deps.Metrics.Handler()))
	}

	// Image endpoints: rate limited and body capped.
	images := r.Group("/api")
	if cfg.RateLimit.Enabled {
		images.Use(middleware.RateLimit(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst, onReject))
	}
	images.Use(middleware.BodyLimit(cfg.Upload.MaxRequestBytes()))
	{
		images.POST("/resize", imageHandler.Resize)
		images.POST("/compress", imageHandler.Compress)
		images.POST("/process", imageHandler.Process)
	}

	r.NoRoute(handler.NotFound)
}

// PipelineOptions converts the processing config section. Unset values
// keep the built-in defaults and out-of-range ones are clamped.
func PipelineOptions(p config.ProcessingConfig) service.PipelineOptions {
	opts := service.DefaultPipelineOptions()
	if fit, ok := model.ParseFit(p.DefaultFit); ok {
		opts.DefaultFit = fit
	}
	if p.DefaultQuality > 0 {
		opts.DefaultQuality = service.ClampQuality(p.DefaultQuality)
	}
	if p.ResizeQuality > 0 {
		opts.ResizeQuality = service.ClampQuality(p.ResizeQuality)
	}
	if p.DefaultCompressionLevel >= 0 {
		opts.DefaultCompressionLevel = service.ClampCompressionLevel(p.DefaultCompressionLevel)
	}
	return opts
}
