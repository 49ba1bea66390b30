package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fleveque/image-service/internal/model"
	"github.com/fleveque/image-service/internal/service"
)

// UploadObserver is told the size of every accepted upload.
type UploadObserver interface {
	ObserveUpload(size int64)
}

// ImageHandler serves the three image endpoints. Each one shares the same
// shape: read upload → describe source → run pipeline → describe result.
type ImageHandler struct {
	pipeline *service.Pipeline
	metadata *service.MetadataService
	maxBytes int64
	uploads  UploadObserver
	logger   *zap.Logger
}

// NewImageHandler creates an ImageHandler. uploads may be nil.
func NewImageHandler(pipeline *service.Pipeline, metadata *service.MetadataService, maxBytes int64, uploads UploadObserver, logger *zap.Logger) *ImageHandler {
	return &ImageHandler{
		pipeline: pipeline,
		metadata: metadata,
		maxBytes: maxBytes,
		uploads:  uploads,
		logger:   logger,
	}
}

// runFunc is one pipeline operation bound to its already-parsed parameters.
type runFunc func(ctx context.Context, data []byte, src service.SourceFormats) (*service.Output, error)

// Resize scales an uploaded image.
// Route: POST /api/resize (multipart: image, width, height, format, fit)
func (h *ImageHandler) Resize(c *gin.Context) {
	h.handle(c, "resized_", []string{model.OperationResize}, func(ctx context.Context, data []byte, src service.SourceFormats) (*service.Output, error) {
		return h.pipeline.ResizeOnly(ctx, data, parseResizeRequest(c), src)
	})
}

// Compress re-encodes an uploaded image.
// Route: POST /api/compress (multipart: image, quality, format, compressionLevel, lossless)
func (h *ImageHandler) Compress(c *gin.Context) {
	h.handle(c, "compressed_", []string{model.OperationCompress}, func(ctx context.Context, data []byte, src service.SourceFormats) (*service.Output, error) {
		return h.pipeline.CompressOnly(ctx, data, parseEncodeRequest(c), src)
	})
}

// Process resizes and then re-encodes an uploaded image.
// Route: POST /api/process (multipart: union of the resize and compress fields)
func (h *ImageHandler) Process(c *gin.Context) {
	h.handle(c, "processed_", []string{model.OperationResize, model.OperationCompress}, func(ctx context.Context, data []byte, src service.SourceFormats) (*service.Output, error) {
		return h.pipeline.ResizeAndCompress(ctx, data, parseResizeRequest(c), parseEncodeRequest(c), src)
	})
}

// handle is the single error boundary shared by the image endpoints.
// Nothing is written until every step succeeded: a failure yields no bytes
// and no descriptors.
func (h *ImageHandler) handle(c *gin.Context, resultPrefix string, operations []string, run runFunc) {
	ctx := c.Request.Context()

	up, err := readUpload(c, h.maxBytes)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if h.uploads != nil {
		h.uploads.ObserveUpload(int64(len(up.Data)))
	}

	original, err := h.metadata.Describe(ctx, up.Data, up.Filename, nil)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	out, err := run(ctx, up.Data, service.NewSourceFormats(up.Filename, original.Format))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	processed, err := h.metadata.Describe(ctx, out.Data, resultPrefix+up.Filename, &out.Format)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, assembleResult(original, processed, out.Data, operations, out.Parameters()))
}
