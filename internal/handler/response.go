package handler

import (
	"encoding/base64"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fleveque/image-service/internal/middleware"
	"github.com/fleveque/image-service/internal/model"
	"github.com/fleveque/image-service/internal/service"
)

// StatusFor maps an error kind to its HTTP status. This is the only place
// the mapping lives.
func StatusFor(kind service.Kind) int {
	switch kind {
	case service.KindMissingFile:
		return http.StatusBadRequest
	case service.KindFileTooLarge:
		return http.StatusRequestEntityTooLarge
	case service.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes the failure envelope for err.
func respondError(c *gin.Context, logger *zap.Logger, err error) {
	kind := service.KindOf(err)
	status := StatusFor(kind)

	fields := []zap.Field{
		zap.String("path", c.Request.URL.Path),
		zap.String("kind", kind.String()),
		zap.String("request_id", middleware.GetRequestID(c)),
		zap.Error(err),
	}
	if status >= http.StatusInternalServerError {
		logger.Error("image request failed", fields...)
	} else {
		logger.Info("image request rejected", fields...)
	}

	c.JSON(status, model.ErrorResponse{
		Success: false,
		Error:   err.Error(),
	})
}

// assembleResult builds the success envelope.
func assembleResult(original, processed model.ImageDescriptor, data []byte, operations []string, params model.Parameters) model.OperationResult {
	return model.OperationResult{
		Success:       true,
		OriginalImage: original,
		ProcessedImage: model.EncodedImage{
			ImageDescriptor: processed,
			Base64:          dataURL(processed.Format, data),
		},
		Processing: model.Processing{
			Operations: operations,
			Parameters: params,
		},
	}
}

// dataURL encodes data as a data: URL, ready for an <img src>.
func dataURL(format string, data []byte) string {
	return "data:" + model.Format(format).MIMEType() + ";base64," + base64.StdEncoding.EncodeToString(data)
}
