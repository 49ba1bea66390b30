// Package handler contains HTTP request handlers.
// In Gin, a handler is any function with signature func(*gin.Context).
// No need for controller classes, just functions grouped by file.
package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fleveque/image-service/internal/model"
)

// rootText lists the endpoints for humans poking at the service with curl.
const rootText = `Image Processing Server

Endpoints:
- POST /api/resize - Resize images
- POST /api/compress - Compress images
- POST /api/process - Resize and compress images
- GET /api/health - Health check`

// HealthHandler handles the root and health check requests.
type HealthHandler struct {
	now func() time.Time
}

// NewHealthHandler creates a new HealthHandler.
// In Go, constructors are just regular functions prefixed with "New".
func NewHealthHandler() *HealthHandler {
	return &HealthHandler{now: time.Now}
}

// Root responds with a plain-text endpoint listing.
// Route: GET /
func (h *HealthHandler) Root(c *gin.Context) {
	c.String(http.StatusOK, rootText)
}

// Health responds with service status and the current time (RFC 3339, UTC).
// The method receiver (h *HealthHandler) is Go's way of attaching methods to
// a struct, similar to `self` or `this`.
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, model.HealthResponse{
		Status:    "ok",
		Timestamp: h.now().UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	})
}

// NotFound is the fallback for unmatched routes.
func NotFound(c *gin.Context) {
	c.String(http.StatusNotFound, "Not Found")
}
