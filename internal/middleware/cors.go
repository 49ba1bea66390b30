package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/fleveque/image-service/internal/config"
)

// CORS returns middleware that sets Cross-Origin Resource Sharing headers.
// The image endpoints are called straight from browsers on other origins,
// so every response carries the headers, including errors and 404s.
//
// CORS explained: browsers block cross-origin requests by default. The server
// must explicitly allow them via these headers. For preflight OPTIONS requests,
// we return 204 immediately (no content), whatever the path.
//
// An allowed origin of "*" allows every origin; otherwise the request's
// Origin is echoed back only when it is in the list.
func CORS(cfg config.CORSConfig) gin.HandlerFunc {
	wildcard := false
	originSet := make(map[string]struct{}, len(cfg.AllowedOrigins))
	for _, o := range cfg.AllowedOrigins {
		if o == "*" {
			wildcard = true
		}
		originSet[o] = struct{}{}
	}

	methods := strings.Join(cfg.AllowedMethods, ", ")
	headers := strings.Join(cfg.AllowedHeaders, ", ")
	maxAge := strconv.Itoa(cfg.MaxAge)

	return func(c *gin.Context) {
		allowOrigin := ""
		if wildcard {
			allowOrigin = "*"
		} else if origin := c.GetHeader("Origin"); origin != "" {
			if _, ok := originSet[origin]; ok {
				allowOrigin = origin
				c.Header("Vary", "Origin")
			}
		}

		if allowOrigin != "" {
			c.Header("Access-Control-Allow-Origin", allowOrigin)
			c.Header("Access-Control-Allow-Methods", methods)
			c.Header("Access-Control-Allow-Headers", headers)
			c.Header("Access-Control-Max-Age", maxAge)
		}

		// Handle preflight requests
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
