package middleware

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/relayforge/gateway/common/ctxkey"
	"github.com/relayforge/gateway/common/metrics"
)

// CORS allows cross-origin browser clients to call the v1 surface directly,
// matching the permissive CORS posture of a public API.
func CORS() gin.HandlerFunc {
	cfg := cors.DefaultConfig()
	cfg.AllowAllOrigins = true
	cfg.AllowHeaders = []string{"Authorization", "Content-Type"}
	cfg.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	cfg.MaxAge = 12 * time.Hour
	return cors.New(cfg)
}

// Gzip compresses responses: apiRouter.Use(gzip.Gzip(gzip.DefaultCompression)).
func Gzip() gin.HandlerFunc {
	return gzip.Gzip(gzip.DefaultCompression)
}

// Metrics records HTTP-layer request/response metrics through
// metrics.GlobalRecorder, the package-var fan-out point the rest of the
// gateway (worker, store, policy resolver) already reports through.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		method := c.Request.Method

		metrics.GlobalRecorder.RecordHTTPActiveRequest(path, method, 1)
		defer metrics.GlobalRecorder.RecordHTTPActiveRequest(path, method, -1)

		c.Next()

		metrics.GlobalRecorder.RecordHTTPRequest(started, path, method, c.Writer.Status())
	}
}

// RequestID assigns a per-request trace id used by both the error envelope
// and response logging, independent of the §4.6 response-id rewrite (which
// is scoped to a successful chat/completions-family round trip only).
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(ctxkey.RequestID, id)
		c.Header("X-Request-Id", id)
		c.Next()
	}
}
