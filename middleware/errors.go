package middleware

import (
	"net/http"

	gmw "github.com/Laisky/gin-middlewares/v7"
	"github.com/Laisky/zap"
	"github.com/gin-gonic/gin"

	"github.com/Laisky/errors/v2"
	"github.com/relayforge/gateway/apierr"
	"github.com/relayforge/gateway/common/ctxkey"
)

var errMissingAuth = errors.New("missing or malformed Authorization header")

// AbortWithError renders err as the OpenAI-shaped error envelope (§6/§7),
// logs it, and aborts the gin chain: log then JSON-abort, generalized from a
// bare statusCode+message pair to the Kind-carrying apierr.Error.
func AbortWithError(c *gin.Context, err error) {
	apiErr, ok := apierr.As(err)
	if !ok {
		apiErr = apierr.Wrap(apierr.InternalError, err, "unhandled error")
	}

	requestID, _ := c.Get(ctxkey.RequestID)
	requestIDStr, _ := requestID.(string)

	gmw.GetLogger(c).Error("request failed",
		zap.String("kind", string(apiErr.Kind)),
		zap.Error(apiErr),
		zap.String("path", c.Request.URL.Path),
	)

	c.AbortWithStatusJSON(apiErr.HTTPStatus(), apiErr.ToEnvelope(requestIDStr))
}

// RecoverJSON converts a panic into a 500 OpenAI-shaped envelope instead of
// gin's default plaintext recovery response, keeping the client-facing
// contract consistent across every failure path (§6).
func RecoverJSON() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				gmw.GetLogger(c).Error("panic recovered", zap.Any("panic", r))
				apiErr := apierr.New(apierr.InternalError, "internal server error")
				c.AbortWithStatusJSON(http.StatusInternalServerError, apiErr.ToEnvelope(""))
			}
		}()
		c.Next()
	}
}
