// Package middleware wires authentication and error-envelope handling into
// gin (§1 Non-goals: "the HTTP framework is an external collaborator", not
// forbidden).
package middleware

import (
	"strings"

	gmw "github.com/Laisky/gin-middlewares/v7"
	"github.com/Laisky/zap"
	"github.com/gin-gonic/gin"

	"github.com/relayforge/gateway/apierr"
	"github.com/relayforge/gateway/common/ctxkey"
	"github.com/relayforge/gateway/common/helper"
	"github.com/relayforge/gateway/policy"
)

// ClientAuth extracts an API key from Authorization (Bearer or Basic, per
// §6) and resolves it to a Principal, stashing both on the gin.Context.
// Missing header -> AuthMissing; unresolved key -> AuthInvalid (from the
// resolver itself).
func ClientAuth(resolver *policy.Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		apiKey, err := extractAPIKey(c)
		if err != nil {
			AbortWithError(c, apierr.New(apierr.AuthMissing, err.Error()))
			return
		}

		p, err := resolver.Resolve(c.Request.Context(), apiKey)
		if err != nil {
			gmw.GetLogger(c).Debug("resolve principal failed", zap.String("api_key", helper.MaskAPIKey(apiKey)))
			AbortWithError(c, err)
			return
		}

		c.Set(ctxkey.APIKey, apiKey)
		c.Set(ctxkey.Principal, p)
		c.Next()
	}
}

// extractAPIKey implements §6: "Authorization: Bearer <api-key> or
// Authorization: Basic <api-key> (the key is read as the password with
// empty username)".
func extractAPIKey(c *gin.Context) (string, error) {
	header := c.GetHeader("Authorization")
	if header == "" {
		return "", errMissingAuth
	}

	switch {
	case strings.HasPrefix(header, "Bearer "):
		key := strings.TrimPrefix(header, "Bearer ")
		if key == "" {
			return "", errMissingAuth
		}
		return key, nil
	case strings.HasPrefix(header, "Basic "):
		username, password, ok := c.Request.BasicAuth()
		if !ok || password == "" || username != "" {
			return "", errMissingAuth
		}
		return password, nil
	default:
		return "", errMissingAuth
	}
}

// PrincipalFromContext retrieves the Principal stashed by ClientAuth.
func PrincipalFromContext(c *gin.Context) (*policy.Principal, bool) {
	v, ok := c.Get(ctxkey.Principal)
	if !ok {
		return nil, false
	}
	p, ok := v.(*policy.Principal)
	return p, ok
}
