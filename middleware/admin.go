package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/relayforge/gateway/apierr"
	"github.com/relayforge/gateway/common/config"
)

// AdminAuth gates the /admin surface (§6: users/roles/quotas/models CRUD).
// It verifies a bearer JWT when config.AdminJWTSecret is set, otherwise
// falls back to a static bearer token compared with bcrypt when the stored
// token looks like a bcrypt hash, or a plain string compare otherwise. Shaped after a session-role threshold check generalized from
// session-role lookups to a single static secret, since this design has no
// admin session store.
func AdminAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := extractBearer(c)
		if err != nil {
			AbortWithError(c, apierr.New(apierr.AuthMissing, err.Error()))
			return
		}

		if config.AdminJWTSecret != "" {
			if err := verifyAdminJWT(token); err != nil {
				AbortWithError(c, apierr.Wrap(apierr.AuthInvalid, err, "invalid admin token"))
				return
			}
			c.Next()
			return
		}

		if config.AdminToken == "" {
			AbortWithError(c, apierr.New(apierr.AuthInvalid, "admin surface is not configured"))
			return
		}

		if !adminTokenMatches(token) {
			AbortWithError(c, apierr.New(apierr.AuthInvalid, "invalid admin token"))
			return
		}
		c.Next()
	}
}

func extractBearer(c *gin.Context) (string, error) {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return "", errMissingAuth
	}
	token := strings.TrimPrefix(header, "Bearer ")
	if token == "" {
		return "", errMissingAuth
	}
	return token, nil
}

func verifyAdminJWT(token string) error {
	_, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		return []byte(config.AdminJWTSecret), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	return err
}

// adminTokenMatches supports a bcrypt-hashed ADMIN_TOKEN (preferred, so the
// plaintext never sits in the environment) falling back to a plain compare
// for operators who set it unhashed.
func adminTokenMatches(presented string) bool {
	if strings.HasPrefix(config.AdminToken, "$2") {
		return bcrypt.CompareHashAndPassword([]byte(config.AdminToken), []byte(presented)) == nil
	}
	return presented == config.AdminToken
}
