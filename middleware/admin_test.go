package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/relayforge/gateway/common/config"
)

func withAdminToken(t *testing.T, token string) {
	t.Helper()
	old := config.AdminToken
	config.AdminToken = token
	t.Cleanup(func() { config.AdminToken = old })
}

func runAdmin(authHeader string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	_, engine := gin.CreateTestContext(w)
	engine.Use(AdminAuth())
	engine.GET("/admin/models", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/admin/models", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	engine.ServeHTTP(w, req)
	return w
}

func TestAdminAuth_MissingHeader(t *testing.T) {
	withAdminToken(t, "s3cret")
	w := runAdmin("")
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminAuth_PlaintextTokenMatch(t *testing.T) {
	withAdminToken(t, "s3cret")
	w := runAdmin("Bearer s3cret")
	require.Equal(t, http.StatusOK, w.Code)
}

func TestAdminAuth_PlaintextTokenMismatch(t *testing.T) {
	withAdminToken(t, "s3cret")
	w := runAdmin("Bearer wrong")
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminAuth_BcryptHashedToken(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	withAdminToken(t, string(hash))

	require.Equal(t, http.StatusOK, runAdmin("Bearer s3cret").Code)
	require.Equal(t, http.StatusUnauthorized, runAdmin("Bearer wrong").Code)
}

func TestAdminAuth_NotConfigured(t *testing.T) {
	withAdminToken(t, "")
	w := runAdmin("Bearer anything")
	require.Equal(t, http.StatusUnauthorized, w.Code)
}
