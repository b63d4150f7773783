package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"distribution-service/pkg/config"
)

func signToken(t *testing.T, secret, subject, issuer string, exp time.Time) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    issuer,
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func newAuthRouter(cfg config.JWTConfig) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestContextMiddleware(), AuthMiddleware(cfg))
	r.GET("/me", func(c *gin.Context) {
		c.String(http.StatusOK, UserUUID(c))
	})
	return r
}

func TestAuthMiddlewareBearer(t *testing.T) {
	cfg := config.JWTConfig{Secret: "s3cret", Issuer: "go-video"}
	r := newAuthRouter(cfg)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "s3cret", "user-1", "go-video", time.Now().Add(time.Hour)))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "user-1", w.Body.String())
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestAuthMiddlewareRejects(t *testing.T) {
	cfg := config.JWTConfig{Secret: "s3cret", Issuer: "go-video"}
	r := newAuthRouter(cfg)

	cases := map[string]string{
		"missing header": "",
		"wrong secret":   "Bearer " + signToken(t, "other", "user-1", "go-video", time.Now().Add(time.Hour)),
		"expired":        "Bearer " + signToken(t, "s3cret", "user-1", "go-video", time.Now().Add(-time.Minute)),
		"wrong issuer":   "Bearer " + signToken(t, "s3cret", "user-1", "evil", time.Now().Add(time.Hour)),
	}
	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
}

func TestAuthMiddlewareHeaderFallback(t *testing.T) {
	r := newAuthRouter(config.JWTConfig{})

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("X-User-UUID", "user-2")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "user-2", w.Body.String())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
