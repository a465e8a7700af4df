package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"paperbrain/internal/app"
)

type resolverFunc func(r *http.Request) (string, error)

func (f resolverFunc) ResolveOwner(r *http.Request) (string, error) { return f(r) }

func newEngine(logger *zap.Logger, resolver OwnerResolver) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.Use(RequestLogger(logger), Recovery(logger))
	engine.GET("/panic", func(c *gin.Context) { panic("boom") })

	api := engine.Group("/api", AuthOwner(resolver))
	api.GET("/whoami", func(c *gin.Context) {
		ownerID, _ := OwnerID(c)
		c.String(http.StatusOK, ownerID)
	})
	return engine
}

func TestAuthOwner(t *testing.T) {
	resolver := resolverFunc(func(r *http.Request) (string, error) {
		switch r.Header.Get("Authorization") {
		case "Bearer good":
			return "owner-1", nil
		case "Bearer broken":
			return "", errors.New("user store offline")
		default:
			return "", app.ErrUnauthenticated
		}
	})
	engine := newEngine(zap.NewNop(), resolver)

	cases := []struct {
		header string
		status int
		body   string
	}{
		{"Bearer good", http.StatusOK, "owner-1"},
		{"", http.StatusUnauthorized, ""},
		{"Bearer broken", http.StatusInternalServerError, ""},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/api/whoami", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		rec := httptest.NewRecorder()
		engine.ServeHTTP(rec, req)

		assert.Equal(t, tc.status, rec.Code, tc.header)
		if tc.body != "" {
			assert.Equal(t, tc.body, rec.Body.String())
		}
	}
}

func TestRequestLogger_KeepsIncomingRequestID(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	engine := newEngine(zap.New(core), resolverFunc(func(*http.Request) (string, error) { return "owner-1", nil }))

	req := httptest.NewRequest(http.MethodGet, "/api/whoami", nil)
	req.Header.Set(HeaderRequestID, "req-42")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	assert.Equal(t, "req-42", rec.Header().Get(HeaderRequestID))
	entries := logs.FilterMessage("request").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "req-42", fields["request_id"])
	assert.Equal(t, "owner-1", fields["owner_id"])
	assert.EqualValues(t, http.StatusOK, fields["status"])
}

func TestRecovery_LogsPanic(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	engine := newEngine(zap.New(core), resolverFunc(func(*http.Request) (string, error) { return "", app.ErrUnauthenticated }))

	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, 1, logs.FilterMessage("panic recovered").Len())
	assert.NotEmpty(t, rec.Header().Get(HeaderRequestID))
}
