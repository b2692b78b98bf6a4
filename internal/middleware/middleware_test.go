package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"stafflink/internal/middleware"
	"stafflink/internal/shared/contextutil"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func setupRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return gin.New()
}

func TestRequestID(t *testing.T) {
	r := setupRouter()
	r.Use(middleware.RequestID(), middleware.ContextLogger(zap.NewNop()))
	var seen string
	r.GET("/ping", func(c *gin.Context) {
		seen = contextutil.GetRequestID(c.Request.Context())
		c.Status(http.StatusNoContent)
	})

	t.Run("propagates incoming header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.Header.Set(middleware.RequestIDHeader, "req-42")
		w := httptest.NewRecorder()

		r.ServeHTTP(w, req)

		assert.Equal(t, "req-42", seen)
		assert.Equal(t, "req-42", w.Header().Get(middleware.RequestIDHeader))
	})

	t.Run("generates when missing", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))

		assert.NotEmpty(t, seen)
		assert.Equal(t, seen, w.Header().Get(middleware.RequestIDHeader))
		_, err := uuid.Parse(seen)
		assert.NoError(t, err)
	})

	for _, tt := range []struct {
		name string
		rid  string
	}{
		{name: "replaces oversized id", rid: strings.Repeat("a", 65)},
		{name: "replaces id with spaces", rid: "req 42"},
		{name: "replaces id with markup", rid: "<script>"},
	} {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/ping", nil)
			req.Header.Set(middleware.RequestIDHeader, tt.rid)
			w := httptest.NewRecorder()

			r.ServeHTTP(w, req)

			assert.NotEqual(t, tt.rid, seen)
			_, err := uuid.Parse(seen)
			assert.NoError(t, err)
			assert.Equal(t, seen, w.Header().Get(middleware.RequestIDHeader))
		})
	}

	t.Run("keeps id at the length limit", func(t *testing.T) {
		rid := "trace:" + strings.Repeat("b", 58)
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.Header.Set(middleware.RequestIDHeader, rid)

		r.ServeHTTP(httptest.NewRecorder(), req)

		assert.Equal(t, rid, seen)
	})
}

func TestRateLimitByIP(t *testing.T) {
	r := setupRouter()
	limit := middleware.RateLimitByIP(0.001, 1)
	ok := func(c *gin.Context) { c.Status(http.StatusOK) }
	r.POST("/automation/daily-shift-closure", limit, ok)
	r.POST("/automation/urgent-shift-escalation", limit, ok)

	post := func(path string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, path, nil))
		return w
	}

	first := post("/automation/daily-shift-closure")
	second := post("/automation/daily-shift-closure")
	other := post("/automation/urgent-shift-escalation")

	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Contains(t, second.Body.String(), `"success":false`)
	assert.Equal(t, "1000", second.Header().Get("Retry-After"))
	assert.Equal(t, http.StatusOK, other.Code)
}
