package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestRateLimiterPerKey(t *testing.T) {
	rl := NewRateLimiter(0.001, 2, zap.NewNop())
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if u := c.GetHeader("X-Test-User"); u != "" {
			c.Set("userId", u)
		}
		c.Next()
	})
	r.Use(rl.Handler())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	call := func(user string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if user != "" {
			req.Header.Set("X-Test-User", user)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, call("usr-a"))
	assert.Equal(t, http.StatusOK, call("usr-a"))
	assert.Equal(t, http.StatusTooManyRequests, call("usr-a"))
	assert.Equal(t, http.StatusOK, call("usr-b"), "buckets are per user")
	assert.Equal(t, http.StatusOK, call(""), "anonymous callers are keyed by IP")
}

func TestRateLimiterCleanup(t *testing.T) {
	rl := NewRateLimiter(10, 10, zap.NewNop())
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }
	rl.getLimiter("old")
	now = now.Add(11 * time.Minute)
	rl.getLimiter("fresh")

	assert.Equal(t, 1, rl.Cleanup())
	_, stillThere := rl.limiters["fresh"]
	assert.True(t, stillThere)
}
