package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func TestNewRouterMountsHealthAndMetrics(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := NewRouter("test-service", zap.NewNop())

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","service":"test-service"}`, w.Body.String())

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "verigrade_http_requests_total")
}

func TestHealthReportsDependencies(t *testing.T) {
	gin.SetMode(gin.TestMode)
	up := HealthCheck{Name: "redis", Check: func(context.Context) error { return nil }}
	down := HealthCheck{Name: "redis", Check: func(context.Context) error { return errors.New("dial tcp: connection refused") }}

	tests := []struct {
		name           string
		check          HealthCheck
		expectedStatus int
		expectedBody   string
	}{
		{
			name:           "redis reachable",
			check:          up,
			expectedStatus: http.StatusOK,
			expectedBody:   `{"status":"ok","service":"test-service","checks":{"redis":"ok"}}`,
		},
		{
			name:           "redis unreachable",
			check:          down,
			expectedStatus: http.StatusServiceUnavailable,
			expectedBody:   `{"status":"degraded","service":"test-service","checks":{"redis":"unreachable"}}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := NewRouter("test-service", zap.NewNop(), tt.check)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.JSONEq(t, tt.expectedBody, w.Body.String())
		})
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{})
	worker := func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}

	done := make(chan error, 1)
	go func() { done <- Run(ctx, http.NewServeMux(), "0", zap.NewNop(), worker) }()

	<-started
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRunReturnsWorkerError(t *testing.T) {
	boom := errors.New("boom")
	err := Run(context.Background(), http.NewServeMux(), "0", zap.NewNop(), func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)
}
