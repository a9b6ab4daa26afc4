// Package server holds the HTTP bootstrap shared by every service: the gin
// engine with the standard middleware chain, and a run loop that serves
// until the context is cancelled while background workers run alongside.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/metrics"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/middleware"
)

// ShutdownTimeout bounds how long in-flight requests get after a stop signal.
const ShutdownTimeout = 10 * time.Second

// Worker is a long-running background task such as a stream subscriber.
// It must return when ctx is cancelled.
type Worker func(ctx context.Context) error

// HealthCheckTimeout bounds each dependency check behind /health.
const HealthCheckTimeout = 2 * time.Second

// HealthCheck reports whether a dependency such as Redis is reachable.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// NewRouter returns a gin engine with recovery, request logging, Prometheus
// instrumentation, /health and /metrics already mounted. /health answers 503
// when any of the checks fails.
func NewRouter(service string, logger *zap.Logger, checks ...HealthCheck) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.LoggingMiddleware(logger))
	router.Use(metrics.GinMiddleware())

	router.GET("/health", health(service, logger, checks))
	router.GET("/metrics", metrics.GinHandler())
	return router
}

func health(service string, logger *zap.Logger, checks []HealthCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		if len(checks) == 0 {
			c.JSON(http.StatusOK, gin.H{"status": "ok", "service": service})
			return
		}
		status, code := "ok", http.StatusOK
		results := make(map[string]string, len(checks))
		for _, hc := range checks {
			ctx, cancel := context.WithTimeout(c.Request.Context(), HealthCheckTimeout)
			err := hc.Check(ctx)
			cancel()
			if err != nil {
				logger.Warn("health check failed", zap.String("check", hc.Name), zap.Error(err))
				results[hc.Name] = "unreachable"
				status, code = "degraded", http.StatusServiceUnavailable
				continue
			}
			results[hc.Name] = "ok"
		}
		c.JSON(code, gin.H{"status": status, "service": service, "checks": results})
	}
}

// Run serves handler on :port and runs the workers until ctx is cancelled or
// any of them fails. The HTTP server is then drained gracefully.
func Run(ctx context.Context, handler http.Handler, port string, logger *zap.Logger, workers ...Worker) error {
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	for _, w := range workers {
		w := w
		g.Go(func() error {
			if err := w(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}
	return g.Wait()
}
