package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/api-gateway/internal/proxy"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/config"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/logging"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/middleware"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/server"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/services"
)

func main() {
	config.Load()
	logger := logging.New("api-gateway")
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	middleware.MustInitJWTSecret()

	table, err := proxy.NewTable(services.Upstreams(), func(s services.Service) string {
		return config.ServiceURL(s.URLEnv, s.DefaultURL())
	})
	if err != nil {
		logger.Fatal("failed to build routing table", zap.Error(err))
	}
	for _, r := range table.Routes() {
		logger.Info("route", zap.String("prefix", r.Prefix), zap.String("service", r.Service), zap.String("target", r.Target.String()))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	limiter := middleware.NewRateLimiter(
		config.GetEnvFloat("RATE_LIMIT_RPS", 20),
		config.GetEnvInt("RATE_LIMIT_BURST", 40),
		logger,
	)
	limiter.StartCleanup(time.Minute, ctx.Done())

	gateway := proxy.New(table, config.GetEnvDuration("UPSTREAM_TIMEOUT", 30*time.Second), logger)

	router := server.NewRouter("api-gateway", logger)
	router.Any("/v1/*path", proxy.Authenticate(proxy.PublicRoutes), limiter.Handler(), gateway.Handler())

	if err := server.Run(ctx, router, config.GetEnv("PORT", "8080"), logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}
