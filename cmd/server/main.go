package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/gitsmart/gitsmart/internal/api"
	"github.com/gitsmart/gitsmart/internal/config"
	"github.com/gitsmart/gitsmart/internal/metrics"
	"github.com/gitsmart/gitsmart/internal/session"
)

func main() {
	_ = godotenv.Load(".env")
	cfg := config.Load()

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	log.Logger = logger

	ctx := context.Background()

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	sessions := session.NewStore(cfg.SessionTTL)
	sessions.StartSweeper(ctx, cfg.SessionSweep)

	limiter := api.NewRateLimiter(cfg.RateLimitPerMin, cfg.RateBurst)
	limiter.StartCleanup(ctx, 5*time.Minute)

	handler := api.NewHandler(cfg, sessions, collector)
	router := api.NewRouter(handler, api.RouterOptions{
		Logger:   logger,
		Sessions: sessions,
		Metrics:  collector,
		Gatherer: registry,
		Limiter:  limiter,
	})

	logger.Info().Str("addr", cfg.Addr).Msg("gitsmart server listening")
	if err := http.ListenAndServe(cfg.Addr, router); err != nil {
		logger.Fatal().Err(err).Msg("server stopped")
	}
}
