package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Thomasfairey/compliance-connect-sub003/internal/config"
	"github.com/Thomasfairey/compliance-connect-sub003/internal/db"
	"github.com/Thomasfairey/compliance-connect-sub003/internal/geo"
	httpapi "github.com/Thomasfairey/compliance-connect-sub003/internal/http"
	"github.com/Thomasfairey/compliance-connect-sub003/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	zerolog.TimeFieldFormat = time.RFC3339
	level, _ := zerolog.ParseLevel(cfg.LogLevel)
	logger := log.Level(level).With().Str("service", "compliance-connect").Logger()

	ctx := context.Background()
	store, err := db.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect db")
	}
	defer store.Close()

	locator := buildLocator(cfg, logger)

	scoring := service.ScoringConfig{
		Weights: service.ScoringWeights{
			Customer: cfg.WeightCustomer,
			Engineer: cfg.WeightEngineer,
			Platform: cfg.WeightPlatform,
		},
		WorkloadPenaltyDay:  cfg.WorkloadPenaltyDay,
		WorkloadPenaltyWeek: cfg.WorkloadPenaltyWeek,
		ClusterRadiusKm:     cfg.ClusterRadiusKm,
		ClusterBonus:        cfg.ClusterBonus,
		ScheduleBonus:       cfg.ScheduleBonus,
	}
	if err := scoring.Weights.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid scoring weights")
	}

	allocator := &service.Allocator{
		Store:      store,
		Locator:    locator,
		Scoring:    scoring,
		Quoter:     &service.Quoter{MarginFloor: cfg.MarginFloor, Logger: logger},
		GeoTimeout: cfg.GeoTimeout,
		Logger:     logger,
	}
	transitioner := &service.Transitioner{Store: store, Logger: logger}
	planner := &service.RoutePlanner{
		Store:      store,
		Locator:    locator,
		GeoTimeout: cfg.GeoTimeout,
		Logger:     logger,
	}

	router := httpapi.Router(cfg, store, allocator, transitioner, planner, logger)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info().Str("port", cfg.Port).Msg("server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctxShutdown)
	logger.Info().Msg("server stopped")
}

// buildLocator wires the postcode lookup chain: the HTTP resolver, fronted
// by a Redis cache when REDIS_URL is configured.
func buildLocator(cfg config.Config, logger zerolog.Logger) geo.Locator {
	var locator geo.Locator = &geo.HTTPLocator{
		BaseURL: cfg.PostcodeAPIURL,
		Client:  &http.Client{Timeout: cfg.GeoTimeout},
	}

	if cfg.RedisURL == "" {
		return locator
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Warn().Err(err).Msg("invalid REDIS_URL, postcode cache disabled")
		return locator
	}
	logger.Info().Msg("postcode cache enabled")
	return &geo.RedisLocator{
		Client: redis.NewClient(opts),
		Next:   locator,
		TTL:    cfg.GeoCacheTTL,
	}
}
