package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"cityfps-server/internal/api"
	statsapp "cityfps-server/internal/app/stats"
	worldapp "cityfps-server/internal/app/world"
	"cityfps-server/internal/platform/cache"
	"cityfps-server/internal/platform/config"
	"cityfps-server/internal/platform/db"
	"cityfps-server/internal/platform/migrate"
	"cityfps-server/internal/platform/mq"
	"cityfps-server/internal/platform/observability"
	"cityfps-server/migrations"
)

func main() {
	ctx := context.Background()
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	logger := observability.NewLogger(cfg.Env, cfg.LogLevel)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(registry)
	readyChecks := map[string]func(context.Context) error{}

	var pg *pgxpool.Pool
	if cfg.PostgresURL != "" {
		pg, err = db.Connect(ctx, cfg.PostgresURL, cfg.PostgresMaxConns)
		if err != nil {
			logger.Warn().Err(err).Msg("postgres unavailable; session history disabled")
			pg = nil
		} else if err := migrate.Up(ctx, pg, migrations.FS); err != nil {
			logger.Fatal().Err(err).Msg("migrations failed")
		}
	}
	if pg != nil {
		defer pg.Close()
		readyChecks["postgres"] = pg.Ping
	}

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient, err = cache.New(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			logger.Warn().Err(err).Msg("redis unavailable; continuing without cache")
			redisClient = nil
		}
	}
	if redisClient != nil {
		defer redisClient.Close()
		readyChecks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}

	publisher := mq.NewNoopPublisher()
	if cfg.NATSURL != "" {
		natsPub, err := mq.NewPublisher(cfg.NATSURL, "cityfps-server", cfg.NATSPrefix)
		if err != nil {
			logger.Warn().Err(err).Msg("nats unavailable; using noop publisher")
		} else {
			publisher = natsPub
		}
	}
	defer publisher.Close()

	var (
		recorder    worldapp.SessionRecorder
		leaderboard api.Leaderboard
	)
	if pg != nil {
		statsSvc := statsapp.NewService(pg, redisClient, cfg.LeaderboardTTL, publisher)
		recorder = statsSvc
		leaderboard = statsSvc
	}

	worldSvc := worldapp.NewService(logger, publisher, recorder, metrics, worldapp.Options{
		TickRate:         cfg.WorldTickRate,
		Seed:             cfg.WorldSeed,
		BuildingAttempts: cfg.WorldBuildings,
		NPCCount:         cfg.WorldNPCs,
		NPCRespawnTicks:  cfg.NPCRespawnTicks,
		SendBuffer:       cfg.WSSendBuffer,
	})
	worldSvc.Start()
	defer worldSvc.Stop()

	handler := api.NewHandler(logger, worldSvc, leaderboard, metrics, api.Options{
		CorsOrigin:      cfg.CorsOrigin,
		MaxMessageBytes: cfg.WSMaxMessageSize,
		Gatherer:        registry,
		ReadyChecks:     readyChecks,
	})
	httpServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      handler.Router(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", cfg.HTTPAddr).Msg("server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	<-sigCh
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown failed")
	}
	logger.Info().Msg("server stopped")
}
