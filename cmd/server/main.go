package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Dekunlebells/okaygoal-sub001/internal/auth"
	"github.com/Dekunlebells/okaygoal-sub001/internal/config"
	"github.com/Dekunlebells/okaygoal-sub001/internal/database"
	"github.com/Dekunlebells/okaygoal-sub001/internal/gateway"
	"github.com/Dekunlebells/okaygoal-sub001/internal/logging"
	"github.com/Dekunlebells/okaygoal-sub001/internal/redis"
	"github.com/Dekunlebells/okaygoal-sub001/internal/server"
)

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupDB(cfg *config.Config) *database.DB {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	if err := database.RunMigrationsWithLock(ctx, db); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	return db
}

func setupRedis(cfg *config.Config) *redis.Client {
	client, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx); err != nil {
		slog.Error("Failed to ping Redis", "error", err)
		os.Exit(1)
	}

	return client
}

func runGracefulShutdown(cfg *config.Config, srv *server.Server, gw *gateway.Gateway, cancelFeed context.CancelFunc) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		cancelFeed()
		gw.Stop()

		close(done)
	}()

	return done
}

func main() {
	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port)

	db := setupDB(cfg)
	defer db.Close()

	redisClient := setupRedis(cfg)
	defer func() { _ = redisClient.Close() }()

	matchRepo := database.NewMatchRepo(db)
	prefRepo := database.NewPreferenceRepo(db)

	entitlements := redis.NewEntitlementCache(redisClient, prefRepo)
	gw := gateway.New(entitlements, gateway.Config{
		MaxSessionsPerIdentity: cfg.MaxSessionsPerUser,
		QueueCapacity:          cfg.DeliveryQueueCapacity,
	})

	feedCtx, cancelFeed := context.WithCancel(context.Background())
	feed := redis.NewFeed(redisClient, matchRepo, gw)
	go func() {
		if err := feed.Run(feedCtx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("Feed bridge stopped", "error", err)
		}
	}()

	verifier := auth.NewHTTPVerifier(cfg.AuthURL)
	srv := server.NewServer(cfg, gw, verifier, matchRepo, prefRepo, db, redisClient)

	done := runGracefulShutdown(cfg, srv, gw, cancelFeed)

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
