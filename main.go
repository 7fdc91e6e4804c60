package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"crypto-paper-trader/config"
	"crypto-paper-trader/internal/api"
	"crypto-paper-trader/internal/binance"
	"crypto-paper-trader/internal/cache"
	"crypto-paper-trader/internal/database"
	"crypto-paper-trader/internal/engine"
	"crypto-paper-trader/internal/events"
	"crypto-paper-trader/internal/logging"
	"crypto-paper-trader/internal/position"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := logging.New(&logging.Config{
		Level:       cfg.LoggingConfig.Level,
		Output:      cfg.LoggingConfig.Output,
		Component:   "main",
		IncludeFile: cfg.LoggingConfig.IncludeFile,
		JSONFormat:  cfg.LoggingConfig.JSONFormat,
	})
	logging.SetDefault(logger)

	logger.Info("Starting crypto paper trader")

	// Database
	db, err := database.NewDB(database.Config{
		Host:     cfg.DatabaseConfig.Host,
		Port:     cfg.DatabaseConfig.Port,
		User:     cfg.DatabaseConfig.User,
		Password: cfg.DatabaseConfig.Password,
		Database: cfg.DatabaseConfig.Database,
		SSLMode:  cfg.DatabaseConfig.SSLMode,
	})
	if err != nil {
		logger.Fatal("Failed to connect to database", "error", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := db.RunMigrations(ctx); err != nil {
		cancel()
		logger.Fatal("Failed to run migrations", "error", err)
	}
	cancel()

	repo := database.NewRepository(db)

	// Market data, optionally cached through Redis
	client := binance.NewClient(cfg.BinanceConfig.BaseURL, cfg.BinanceConfig.TestNet)

	var feed engine.CandleFeed = client
	if cfg.RedisConfig.Enabled {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisConfig.Address,
			Password: cfg.RedisConfig.Password,
			DB:       cfg.RedisConfig.DB,
			PoolSize: cfg.RedisConfig.PoolSize,
		})
		candleCache := cache.NewCandleCache(redisClient, client,
			time.Duration(cfg.RedisConfig.CacheTTL)*time.Second, logger)
		defer candleCache.Close()
		feed = candleCache
	}

	// Position ledger
	zlog := zerolog.New(os.Stdout).With().Timestamp().Logger()
	ledger := position.NewLedger(repo, zlog)

	// Event bus feeds the WebSocket hub
	eventBus := events.NewEventBus()

	// Engine
	eng := engine.New(engine.Config{
		TickInterval: time.Duration(cfg.EngineConfig.TickInterval) * time.Second,
		ErrorBackoff: time.Duration(cfg.EngineConfig.ErrorBackoff) * time.Second,
		CandleLimit:  cfg.EngineConfig.CandleLimit,
	}, feed, client, repo, ledger, eventBus, logger)

	if err := eng.Start(); err != nil {
		logger.Fatal("Failed to start engine", "error", err)
	}

	// HTTP API
	server := api.NewServer(api.ServerConfig{
		Host:           cfg.ServerConfig.Host,
		Port:           cfg.ServerConfig.Port,
		AllowedOrigins: splitOrigins(cfg.ServerConfig.AllowedOrigins),
		ReadTimeout:    time.Duration(cfg.ServerConfig.ReadTimeout) * time.Second,
		WriteTimeout:   time.Duration(cfg.ServerConfig.WriteTimeout) * time.Second,
		ProductionMode: cfg.LoggingConfig.Level != "DEBUG",
	}, db, repo, eventBus, eng, ledger)

	go func() {
		if err := server.Start(); err != nil {
			logger.Fatal("HTTP server failed", "error", err)
		}
	}()

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	logger.Info("Shutting down", "signal", sig.String())

	eng.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.ServerConfig.ShutdownTimeout)*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown failed", "error", err)
	}

	logger.Info("Shutdown complete")
}

// splitOrigins parses the comma-separated allowed-origins setting
func splitOrigins(raw string) []string {
	var origins []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}
