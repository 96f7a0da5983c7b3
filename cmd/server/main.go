package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"stock-sync-service/internal/api"
	"stock-sync-service/internal/config"
	"stock-sync-service/internal/database"
	"stock-sync-service/internal/logger"
	"stock-sync-service/internal/notify"
	"stock-sync-service/internal/store"
	"stock-sync-service/internal/sync"
)

func main() {
	configPath := flag.String("config", envOr("STOCKSYNC_CONFIG", "config.yaml"), "path to config file")
	flag.Parse()

	// Load Config
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Init Logger
	if err := logger.InitLogger(cfg.Logging.Level, cfg.Logging.Format); err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Log.Info("Starting Stock Sync Service", zap.String("storage", cfg.StateStorage.Type))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Init State Store
	stateStore, err := newStore(ctx, cfg)
	if err != nil {
		logger.Log.Fatal("Failed to init state store", zap.Error(err))
	}
	defer stateStore.Close()

	// Init Channel Client
	channels := sync.NewGuardedClient(
		sync.NewSimulatedChannels(cfg.Channels.Latency, cfg.Channels.FailureRate),
		cfg.Channels,
	)

	// Init Sync Manager
	syncManager := sync.NewManager(stateStore, channels, sync.WithWorkers(cfg.Sync.Workers))
	defer syncManager.Close()

	if n, err := syncManager.Seed(ctx, cfg.Seed.SeedProducts()); err != nil {
		logger.Log.Fatal("Failed to seed products", zap.Error(err))
	} else if n > 0 {
		logger.Log.Info("Loaded seed products", zap.Int("count", n))
	}

	scheduler := sync.NewScheduler(syncManager)
	if err := scheduler.Start(ctx); err != nil {
		logger.Log.Fatal("Failed to start scheduler", zap.Error(err))
	}
	defer scheduler.Stop()

	if cfg.Sync.Realtime {
		if cfg.StateStorage.Type != "mysql" {
			logger.Log.Warn("Realtime sync requires mysql state storage, skipping binlog listener")
		} else {
			listener, err := sync.NewBinlogListener(cfg.StateStorage, syncManager)
			if err != nil {
				logger.Log.Fatal("Failed to init binlog listener", zap.Error(err))
			}
			if err := listener.Start(); err != nil {
				logger.Log.Fatal("Failed to start binlog listener", zap.Error(err))
			}
			defer listener.Stop()
		}
	}

	if cfg.Redis.Enabled {
		publisher, err := notify.NewPublisher(ctx, cfg.Redis.URL, cfg.Redis.Channel)
		if err != nil {
			logger.Log.Fatal("Failed to connect to redis", zap.Error(err))
		}
		defer publisher.Close()

		events, unsubscribe := syncManager.Subscribe()
		defer unsubscribe()
		go publisher.Run(ctx, events)
		logger.Log.Info("Publishing events to redis", zap.String("channel", cfg.Redis.Channel))
	}

	// Init API
	handler := api.NewHandler(syncManager, cfg.Server, channels)
	router := handler.Routes()

	// Start Server
	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  cfg.Server.GetReadTimeout(),
		WriteTimeout: cfg.Server.GetWriteTimeout(),
	}

	go func() {
		logger.Log.Info("Server listening", zap.String("addr", serverAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Fatal("Server failed", zap.Error(err))
		}
	}()

	// Graceful Shutdown
	<-ctx.Done()
	logger.Log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Log.Error("Server shutdown failed", zap.Error(err))
	}
}

func newStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	defaults := store.AutoSyncConfig{
		Enabled:         cfg.Scheduler.Enabled,
		IntervalMinutes: cfg.Scheduler.IntervalMinutes,
	}

	switch cfg.StateStorage.Type {
	case "mysql":
		db, err := database.NewDatabase(ctx, cfg.StateStorage)
		if err != nil {
			return nil, err
		}
		st, err := store.NewMySQLStore(ctx, db, defaults)
		if err != nil {
			db.Close()
			return nil, err
		}
		return st, nil
	default:
		return store.NewMemoryStore(defaults), nil
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
