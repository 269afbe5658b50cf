package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/lottoloop/chain-custody/internal/api"
	"github.com/lottoloop/chain-custody/internal/chain/ethereum"
	"github.com/lottoloop/chain-custody/internal/config"
	"github.com/lottoloop/chain-custody/internal/db"
	"github.com/lottoloop/chain-custody/internal/keyring"
	"github.com/lottoloop/chain-custody/internal/observability"
	"github.com/lottoloop/chain-custody/internal/repository"
	"github.com/lottoloop/chain-custody/internal/service"
	"github.com/lottoloop/chain-custody/internal/settings"
	"github.com/lottoloop/chain-custody/internal/worker"
)

// Run bootstraps the custody pipeline and HTTP admin server, blocking until shutdown.
func Run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)
	observability.Init()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	// Redis is a cache tier only; the pipeline runs without it.
	redisClient, err := newRedisClient(cfg.RedisURL)
	if err != nil {
		logger.Warn("redis unavailable, settings cache runs without it", zap.Error(err))
	} else {
		defer redisClient.Close()
	}

	chainClient, err := ethereum.Dial(ctx, cfg.ChainRPCURL, cfg.TokenAddress, cfg.ChainID)
	if err != nil {
		return fmt.Errorf("connect chain rpc: %w", err)
	}
	defer chainClient.Close()

	keys, err := keyring.New(cfg.MasterSeedHex)
	if err != nil {
		return fmt.Errorf("init keyring: %w", err)
	}

	repo := repository.NewRepository(pool)
	ledger := repository.NewLedger(pool)
	watermark := repository.NewWatermark(pool)

	var redisTier redis.Cmdable
	if redisClient != nil {
		redisTier = redisClient
	}
	settingsCache := settings.NewCache(repository.NewSettings(pool), redisTier, cfg.SettingsTTL, nil)

	sweeper := service.NewFundSweeper(chainClient, ledger, keys, settingsCache, cfg.TreasuryAddress, cfg.MinGasWei)
	scanner := service.NewDepositScanner(repo, ledger, watermark, chainClient, sweeper, cfg.ChunkSize, cfg.BackfillWindow)
	reconciler := service.NewPendingTxReconciler(ledger, chainClient)

	scheduler, err := worker.NewScheduler(scanner, reconciler, cfg.ScanInterval, cfg.ReconcileInterval)
	if err != nil {
		return fmt.Errorf("create scheduler: %w", err)
	}
	if err := scheduler.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	router := api.NewRouter(logger, pool, redisTier, scanner, repo, ledger, cfg.AdminRateLimitRPS)

	server := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("http server starting", zap.String("port", cfg.HTTPPort))
		serverErr <- server.ListenAndServe()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("stopping scheduler")
	scheduler.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown failed", zap.Error(err))
	}

	logger.Info("shutdown complete")
	return nil
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	switch strings.ToLower(level) {
	case "debug":
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info", "":
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		cfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	return cfg.Build()
}

func newRedisClient(url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}
