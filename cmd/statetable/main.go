package main

import (
	"context"
	"crypto/sha256"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/openledger/statetable/internal/config"
	"github.com/openledger/statetable/internal/health"
	"github.com/openledger/statetable/internal/metrics"
	"github.com/openledger/statetable/internal/model"
	"github.com/openledger/statetable/internal/server"
	"github.com/openledger/statetable/internal/service"
	"github.com/openledger/statetable/internal/storage"
	"github.com/openledger/statetable/internal/util/workerpool"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// The devnode runs the table layer standalone over an in-memory store: it
// executes a small workload per block so the metrics and state hash can be
// observed locally. Real deployments embed the library.
func main() {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := initLogger(&cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Configuration loaded",
		zap.String("instance_id", cfg.Node.InstanceID),
		zap.Int("cache_shards", cfg.Table.CacheShards),
		zap.Int("commit_workers", cfg.Table.CommitWorkers))

	m := metrics.NewMetrics(cfg.Node.InstanceID)

	pool := workerpool.NewWorkerPool(&workerpool.Config{
		Name:       "commit",
		MaxWorkers: cfg.Table.CommitWorkers,
		QueueSize:  cfg.Table.CommitQueue,
		Logger:     logger,
	})

	store := storage.NewMemoryStore(logger)
	state := service.NewStateService(
		&service.StateConfig{CacheShards: cfg.Table.CacheShards},
		store, pool, m, logger,
	)

	checker := health.NewChecker(cfg.Node.InstanceID, logger)
	checker.Register("journal_depth", health.JournalDepthCheck(state.JournalDepth, 10000, 100000))
	checker.Register("goroutines", health.GoroutineCheck(10000))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go checker.Start(ctx)

	var metricsServer *server.MetricsServer
	if cfg.Metrics.Enabled {
		metricsServer = server.NewMetricsServer(
			&server.MetricsServerConfig{Port: cfg.Metrics.Port, Path: cfg.Metrics.Path},
			m, checker, logger,
		)
		if err := metricsServer.Start(); err != nil {
			logger.Fatal("Failed to start metrics server", zap.Error(err))
		}
	}

	go runWorkload(ctx, cfg, state, store, logger)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logger.Info("Shutting down", zap.String("signal", sig.String()))

	checker.SetReadiness(false)
	cancel()
	if metricsServer != nil {
		if err := metricsServer.Stop(); err != nil {
			logger.Error("Metrics server stop failed", zap.Error(err))
		}
	}
	if err := pool.Stop(10 * time.Second); err != nil {
		logger.Error("Worker pool stop failed", zap.Error(err))
	}
}

// loadConfig reads CONFIG_PATH or falls back to defaults
func loadConfig() (*config.Config, error) {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		return config.Default(), nil
	}
	return config.LoadConfig(path)
}

// initLogger builds the zap logger from the logging config
func initLogger(cfg *config.LoggingConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	zapCfg := zap.NewProductionConfig()
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	return zapCfg.Build()
}

// runWorkload executes one small block per interval against an accounts
// table: open, insert, update, hash, commit, verify
func runWorkload(ctx context.Context, cfg *config.Config, state *service.StateService, store *storage.MemoryStore, logger *zap.Logger) {
	info := &model.TableInfo{
		Name:   "accounts",
		Fields: []string{"name", "balance"},
	}

	ticker := time.NewTicker(cfg.Devnode.BlockInterval)
	defer ticker.Stop()

	var blockNum int64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		blockNum++
		blockHash := model.Digest(sha256.Sum256([]byte(cfg.Node.InstanceID + strconv.FormatInt(blockNum, 10))))
		state.SetBlock(blockHash, blockNum)

		accounts := state.OpenTable("accounts", info)
		key := fmt.Sprintf("acct-%d", blockNum%8)

		entry := model.NewEntry()
		entry.SetField("name", key)
		entry.SetField("balance", "0")
		accounts.Insert(ctx, key, entry, nil, true)

		patch := model.NewEntry()
		patch.SetField("balance", strconv.FormatInt(blockNum, 10))
		updated := accounts.Update(ctx, key, patch, model.NewCondition().EQ("name", key), nil)

		stateHash := state.Hash()
		written, err := state.Commit(ctx)
		if err != nil {
			logger.Error("Devnode block commit failed",
				zap.Int64("block_number", blockNum),
				zap.Error(err))
			continue
		}

		if err := store.Verify("accounts"); err != nil {
			logger.Error("Table checksum verification failed",
				zap.Int64("block_number", blockNum),
				zap.Error(err))
		}

		logger.Info("Devnode block executed",
			zap.Int64("block_number", blockNum),
			zap.String("state_hash", stateHash.Hex()),
			zap.Int("rows_updated", updated),
			zap.Int("keys_written", written))
	}
}
