package main

import (
	"context"
	"fmt"
	"net"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/supplier-intake/intake-pipeline/internal/config"
	"github.com/supplier-intake/intake-pipeline/internal/store"
	"github.com/supplier-intake/intake-pipeline/pkg/log"
	"github.com/supplier-intake/intake-pipeline/pkg/migrations"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/gorm"
)

var rootCmd = &cobra.Command{
	Use:   "intake-api",
	Short: "Supplier intake pipeline",
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(templatesCmd)
}

// setup reads the configuration and installs the global logger. The returned func flushes it.
func setup() (*config.Config, func(), error) {
	cfg, err := config.New()
	if err != nil {
		return nil, nil, fmt.Errorf("reading configuration: %w", err)
	}

	logLvl, err := zap.ParseAtomicLevel(cfg.Service.LogLevel)
	if err != nil {
		logLvl = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}

	logger := log.InitLog(logLvl)
	undo := zap.ReplaceGlobals(logger)

	return cfg, func() {
		_ = logger.Sync()
		undo()
	}, nil
}

// openStore connects to the database and makes sure the schema is current.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	zap.S().Info("initializing data store")
	db, err := store.InitDB(cfg)
	if err != nil {
		return nil, fmt.Errorf("initializing data store: %w", err)
	}
	if err := migrate(ctx, cfg, db); err != nil {
		return nil, err
	}

	var opts []store.StoreOption
	if cfg.Redis.URL != "" {
		redisOpts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return nil, fmt.Errorf("parsing redis url: %w", err)
		}
		backing := store.NewStore(db).Snapshot()
		opts = append(opts, store.WithSnapshotStore(store.NewRedisSnapshotStore(redis.NewClient(redisOpts), cfg.Analysis.SnapshotTTL, backing)))
		zap.S().Info("analysis snapshots cached in redis")
	}
	return store.NewStore(db, opts...), nil
}

// migrate applies the goose migrations on postgres and derives the schema from the models otherwise.
func migrate(ctx context.Context, cfg *config.Config, db *gorm.DB) error {
	if cfg.Database.Type != "pgsql" {
		if err := store.NewStore(db).InitialMigration(ctx); err != nil {
			return fmt.Errorf("running initial migration: %w", err)
		}
		return nil
	}
	if err := migrations.MigrateStore(db, cfg.Service.MigrationFolder); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}

func newListener(address string) (net.Listener, error) {
	if address == "" {
		address = "localhost:0"
	}
	return net.Listen("tcp", address)
}
