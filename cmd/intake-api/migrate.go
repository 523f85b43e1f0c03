package main

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/supplier-intake/intake-pipeline/internal/store"
	"go.uber.org/zap"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Migrate the db",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, flush, err := setup()
		if err != nil {
			return err
		}
		defer flush()

		zap.S().Info("migrating data store")
		db, err := store.InitDB(cfg)
		if err != nil {
			return err
		}
		if err := migrate(context.Background(), cfg, db); err != nil {
			zap.S().Errorw("migration failed", "error", err)
			return err
		}
		zap.S().Info("db migrated")
		return nil
	},
}
