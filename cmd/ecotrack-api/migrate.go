package main

import (
	"context"
	"fmt"

	"github.com/JonnyWalker81/ecotrack/backend/internal/config"
	"github.com/JonnyWalker81/ecotrack/backend/internal/logger"
	"github.com/JonnyWalker81/ecotrack/backend/internal/repository"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the database schema",
	Long:  `Create or upgrade the activities and challenges tables for the configured store.`,
	RunE:  runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	setupLogger(cfg)

	if cfg.Store.Driver == "memory" {
		logger.Info("memory store is migrated on startup, nothing to do")
		return nil
	}

	db, _, err := openDatabase(context.Background(), cfg.Store)
	if err != nil {
		return err
	}
	defer db.Close()

	logger.Info("schema up to date",
		logger.String("driver", cfg.Store.Driver),
		logger.Int("version", repository.SchemaVersion),
	)
	return nil
}
