package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"research-assistant-be/internal/config"
	"research-assistant-be/internal/pkg/logger"
	"research-assistant-be/internal/repository/implementation"
	"research-assistant-be/pkg/database"
)

var errMissingDSN = errors.New("missing database connection string")

// Prepares the pgvector schema and registers the configured collection ahead
// of the first ingest, so the REST server can start against an empty database.
func main() {
	cfg := config.Load()
	log := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.LogLevel, cfg.App.Environment == "production")
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Error("Migrate", "Migration failed", map[string]interface{}{"error": err.Error()})
		log.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config, log logger.ILogger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Database.Connection == "" {
		log.Error("Migrate", "DB_CONNECTION_STRING is not set", nil)
		return errMissingDSN
	}

	db, err := database.NewGormDBFromDSN(ctx, cfg.Database.Connection, log, true)
	if err != nil {
		return err
	}

	repo, err := implementation.NewChunkEmbeddingRepository(ctx, db, cfg.Index.Collection)
	if err != nil {
		return err
	}
	defer repo.Close()

	count, err := repo.Count(ctx)
	if err != nil {
		return err
	}
	log.Info("Migrate", "Migration complete", map[string]interface{}{
		"collection": cfg.Index.Collection,
		"chunks":     count,
	})
	return nil
}
