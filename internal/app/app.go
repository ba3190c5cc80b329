// Package app assembles the configured store and engine for the CLI and server.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"tasktrail/internal/config"
	"tasktrail/internal/db"
	"tasktrail/internal/engine"
	"tasktrail/internal/engine/auth"
	"tasktrail/internal/migrate"
	"tasktrail/internal/repo"
	"tasktrail/internal/store"
	"tasktrail/internal/store/memstore"
	"tasktrail/internal/store/mongostore"
)

// OpenStore opens the backend named by cfg.Store.Driver and brings its schema up to date.
func OpenStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (store.Store, error) {
	switch cfg.Store.Driver {
	case config.DriverMemory:
		logger.Info("using in-memory store")
		return memstore.New(), nil
	case config.DriverMongo:
		s, err := mongostore.Open(ctx, cfg.Store.MongoURI, cfg.Store.MongoDatabase)
		if err != nil {
			return nil, err
		}
		logger.Info("connected to mongo", zap.String("database", cfg.Store.MongoDatabase))
		return s, nil
	case config.DriverSQLite, "":
		conn, err := db.Open(db.Config{Workspace: cfg.Store.Workspace})
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		applied, err := migrate.Migrate(ctx, conn)
		if err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		for _, name := range applied {
			logger.Info("applied migration", zap.String("name", name))
		}
		logger.Info("opened sqlite store", zap.String("path", db.Path(cfg.Store.Workspace)))
		return repo.Repo{DB: conn}, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// NewEngine builds the engine with token settings taken from cfg. The secret
// is only checked when a token is issued or parsed.
func NewEngine(cfg *config.Config, s store.Store, logger *zap.Logger) (engine.Engine, error) {
	ttl, err := cfg.TokenTTL()
	if err != nil {
		return engine.Engine{}, err
	}
	tokens := auth.Tokens{Secret: cfg.Auth.JWTSecret, TTL: ttl}
	return engine.New(s, tokens, logger), nil
}
