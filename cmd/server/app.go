package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/Orelexa/gardrob/internal/config"
	"github.com/Orelexa/gardrob/internal/domain/repositories"
	"github.com/Orelexa/gardrob/internal/domain/valueobjects"
	infrarepos "github.com/Orelexa/gardrob/internal/infrastructure/repositories"
)

// store is every repository the server needs, backed by one database.
type store interface {
	repositories.ModelRepository
	repositories.WardrobeRepository
	repositories.OutfitRepository
}

func loadConfig(path string) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(path, os.Getenv)
	if err != nil {
		return nil, nil, err
	}
	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(cfg.Level))); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

// openStore connects the configured database. SQL stores are migrated when
// migrate is set. The returned close function is never nil.
func openStore(ctx context.Context, cfg config.DatabaseConfig, migrate bool) (store, func() error, error) {
	if cfg.Driver == "memory" {
		return infrarepos.NewMemoryStore(), func() error { return nil }, nil
	}

	s, err := infrarepos.OpenSQLStore(ctx, cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, nil, err
	}
	if migrate {
		if err := s.Migrate(ctx); err != nil {
			s.Close()
			return nil, nil, err
		}
	}
	return s, s.Close, nil
}

func poseCatalog(poses []string) (*valueobjects.PoseCatalog, error) {
	if len(poses) == 0 {
		return valueobjects.DefaultPoseCatalog(), nil
	}
	catalog, err := valueobjects.NewPoseCatalog(poses)
	if err != nil {
		return nil, fmt.Errorf("invalid pose list: %w", err)
	}
	return catalog, nil
}
