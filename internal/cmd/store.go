package cmd

import (
	"context"

	"github.com/riftlens/riftlens/internal/config"
	"github.com/riftlens/riftlens/internal/core/store"
	apperrors "github.com/riftlens/riftlens/internal/errors"
)

func loadConfig(ctx context.Context) (*config.Config, error) {
	cfg, err := config.Load(ctx, v)
	if err != nil {
		return nil, apperrors.Wrap(ctx, apperrors.CodeConfigInvalid, err, "invalid configuration")
	}
	return cfg, nil
}

func openStore(ctx context.Context, cfg config.StoreConfig) (*store.Store, error) {
	db, err := store.Open(ctx, cfg)
	if err != nil {
		return nil, apperrors.WrapDatabaseError(ctx, err, "open store")
	}

	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, apperrors.WrapDatabaseError(ctx, err, "migrate store")
	}

	return db, nil
}
