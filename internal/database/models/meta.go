package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/robalyx/sharegate/internal/database/dbretry"
	"github.com/robalyx/sharegate/internal/database/types"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// MetaModel handles the process-wide key/value table.
type MetaModel struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewMeta creates a MetaModel with database access.
func NewMeta(db *bun.DB, logger *zap.Logger) *MetaModel {
	return &MetaModel{
		db:     db,
		logger: logger.Named("db_meta"),
	}
}

// Put creates or overwrites the value stored under key.
func (r *MetaModel) Put(ctx context.Context, key, value string) error {
	return dbretry.NoResult(ctx, func(ctx context.Context) error {
		_, err := r.db.NewInsert().
			Model(&types.Meta{Key: key, Value: value}).
			On(`CONFLICT ("key") DO UPDATE`).
			Set(`"value" = EXCLUDED."value"`).
			Returning("NULL").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to put meta: %w (key=%s)", err, key)
		}

		return nil
	})
}

// Get returns the value stored under key and whether it exists.
func (r *MetaModel) Get(ctx context.Context, key string) (string, bool, error) {
	meta, err := dbretry.Operation(ctx, func(ctx context.Context) (*types.Meta, error) {
		var meta types.Meta

		err := r.db.NewSelect().
			Model(&meta).
			Where(`"key" = ?`, key).
			Scan(ctx)
		if err != nil {
			return nil, err
		}

		return &meta, nil
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to get meta: %w (key=%s)", err, key)
	}

	return meta.Value, true, nil
}
