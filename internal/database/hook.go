package database

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// Hook implements bun.QueryHook interface for logging queries with zap.
type Hook struct {
	logger *zap.Logger
}

// NewHook creates a new Hook with zap logger.
func NewHook(logger *zap.Logger) *Hook {
	return &Hook{logger: logger}
}

// BeforeQuery is a no-op; timing comes from the query event.
func (h *Hook) BeforeQuery(ctx context.Context, _ *bun.QueryEvent) context.Context {
	return ctx
}

// AfterQuery logs the query and its execution time.
func (h *Hook) AfterQuery(_ context.Context, event *bun.QueryEvent) {
	// Missing rows are an expected lookup outcome
	if event.Err != nil && !errors.Is(event.Err, sql.ErrNoRows) {
		h.logger.Warn("Query failed",
			zap.String("query", event.Query),
			zap.Duration("duration", time.Since(event.StartTime)),
			zap.Error(event.Err))
	} else {
		h.logger.Debug("Query executed",
			zap.String("query", event.Query),
			zap.Duration("duration", time.Since(event.StartTime)))
	}
}
