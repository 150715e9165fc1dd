package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/robalyx/sharegate/internal/database/dbretry"
	"github.com/robalyx/sharegate/internal/database/types"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// InviteModel handles database operations for invite records.
type InviteModel struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewInvite creates an InviteModel with database access.
func NewInvite(db *bun.DB, logger *zap.Logger) *InviteModel {
	return &InviteModel{
		db:     db,
		logger: logger.Named("db_invite"),
	}
}

// Insert records a freshly issued invite with zero uses.
// A token that is already tracked is left untouched and reported as not created.
func (r *InviteModel) Insert(ctx context.Context, referrerID int64, referrerName, token string) (bool, error) {
	invite := &types.Invite{
		ReferrerID:   referrerID,
		ReferrerName: referrerName,
		InviteToken:  token,
		Uses:         0,
		Active:       true,
		CreatedAt:    time.Now().UTC(),
	}

	return dbretry.Operation(ctx, func(ctx context.Context) (bool, error) {
		result, err := r.db.NewInsert().
			Model(invite).
			On("CONFLICT (invite_token) DO NOTHING").
			Returning("NULL").
			Exec(ctx)
		if err != nil {
			return false, fmt.Errorf("failed to insert invite: %w (referrerID=%d)", err, referrerID)
		}

		affected, err := result.RowsAffected()
		if err != nil {
			return false, fmt.Errorf("failed to read affected rows: %w", err)
		}

		if affected == 0 {
			r.logger.Debug("Invite token already tracked",
				zap.Int64("referrerID", referrerID),
				zap.String("token", token))
		}

		return affected > 0, nil
	})
}

// RecordUse counts one join through the active invite matching token.
// The increment and the deactivation at the unlock threshold happen in one
// guarded statement, so concurrent joins on the same token are never lost
// and uses never exceeds the threshold.
// Returns types.ErrInviteNotTracked when no active invite matches.
func (r *InviteModel) RecordUse(ctx context.Context, token string) (*types.UseResult, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) (*types.UseResult, error) {
		var result types.UseResult

		err := r.db.NewRaw(`
			UPDATE invites
			SET uses = uses + 1,
				active = (uses + 1 < ?)
			WHERE invite_token = ? AND active
			RETURNING referrer_id, referrer_name, uses, active`,
			types.UnlockThreshold, token,
		).Scan(ctx, &result)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, types.ErrInviteNotTracked
			}
			return nil, fmt.Errorf("failed to record invite use: %w", err)
		}

		return &result, nil
	})
}

// List returns every invite, newest first.
func (r *InviteModel) List(ctx context.Context) ([]*types.Invite, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) ([]*types.Invite, error) {
		var invites []*types.Invite

		err := r.db.NewSelect().
			Model(&invites).
			OrderExpr("created_at DESC, id DESC").
			Scan(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list invites: %w", err)
		}

		return invites, nil
	})
}

// LatestFor returns the most recently created invite of a referrer.
// Returns types.ErrInviteNotTracked when the referrer never generated one.
func (r *InviteModel) LatestFor(ctx context.Context, referrerID int64) (*types.Invite, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) (*types.Invite, error) {
		var invite types.Invite

		err := r.db.NewSelect().
			Model(&invite).
			Where("referrer_id = ?", referrerID).
			OrderExpr("created_at DESC, id DESC").
			Limit(1).
			Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, types.ErrInviteNotTracked
			}
			return nil, fmt.Errorf("failed to get latest invite: %w (referrerID=%d)", err, referrerID)
		}

		return &invite, nil
	})
}

// GetByToken returns the invite issued with token, active or not.
func (r *InviteModel) GetByToken(ctx context.Context, token string) (*types.Invite, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) (*types.Invite, error) {
		var invite types.Invite

		err := r.db.NewSelect().
			Model(&invite).
			Where("invite_token = ?", token).
			Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, types.ErrInviteNotTracked
			}
			return nil, fmt.Errorf("failed to get invite: %w", err)
		}

		return &invite, nil
	})
}
