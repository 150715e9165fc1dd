package migrations

import (
	"context"
	"fmt"

	"github.com/robalyx/sharegate/internal/database/types"
	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		models := []any{
			(*types.Meta)(nil),
			(*types.Invite)(nil),
		}

		for _, model := range models {
			if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
				return fmt.Errorf("failed to create table for %T: %w", model, err)
			}
		}

		// Status lookups read the newest invite per referrer
		_, err := db.NewCreateIndex().
			Model((*types.Invite)(nil)).
			Index("idx_invites_referrer_created").
			Column("referrer_id", "created_at").
			IfNotExists().
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to create invite index: %w", err)
		}

		return nil
	}, func(ctx context.Context, db *bun.DB) error {
		for _, model := range []any{(*types.Invite)(nil), (*types.Meta)(nil)} {
			if _, err := db.NewDropTable().Model(model).IfExists().Exec(ctx); err != nil {
				return fmt.Errorf("failed to drop table for %T: %w", model, err)
			}
		}

		return nil
	})
}
