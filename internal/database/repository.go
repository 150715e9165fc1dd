package database

import (
	"github.com/robalyx/sharegate/internal/database/models"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// Repository provides access to all database models.
type Repository struct {
	invite *models.InviteModel
	meta   *models.MetaModel
}

// NewRepository creates a new repository instance with all models.
func NewRepository(db *bun.DB, logger *zap.Logger) *Repository {
	return &Repository{
		invite: models.NewInvite(db, logger),
		meta:   models.NewMeta(db, logger),
	}
}

// Invite returns the invite model repository.
func (r *Repository) Invite() *models.InviteModel {
	return r.invite
}

// Meta returns the meta model repository.
func (r *Repository) Meta() *models.MetaModel {
	return r.meta
}
