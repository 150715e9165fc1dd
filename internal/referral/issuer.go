package referral

import (
	"context"
	"fmt"
	"time"

	"github.com/robalyx/sharegate/internal/database/types"
	"go.uber.org/zap"
)

// Member is the community member asking for an invite.
type Member struct {
	ID          int64
	DisplayName string
}

// Issuer creates personal invite links and records them.
type Issuer struct {
	platform    Platform
	invites     InviteStore
	broadcaster *Broadcaster
	settings    Settings
	logger      *zap.Logger
}

// NewIssuer creates an Issuer.
func NewIssuer(
	platform Platform, invites InviteStore, broadcaster *Broadcaster, settings Settings, logger *zap.Logger,
) *Issuer {
	return &Issuer{
		platform:    platform,
		invites:     invites,
		broadcaster: broadcaster,
		settings:    settings,
		logger:      logger.Named("issuer"),
	}
}

// Generate creates an invite link limited to two joins for member and returns its URL.
// Nothing is stored when the platform refuses the link.
func (i *Issuer) Generate(ctx context.Context, member Member) (string, error) {
	name := fmt.Sprintf("share_for_%d_%d", member.ID, time.Now().Unix())

	link, err := i.platform.CreateChatInviteLink(ctx, i.settings.ChatID, name, types.InviteCapacity)
	if err != nil {
		i.logger.Error("Failed to create invite link",
			zap.Int64("memberID", member.ID),
			zap.Error(err))
		return "", fmt.Errorf("%w: %w", ErrCreationFailed, err)
	}

	// The link exists on the platform now, so store failures do not fail the request
	created, err := i.invites.Insert(ctx, member.ID, member.DisplayName, link.InviteLink)
	switch {
	case err != nil:
		i.logger.Error("Failed to store invite",
			zap.Int64("memberID", member.ID),
			zap.String("token", link.InviteLink),
			zap.Error(err))
	case !created:
		i.logger.Warn("Invite token was already tracked",
			zap.Int64("memberID", member.ID),
			zap.String("token", link.InviteLink))
	default:
		i.logger.Info("Issued invite",
			zap.Int64("memberID", member.ID),
			zap.String("name", name))
	}

	i.broadcaster.Refresh(ctx)

	return link.InviteLink, nil
}
