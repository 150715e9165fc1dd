package referral

import (
	"context"
	"errors"
	"fmt"

	"github.com/robalyx/sharegate/internal/database/types"
	"github.com/sourcegraph/conc"
	"go.uber.org/zap"
)

// Correlator attributes joins to the invite they came through.
type Correlator struct {
	platform    Platform
	invites     InviteStore
	broadcaster *Broadcaster
	settings    Settings
	logger      *zap.Logger
}

// NewCorrelator creates a Correlator.
func NewCorrelator(
	platform Platform, invites InviteStore, broadcaster *Broadcaster, settings Settings, logger *zap.Logger,
) *Correlator {
	return &Correlator{
		platform:    platform,
		invites:     invites,
		broadcaster: broadcaster,
		settings:    settings,
		logger:      logger.Named("correlator"),
	}
}

// HandleJoin counts one join through the invite identified by token.
// Joins through unknown or finished invites are ignored. Only store
// failures are returned; notification and publish failures are logged.
func (c *Correlator) HandleJoin(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}

	result, err := c.invites.RecordUse(ctx, token)
	if err != nil {
		if errors.Is(err, types.ErrInviteNotTracked) {
			c.logger.Debug("Join through untracked invite", zap.String("token", token))
			return nil
		}
		return fmt.Errorf("failed to record join: %w", err)
	}

	c.logger.Info("Counted join",
		zap.Int64("referrerID", result.ReferrerID),
		zap.Int("uses", result.Uses),
		zap.Bool("active", result.Active))

	var wg conc.WaitGroup
	wg.Go(func() {
		c.notify(ctx, result)
	})
	wg.Go(func() {
		c.broadcaster.Refresh(ctx)
	})
	wg.Wait()

	return nil
}

// notify sends the referrer their progress and, once unlocked, the protected link.
// The unlock notice is sent even when the progress notice fails.
func (c *Correlator) notify(ctx context.Context, result *types.UseResult) {
	progress := fmt.Sprintf("Your invite now has %d/%d successful joins.", result.Uses, types.UnlockThreshold)
	if _, err := c.platform.SendMessage(ctx, result.ReferrerID, progress, nil); err != nil {
		c.logger.Debug("Could not notify referrer", zap.Int64("referrerID", result.ReferrerID), zap.Error(err))
	}

	if !result.Unlocked() {
		return
	}

	unlock := fmt.Sprintf("Congratulations, you invited %d members. Open the instructions: %s",
		types.UnlockThreshold, c.settings.PrivateLink)
	if _, err := c.platform.SendMessage(ctx, result.ReferrerID, unlock, nil); err != nil {
		c.logger.Debug("Could not send unlock notice", zap.Int64("referrerID", result.ReferrerID), zap.Error(err))
	}
}
