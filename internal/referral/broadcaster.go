package referral

import (
	"context"
	"fmt"
	"strconv"

	"github.com/robalyx/sharegate/internal/database/types"
	"github.com/robalyx/sharegate/internal/telegram"
	"go.uber.org/zap"
)

// Broadcaster keeps a single pinned summary message in sync with the invite records.
type Broadcaster struct {
	platform Platform
	invites  InviteStore
	meta     MetaStore
	locker   Locker
	settings Settings
	logger   *zap.Logger
}

// NewBroadcaster creates a Broadcaster.
func NewBroadcaster(
	platform Platform, invites InviteStore, meta MetaStore, locker Locker, settings Settings, logger *zap.Logger,
) *Broadcaster {
	return &Broadcaster{
		platform: platform,
		invites:  invites,
		meta:     meta,
		locker:   locker,
		settings: settings,
		logger:   logger.Named("broadcaster"),
	}
}

// Publish renders the summary and edits the remembered message in place.
// When no message is remembered or the edit fails, a new message is sent,
// pinned silently and remembered instead.
func (b *Broadcaster) Publish(ctx context.Context) error {
	release, err := b.locker.Acquire(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %w", ErrPublishFailed, err)
		}
		b.logger.Warn("Publishing summary without lock", zap.Error(err))
	} else {
		defer release()
	}

	markup, err := b.Render(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}

	pinned, ok, err := b.meta.Get(ctx, types.MetaKeyPinnedMessage)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}

	if ok {
		if b.edit(ctx, pinned, markup) {
			return nil
		}
	}

	return b.recreate(ctx, markup)
}

// Refresh publishes the summary and only logs failures.
func (b *Broadcaster) Refresh(ctx context.Context) {
	if err := b.Publish(ctx); err != nil {
		b.logger.Error("Failed to refresh summary", zap.Error(err))
	}
}

// edit updates the remembered message and reports whether it is current.
func (b *Broadcaster) edit(ctx context.Context, pinned string, markup *telegram.InlineKeyboardMarkup) bool {
	messageID, err := strconv.Atoi(pinned)
	if err != nil {
		b.logger.Warn("Ignoring malformed pinned message id", zap.String("value", pinned))
		return false
	}

	err = b.platform.EditMessageText(ctx, b.settings.ChatID, messageID, SummaryText, markup)
	switch {
	case err == nil:
		b.logger.Debug("Updated pinned summary", zap.Int("messageID", messageID))
		return true
	case telegram.IsMessageNotModified(err):
		b.logger.Debug("Pinned summary already current", zap.Int("messageID", messageID))
		return true
	default:
		b.logger.Warn("Could not edit pinned summary, recreating",
			zap.Int("messageID", messageID),
			zap.Error(err))
		return false
	}
}

// recreate sends, pins and remembers a new summary message.
func (b *Broadcaster) recreate(ctx context.Context, markup *telegram.InlineKeyboardMarkup) error {
	msg, err := b.platform.SendMessage(ctx, b.settings.ChatID, SummaryText, markup)
	if err != nil {
		return fmt.Errorf("%w: send: %w", ErrPublishFailed, err)
	}

	if err := b.platform.PinChatMessage(ctx, b.settings.ChatID, msg.MessageID, true); err != nil {
		return fmt.Errorf("%w: pin: %w", ErrPublishFailed, err)
	}

	if err := b.meta.Put(ctx, types.MetaKeyPinnedMessage, strconv.Itoa(msg.MessageID)); err != nil {
		return fmt.Errorf("%w: remember: %w", ErrPublishFailed, err)
	}

	b.logger.Info("Created and pinned new summary", zap.Int("messageID", msg.MessageID))

	return nil
}
