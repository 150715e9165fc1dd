package referral

import (
	"context"

	"github.com/robalyx/sharegate/internal/database/types"
	"github.com/robalyx/sharegate/internal/telegram"
)

// Platform is the part of the Bot API the referral flow depends on.
type Platform interface {
	CreateChatInviteLink(ctx context.Context, chatID int64, name string, memberLimit int) (*telegram.ChatInviteLink, error)
	SendMessage(ctx context.Context, chatID int64, text string, markup *telegram.InlineKeyboardMarkup) (*telegram.Message, error)
	EditMessageText(ctx context.Context, chatID int64, messageID int, text string, markup *telegram.InlineKeyboardMarkup) error
	PinChatMessage(ctx context.Context, chatID int64, messageID int, silent bool) error
}

// InviteStore persists invite records.
type InviteStore interface {
	Insert(ctx context.Context, referrerID int64, referrerName, token string) (bool, error)
	RecordUse(ctx context.Context, token string) (*types.UseResult, error)
	List(ctx context.Context) ([]*types.Invite, error)
	LatestFor(ctx context.Context, referrerID int64) (*types.Invite, error)
}

// MetaStore persists process-wide values such as the pinned summary id.
type MetaStore interface {
	Put(ctx context.Context, key, value string) error
	Get(ctx context.Context, key string) (string, bool, error)
}

// Locker serializes summary publishes.
// Acquire blocks until the lock is held or ctx is done.
type Locker interface {
	Acquire(ctx context.Context) (release func(), err error)
}

// Settings holds the community the service operates on.
type Settings struct {
	// Chat where invites are created and the summary is pinned.
	ChatID int64
	// Protected resource unlocked by referrals.
	PrivateLink string
}
