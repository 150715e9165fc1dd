package referral

import (
	"context"
	"fmt"
	"strconv"

	"github.com/robalyx/sharegate/internal/database/types"
	"github.com/robalyx/sharegate/internal/telegram"
)

const (
	// GenerateAction is the callback data of the share button.
	GenerateAction = "generate_link"
	// StatusPrefix prefixes the callback data of progress buttons.
	StatusPrefix = "status:"
)

// SummaryText is the body of the pinned summary message.
const SummaryText = "Please share this group to 2 other to unlock the button to get access to our request group:\n\n" +
	"Tap the button below to generate your personal invite link and share it with 2 friends."

const shareButtonText = "Share to unlock Instructions (get your link)"

// Render builds the summary keyboard from the current invite records.
func (b *Broadcaster) Render(ctx context.Context) (*telegram.InlineKeyboardMarkup, error) {
	invites, err := b.invites.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load invites: %w", err)
	}

	return BuildKeyboard(invites, b.settings.PrivateLink), nil
}

// BuildKeyboard lays out the share button followed by one progress row per
// invite, in the given order, and an unlock row for every finished invite.
func BuildKeyboard(invites []*types.Invite, privateLink string) *telegram.InlineKeyboardMarkup {
	rows := make([][]telegram.InlineKeyboardButton, 0, len(invites)+1)
	rows = append(rows, []telegram.InlineKeyboardButton{
		telegram.CallbackButton(shareButtonText, GenerateAction),
	})

	for _, invite := range invites {
		label := invite.Label()

		rows = append(rows, []telegram.InlineKeyboardButton{
			telegram.CallbackButton(
				fmt.Sprintf("%s: (%d/%d)", label, invite.DisplayUses(), types.UnlockThreshold),
				StatusPrefix+strconv.FormatInt(invite.ReferrerID, 10),
			),
		})

		if invite.Unlocked() {
			rows = append(rows, []telegram.InlineKeyboardButton{
				telegram.URLButton("Open de instructions for "+label, privateLink),
			})
		}
	}

	return &telegram.InlineKeyboardMarkup{InlineKeyboard: rows}
}
