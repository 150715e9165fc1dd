package types

import (
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
)

const (
	// InviteCapacity is the member limit every invite link is created with.
	InviteCapacity = 2
	// UnlockThreshold is the number of joins that deactivates an invite
	// and unlocks the protected resource for its referrer.
	UnlockThreshold = 2
)

// ErrInviteNotTracked is returned when no (active) invite record matches a lookup.
var ErrInviteNotTracked = errors.New("invite not tracked")

// Invite is one personal invite link issued to a referrer.
// Records are append-only: only Uses and Active change after creation.
type Invite struct {
	bun.BaseModel `bun:"table:invites,alias:invite"`

	ID           int64     `bun:",pk,autoincrement"                         json:"id"`           // Row identifier
	ReferrerID   int64     `bun:",notnull"                                  json:"referrerId"`   // Telegram user who generated the link
	ReferrerName string    `bun:",notnull,default:''"                       json:"referrerName"` // Username or full name at creation time
	InviteToken  string    `bun:",notnull,unique"                           json:"inviteToken"`  // Invite URL issued by Telegram
	Uses         int       `bun:",notnull,default:0"                        json:"uses"`         // Joins counted through this link
	Active       bool      `bun:",notnull,default:true"                     json:"active"`       // Still counting joins toward the goal
	CreatedAt    time.Time `bun:",nullzero,notnull,default:current_timestamp" json:"createdAt"`  // Creation time, used for ordering
}

// Label returns the name shown for the referrer in the summary.
func (i *Invite) Label() string {
	if i.ReferrerName != "" {
		return i.ReferrerName
	}

	return DefaultLabel(i.ReferrerID)
}

// DisplayUses returns the use count capped at the unlock threshold.
func (i *Invite) DisplayUses() int {
	return min(i.Uses, UnlockThreshold)
}

// Unlocked reports whether the referrer reached the unlock threshold.
func (i *Invite) Unlocked() bool {
	return i.Uses >= UnlockThreshold
}

// DefaultLabel is the fallback label for referrers without a name.
func DefaultLabel(referrerID int64) string {
	return fmt.Sprintf("user_%d", referrerID)
}

// UseResult is the state of an invite right after a join was counted.
type UseResult struct {
	ReferrerID   int64  `bun:"referrer_id"`
	ReferrerName string `bun:"referrer_name"`
	Uses         int    `bun:"uses"`
	Active       bool   `bun:"active"`
}

// Unlocked reports whether this use crossed the unlock threshold.
func (r *UseResult) Unlocked() bool {
	return r.Uses >= UnlockThreshold
}
