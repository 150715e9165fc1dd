package types

import "github.com/uptrace/bun"

// MetaKeyPinnedMessage stores the message ID of the pinned summary.
const MetaKeyPinnedMessage = "pinned_message_id"

// Meta is a process-wide key/value entry.
type Meta struct {
	bun.BaseModel `bun:"table:meta,alias:meta"`

	Key   string `bun:"key,pk"`
	Value string `bun:"value,notnull"`
}
