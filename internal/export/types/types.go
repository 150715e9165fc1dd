package types

import "time"

// InviteRecord is one invite in an export.
type InviteRecord struct {
	Referrer     string    // Referrer ID, or its hash when pseudonymized
	ReferrerName string    // Empty when pseudonymized
	InviteToken  string    // Empty when pseudonymized
	Uses         int       // Joins counted through the invite
	Active       bool      // Still counting joins
	CreatedAt    time.Time // Creation time
}

// ReferrerRecord aggregates the invites of one referrer.
type ReferrerRecord struct {
	Referrer     string // Referrer ID, or its hash when pseudonymized
	ReferrerName string // Latest known name, empty when pseudonymized
	Invites      int    // Invites generated
	Joins        int    // Joins counted across all invites
	Unlocked     bool   // Any invite reached the unlock threshold
}
