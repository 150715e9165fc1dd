// Package referral implements the invite lifecycle: issuing capacity-limited
// invite links, attributing joins to them and publishing progress.
package referral

import "go.uber.org/zap"

// Service bundles the referral components sharing one platform and store.
type Service struct {
	Issuer      *Issuer
	Correlator  *Correlator
	Broadcaster *Broadcaster
	Invites     InviteStore
}

// New wires the referral components together.
func New(
	platform Platform, invites InviteStore, meta MetaStore, locker Locker, settings Settings, logger *zap.Logger,
) *Service {
	logger = logger.Named("referral")
	broadcaster := NewBroadcaster(platform, invites, meta, locker, settings, logger)

	return &Service{
		Issuer:      NewIssuer(platform, invites, broadcaster, settings, logger),
		Correlator:  NewCorrelator(platform, invites, broadcaster, settings, logger),
		Broadcaster: broadcaster,
		Invites:     invites,
	}
}
