package referral_test

import (
	"strings"
	"testing"

	"github.com/robalyx/sharegate/internal/referral"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReferralUnlocksAfterTwoJoins(t *testing.T) {
	t.Parallel()
	svc, platform, db := newService(t)
	ctx := t.Context()

	url, err := svc.Issuer.Generate(ctx, referral.Member{ID: 100, DisplayName: "alice"})
	require.NoError(t, err)
	require.NotEmpty(t, url)
	require.Len(t, platform.links, 1)
	assert.True(t, strings.HasPrefix(platform.links[0], "share_for_100_"))

	// Generating published the summary with alice at 0/2
	require.Len(t, platform.groupMessages(), 1)
	assert.Contains(t, buttonTexts(platform.groupMessages()[0].Markup), "alice: (0/2)")

	require.NoError(t, svc.Correlator.HandleJoin(ctx, url))
	assert.Equal(t, []string{"Your invite now has 1/2 successful joins."}, platform.directMessages(100))
	assert.Contains(t, buttonTexts(platform.lastEdit().Markup), "alice: (1/2)")

	require.NoError(t, svc.Correlator.HandleJoin(ctx, url))
	dms := platform.directMessages(100)
	require.Len(t, dms, 3)
	assert.Equal(t, "Your invite now has 2/2 successful joins.", dms[1])
	assert.Contains(t, dms[2], testPrivateLink)

	texts := buttonTexts(platform.lastEdit().Markup)
	assert.Contains(t, texts, "alice: (2/2)")
	assert.Contains(t, texts, "Open de instructions for alice")

	invite, err := db.Model().Invite().LatestFor(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, 2, invite.Uses)
	assert.False(t, invite.Active)

	// A third join through the finished link changes nothing
	require.NoError(t, svc.Correlator.HandleJoin(ctx, url))
	assert.Len(t, platform.directMessages(100), 3)

	invite, err = db.Model().Invite().LatestFor(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, 2, invite.Uses)
}

func TestGenerateFailureStoresNothing(t *testing.T) {
	t.Parallel()
	svc, platform, db := newService(t)
	ctx := t.Context()

	platform.createErr = errPlatform

	url, err := svc.Issuer.Generate(ctx, referral.Member{ID: 100, DisplayName: "alice"})
	require.ErrorIs(t, err, referral.ErrCreationFailed)
	require.ErrorIs(t, err, errPlatform)
	assert.Empty(t, url)

	invites, err := db.Model().Invite().List(ctx)
	require.NoError(t, err)
	assert.Empty(t, invites)
	assert.Empty(t, platform.groupMessages())
}

func TestGenerateSucceedsWhenPublishFails(t *testing.T) {
	t.Parallel()
	svc, platform, db := newService(t)
	ctx := t.Context()

	platform.sendErr = errPlatform

	url, err := svc.Issuer.Generate(ctx, referral.Member{ID: 7})
	require.NoError(t, err)

	invite, err := db.Model().Invite().LatestFor(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, url, invite.InviteToken)
	assert.Equal(t, "user_7", invite.Label())
}

func TestHandleJoinIgnoresUnknownTokens(t *testing.T) {
	t.Parallel()
	svc, platform, _ := newService(t)
	ctx := t.Context()

	require.NoError(t, svc.Correlator.HandleJoin(ctx, ""))
	require.NoError(t, svc.Correlator.HandleJoin(ctx, "https://t.me/+unknown"))

	assert.Empty(t, platform.sent)
	assert.Equal(t, 0, platform.editCount())
}

func TestNotificationFailureIsSwallowed(t *testing.T) {
	t.Parallel()
	svc, platform, db := newService(t)
	ctx := t.Context()

	url, err := svc.Issuer.Generate(ctx, referral.Member{ID: 100, DisplayName: "alice"})
	require.NoError(t, err)

	platform.dmErr = errPlatform

	require.NoError(t, svc.Correlator.HandleJoin(ctx, url))
	assert.Empty(t, platform.directMessages(100))

	invite, err := db.Model().Invite().LatestFor(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, 1, invite.Uses)
	assert.Contains(t, buttonTexts(platform.lastEdit().Markup), "alice: (1/2)")
}

func TestUnlockNoticeSurvivesProgressFailure(t *testing.T) {
	t.Parallel()
	svc, platform, _ := newService(t)
	ctx := t.Context()

	url, err := svc.Issuer.Generate(ctx, referral.Member{ID: 100, DisplayName: "alice"})
	require.NoError(t, err)
	require.NoError(t, svc.Correlator.HandleJoin(ctx, url))

	platform.mu.Lock()
	platform.dmFailures = 1
	platform.mu.Unlock()

	require.NoError(t, svc.Correlator.HandleJoin(ctx, url))

	dms := platform.directMessages(100)
	require.Len(t, dms, 2)
	assert.Equal(t, "Your invite now has 1/2 successful joins.", dms[0])
	assert.Equal(t, "Congratulations, you invited 2 members. Open the instructions: "+testPrivateLink, dms[1])
}
