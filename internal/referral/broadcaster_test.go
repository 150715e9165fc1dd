package referral_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/robalyx/sharegate/internal/database/types"
	"github.com/robalyx/sharegate/internal/referral"
	"github.com/robalyx/sharegate/internal/telegram"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishCreatesOnceThenEdits(t *testing.T) {
	t.Parallel()
	svc, platform, db := newService(t)
	ctx := t.Context()

	require.NoError(t, svc.Broadcaster.Publish(ctx))
	require.Len(t, platform.groupMessages(), 1)
	assert.Equal(t, []int{1001}, platform.pinned)

	pinned, ok, err := db.Model().Meta().Get(ctx, types.MetaKeyPinnedMessage)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "1001", pinned)

	require.NoError(t, svc.Broadcaster.Publish(ctx))
	assert.Len(t, platform.groupMessages(), 1)
	assert.Equal(t, 1, platform.editCount())
	assert.Equal(t, 1001, platform.lastEdit().MessageID)
}

func TestPublishRecreatesWhenEditFails(t *testing.T) {
	t.Parallel()
	svc, platform, db := newService(t)
	ctx := t.Context()

	require.NoError(t, svc.Broadcaster.Publish(ctx))

	platform.editErr = &telegram.APIError{
		Method:      "editMessageText",
		Code:        http.StatusBadRequest,
		Description: "Bad Request: message to edit not found",
	}
	require.NoError(t, svc.Broadcaster.Publish(ctx))

	assert.Len(t, platform.groupMessages(), 2)
	assert.Equal(t, []int{1001, 1002}, platform.pinned)

	pinned, _, err := db.Model().Meta().Get(ctx, types.MetaKeyPinnedMessage)
	require.NoError(t, err)
	assert.Equal(t, "1002", pinned)
}

func TestPublishTreatsNotModifiedAsSuccess(t *testing.T) {
	t.Parallel()
	svc, platform, _ := newService(t)
	ctx := t.Context()

	require.NoError(t, svc.Broadcaster.Publish(ctx))

	platform.editErr = &telegram.APIError{
		Method:      "editMessageText",
		Code:        http.StatusBadRequest,
		Description: "Bad Request: message is not modified",
	}
	require.NoError(t, svc.Broadcaster.Publish(ctx))

	assert.Len(t, platform.groupMessages(), 1)
	assert.Equal(t, []int{1001}, platform.pinned)
}

func TestPublishRecreatesOnMalformedPinnedID(t *testing.T) {
	t.Parallel()
	svc, platform, db := newService(t)
	ctx := t.Context()

	require.NoError(t, db.Model().Meta().Put(ctx, types.MetaKeyPinnedMessage, "not-a-number"))
	require.NoError(t, svc.Broadcaster.Publish(ctx))

	assert.Equal(t, 0, platform.editCount())
	assert.Len(t, platform.groupMessages(), 1)
}

func TestPublishFailsWhenNoPathWorks(t *testing.T) {
	t.Parallel()
	svc, platform, db := newService(t)
	ctx := t.Context()

	platform.sendErr = errPlatform

	err := svc.Broadcaster.Publish(ctx)
	require.ErrorIs(t, err, referral.ErrPublishFailed)
	require.ErrorIs(t, err, errPlatform)

	_, ok, err := db.Model().Meta().Get(ctx, types.MetaKeyPinnedMessage)
	require.NoError(t, err)
	assert.False(t, ok)

	// Refresh swallows the same failure
	svc.Broadcaster.Refresh(ctx)
}

func TestBuildKeyboard(t *testing.T) {
	t.Parallel()

	invites := []*types.Invite{
		{ID: 3, ReferrerID: 1, ReferrerName: "alice", Uses: 2},
		{ID: 2, ReferrerID: 3, Uses: 1, Active: true},
		{ID: 1, ReferrerID: 5, ReferrerName: "carol", Uses: 3},
	}

	markup := referral.BuildKeyboard(invites, testPrivateLink)
	rows := markup.InlineKeyboard
	require.Len(t, rows, 6)

	assert.Equal(t, "Share to unlock Instructions (get your link)", rows[0][0].Text)
	assert.Equal(t, referral.GenerateAction, rows[0][0].CallbackData)

	assert.Equal(t, "alice: (2/2)", rows[1][0].Text)
	assert.Equal(t, "status:1", rows[1][0].CallbackData)
	assert.Equal(t, "Open de instructions for alice", rows[2][0].Text)
	assert.Equal(t, testPrivateLink, rows[2][0].URL)
	assert.Empty(t, rows[2][0].CallbackData)

	assert.Equal(t, "user_3: (1/2)", rows[3][0].Text)
	assert.Equal(t, "status:3", rows[3][0].CallbackData)

	// Display is capped at the threshold
	assert.Equal(t, "carol: (2/2)", rows[4][0].Text)
	assert.Equal(t, "Open de instructions for carol", rows[5][0].Text)
}

func TestBuildKeyboardWithoutInvites(t *testing.T) {
	t.Parallel()

	markup := referral.BuildKeyboard(nil, testPrivateLink)
	require.Len(t, markup.InlineKeyboard, 1)
	assert.Equal(t, referral.GenerateAction, markup.InlineKeyboard[0][0].CallbackData)
}

func TestLocalLockerIsExclusive(t *testing.T) {
	t.Parallel()
	locker := referral.NewLocalLocker()

	release, err := locker.Acquire(t.Context())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()

	_, err = locker.Acquire(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	release()

	release, err = locker.Acquire(t.Context())
	require.NoError(t, err)
	release()
}
