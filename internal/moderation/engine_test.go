package moderation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticketline/internal/database"
	"ticketline/internal/directory"
	"ticketline/internal/mirror"
	"ticketline/internal/models"
	"ticketline/internal/transport"
)

func engineWithUser(t *testing.T, user *models.User) (*Engine, *database.MockStore, *[]string) {
	t.Helper()

	notices := &[]string{}
	store := &database.MockStore{
		GetUserByThreadFunc: func(ctx context.Context, threadID int64) (*models.User, error) {
			if user.ThreadID != nil && *user.ThreadID == threadID {
				u := *user
				return &u, nil
			}
			return nil, database.ErrNotFound
		},
		IncrementWarnFunc: func(ctx context.Context, id, adminID int64, reason string, at time.Time) (int, error) {
			user.WarnCount++
			return user.WarnCount, nil
		},
		SetBanFunc: func(ctx context.Context, id int64, banned bool, until *time.Time, reason string) error {
			user.IsBanned = banned
			user.BanUntil = until
			user.BanReason = reason
			return nil
		},
	}
	tr := &transport.MockTransport{
		NotifyFunc: func(ctx context.Context, userID int64, text string) error {
			*notices = append(*notices, text)
			return nil
		},
	}
	dir := directory.NewService(store, mirror.Disabled{})
	return NewEngine(dir, tr), store, notices
}

func TestWarnEscalatesToPermanentBan(t *testing.T) {
	threadID := int64(77)
	user := &models.User{ID: 1, AnonID: "USER-AAAAA", ThreadID: &threadID, IsActive: true}
	engine, _, notices := engineWithUser(t, user)

	for i := 1; i < models.WarnThreshold; i++ {
		out, err := engine.Warn(context.Background(), threadID, 99, "spam")
		require.NoError(t, err)
		assert.Equal(t, i, out.WarnCount)
		assert.False(t, out.AutoBanned)
	}

	out, err := engine.Warn(context.Background(), threadID, 99, "spam")
	require.NoError(t, err)
	assert.Equal(t, models.WarnThreshold, out.WarnCount)
	assert.True(t, out.AutoBanned)
	assert.True(t, user.IsBanned)
	assert.Nil(t, user.BanUntil, "threshold ban must be permanent")
	assert.Len(t, *notices, models.WarnThreshold)
}

func TestWarnPastThresholdDoesNotRestack(t *testing.T) {
	threadID := int64(77)
	user := &models.User{
		ID: 1, AnonID: "USER-AAAAA", ThreadID: &threadID,
		WarnCount: models.WarnThreshold, IsBanned: true, BanReason: autoBanReason,
	}
	engine, _, _ := engineWithUser(t, user)

	out, err := engine.Warn(context.Background(), threadID, 99, "again")
	require.NoError(t, err)
	assert.Equal(t, models.WarnThreshold+1, out.WarnCount)
	assert.False(t, out.AutoBanned, "already banned users are not banned again")
}

func TestBanTimed(t *testing.T) {
	threadID := int64(5)
	user := &models.User{ID: 2, AnonID: "USER-BBBBB", ThreadID: &threadID}
	engine, _, notices := engineWithUser(t, user)

	now := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	engine.SetClock(func() time.Time { return now })

	out, err := engine.Ban(context.Background(), threadID, 99, "1h30m", "flood")
	require.NoError(t, err)
	assert.False(t, out.Permanent)
	assert.Equal(t, now.Add(90*time.Minute), out.Until)
	require.NotNil(t, user.BanUntil)
	assert.Equal(t, "flood", user.BanReason)
	require.Len(t, *notices, 1)
	assert.Contains(t, (*notices)[0], "1h 30m")
	assert.Contains(t, (*notices)[0], "flood")
}

func TestBanPermanent(t *testing.T) {
	threadID := int64(5)
	user := &models.User{ID: 2, AnonID: "USER-BBBBB", ThreadID: &threadID}
	engine, _, _ := engineWithUser(t, user)

	out, err := engine.Ban(context.Background(), threadID, 99, "permanent", "abuse")
	require.NoError(t, err)
	assert.True(t, out.Permanent)
	assert.True(t, user.IsBanned)
	assert.Nil(t, user.BanUntil)
}

func TestBanRejectsBadDuration(t *testing.T) {
	threadID := int64(5)
	user := &models.User{ID: 2, AnonID: "USER-BBBBB", ThreadID: &threadID}
	engine, _, _ := engineWithUser(t, user)

	_, err := engine.Ban(context.Background(), threadID, 99, "soon", "")
	var invalid *InvalidDurationError
	assert.ErrorAs(t, err, &invalid)
	assert.False(t, user.IsBanned)
}

func TestUnban(t *testing.T) {
	threadID := int64(5)
	until := time.Now().Add(time.Hour)
	user := &models.User{ID: 2, AnonID: "USER-BBBBB", ThreadID: &threadID, IsBanned: true, BanUntil: &until}
	engine, _, notices := engineWithUser(t, user)

	_, err := engine.Unban(context.Background(), threadID, 99)
	require.NoError(t, err)
	assert.False(t, user.IsBanned)
	assert.Nil(t, user.BanUntil)
	require.Len(t, *notices, 1)
	assert.Contains(t, (*notices)[0], "unbanned")
}

func TestModerationUnknownThread(t *testing.T) {
	user := &models.User{ID: 2, AnonID: "USER-BBBBB"}
	engine, _, _ := engineWithUser(t, user)

	_, err := engine.Warn(context.Background(), 404, 99, "")
	assert.ErrorIs(t, err, directory.ErrUserNotFound)
}
