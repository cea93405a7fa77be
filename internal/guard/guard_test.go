package guard

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
)

func filterFor(user *models.User) (*Filter, *models.User) {
	store := &database.MockStore{
		GetUserByIDFunc: func(ctx context.Context, id int64) (*models.User, error) {
			if user != nil && user.ID == id {
				u := *user
				return &u, nil
			}
			return nil, database.ErrNotFound
		},
		SetBanFunc: func(ctx context.Context, id int64, banned bool, until *time.Time, reason string) error {
			user.IsBanned = banned
			user.BanUntil = until
			user.BanReason = reason
			return nil
		},
	}
	dir := directory.NewService(store, mirror.Disabled{})
	return NewFilter(dir), user
}

func TestCheckAllowsCleanUser(t *testing.T) {
	f, _ := filterFor(&models.User{ID: 1, AnonID: "USER-AAAAA", IsActive: true})

	dec, err := f.Check(context.Background(), 1, nil)
	require.NoError(t, err)
	assert.True(t, dec.Allow)
	require.NotNil(t, dec.User)
	assert.Equal(t, "USER-AAAAA", dec.User.AnonID)
}

func TestCheckRegistersUnknownUser(t *testing.T) {
	var created *models.User
	store := &database.MockStore{
		CreateUserFunc: func(ctx context.Context, user *models.User) error {
			created = user
			return nil
		},
	}
	f := NewFilter(directory.NewService(store, mirror.Disabled{}))

	dec, err := f.Check(context.Background(), 42, nil)
	require.NoError(t, err)
	assert.True(t, dec.Allow)
	require.NotNil(t, created)
	assert.Equal(t, int64(42), created.ID)
	assert.Regexp(t, `^USER-[A-Z0-9]{5}$`, created.AnonID)
}

func TestCheckRejectsPermanentBan(t *testing.T) {
	f, _ := filterFor(&models.User{ID: 1, IsBanned: true, BanReason: "abuse"})

	dec, err := f.Check(context.Background(), 1, nil)
	require.NoError(t, err)
	assert.False(t, dec.Allow)
	assert.Contains(t, dec.Notice, "permanently banned")
}

func TestCheckRejectsActiveTimedBan(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	until := now.Add(3*time.Hour + 25*time.Minute)
	f, _ := filterFor(&models.User{ID: 1, IsBanned: true, BanUntil: &until, BanReason: "flood"})
	f.SetClock(func() time.Time { return now })

	dec, err := f.Check(context.Background(), 1, nil)
	require.NoError(t, err)
	assert.False(t, dec.Allow)
	assert.Contains(t, dec.Notice, "3h 25m")
	assert.Contains(t, dec.Notice, "flood")
}

func TestCheckLiftsExpiredBan(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	until := now.Add(-time.Minute)
	f, user := filterFor(&models.User{ID: 1, IsBanned: true, BanUntil: &until})
	f.SetClock(func() time.Time { return now })

	dec, err := f.Check(context.Background(), 1, nil)
	require.NoError(t, err)
	assert.True(t, dec.Allow)
	assert.False(t, user.IsBanned, "expired ban must be lifted in storage")
	assert.Nil(t, user.BanUntil)
}
