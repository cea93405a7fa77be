package gormstore

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticketline/internal/database"
	"ticketline/internal/models"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func seedUser(t *testing.T, store *Store, id int64, anonID string) *models.User {
	t.Helper()
	user := &models.User{
		ID:        id,
		AnonID:    anonID,
		IsActive:  true,
		CreatedAt: time.Now(),
		LastSeen:  time.Now(),
	}
	require.NoError(t, store.CreateUser(context.Background(), user))
	return user
}

func TestUserRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	seedUser(t, store, 1, "USER-AAAAA")

	user, err := store.GetUserByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "USER-AAAAA", user.AnonID)
	assert.True(t, user.IsActive)
	assert.Zero(t, user.WarnCount)

	_, err = store.GetUserByID(ctx, 2)
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestAnonIDUnique(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	seedUser(t, store, 1, "USER-AAAAA")
	err := store.CreateUser(ctx, &models.User{ID: 2, AnonID: "USER-AAAAA"})
	assert.Error(t, err, "duplicate anon id must be rejected")
}

func TestThreadMapping(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	seedUser(t, store, 1, "USER-AAAAA")
	seedUser(t, store, 2, "USER-BBBBB")

	threadID := int64(500)
	require.NoError(t, store.SetThread(ctx, 1, &threadID))

	user, err := store.GetUserByThread(ctx, 500)
	require.NoError(t, err)
	assert.Equal(t, int64(1), user.ID)

	// A thread belongs to exactly one user.
	err = store.SetThread(ctx, 2, &threadID)
	assert.Error(t, err)

	// Clearing the mapping frees the lookup; multiple users may have
	// no thread at once.
	require.NoError(t, store.SetThread(ctx, 1, nil))
	_, err = store.GetUserByThread(ctx, 500)
	assert.ErrorIs(t, err, database.ErrNotFound)
	require.NoError(t, store.SetThread(ctx, 2, nil))
}

func TestSetBan(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	seedUser(t, store, 1, "USER-AAAAA")
	until := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	require.NoError(t, store.SetBan(ctx, 1, true, &until, "flood"))

	user, err := store.GetUserByID(ctx, 1)
	require.NoError(t, err)
	assert.True(t, user.IsBanned)
	require.NotNil(t, user.BanUntil)
	assert.Equal(t, until.Unix(), user.BanUntil.Unix())
	assert.Equal(t, "flood", user.BanReason)

	require.NoError(t, store.SetBan(ctx, 1, false, nil, ""))
	user, err = store.GetUserByID(ctx, 1)
	require.NoError(t, err)
	assert.False(t, user.IsBanned)
	assert.Nil(t, user.BanUntil)
}

func TestIncrementWarnAtomicity(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	seedUser(t, store, 1, "USER-AAAAA")

	const warns = 10
	var wg sync.WaitGroup
	for i := 0; i < warns; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.IncrementWarn(ctx, 1, 99, "spam", time.Now())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	user, err := store.GetUserByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, warns, user.WarnCount)

	records, err := store.RecentWarns(ctx, 1, warns+1)
	require.NoError(t, err)
	assert.Len(t, records, warns)
}

func TestIncrementWarnUnknownUser(t *testing.T) {
	store := openTestStore(t)
	_, err := store.IncrementWarn(context.Background(), 404, 99, "", time.Now())
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestListActiveUserIDs(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	seedUser(t, store, 1, "USER-AAAAA")
	seedUser(t, store, 2, "USER-BBBBB")
	seedUser(t, store, 3, "USER-CCCCC")

	require.NoError(t, store.MarkInactive(ctx, 2))
	require.NoError(t, store.SetBan(ctx, 3, true, nil, ""))

	ids, err := store.ListActiveUserIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, ids)
}

func TestReferralsIgnoreDuplicates(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	now := time.Now()
	require.NoError(t, store.AddReferral(ctx, 7, 42, now))
	require.NoError(t, store.AddReferral(ctx, 7, 42, now))
	require.NoError(t, store.AddReferral(ctx, 7, 43, now))

	count, err := store.CountReferrals(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestReviewLifecycle(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	review := &models.Review{UserID: 1, Alias: "alice", Rating: 5, Comment: "great", CreatedAt: time.Now()}
	require.NoError(t, store.CreateReview(ctx, review))
	require.NotZero(t, review.ID)

	got, err := store.GetReview(ctx, review.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Alias)

	require.NoError(t, store.DeleteReview(ctx, review.ID))
	_, err = store.GetReview(ctx, review.ID)
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestReviewStats(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	for i, rating := range []int{5, 4, 5} {
		require.NoError(t, store.CreateReview(ctx, &models.Review{
			UserID: int64(i), Alias: "alice", Rating: rating, CreatedAt: time.Now(),
		}))
	}
	require.NoError(t, store.CreateReview(ctx, &models.Review{
		UserID: 9, Alias: "bob", Rating: 1, CreatedAt: time.Now(),
	}))

	stats, err := store.ReviewStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), stats.TotalCount)
	assert.InDelta(t, 3.75, stats.AvgRating, 0.001)

	// Only aliases with at least three reviews chart.
	require.Len(t, stats.TopAliases, 1)
	assert.Equal(t, "alice", stats.TopAliases[0].Alias)
	assert.InDelta(t, 14.0/3, stats.TopAliases[0].AvgRating, 0.001)

	latest, err := store.LatestReviews(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, latest, 2)
}

func TestSystemStats(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	now := time.Now()

	seedUser(t, store, 1, "USER-AAAAA")
	seedUser(t, store, 2, "USER-BBBBB")
	require.NoError(t, store.SetBan(ctx, 2, true, nil, ""))
	require.NoError(t, store.IncrementMessageCount(ctx, 1, now))
	require.NoError(t, store.IncrementMessageCount(ctx, 1, now))
	require.NoError(t, store.AddReferral(ctx, 1, 2, now))

	stats, err := store.SystemStats(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.TotalUsers)
	assert.Equal(t, int64(1), stats.ActiveUsers)
	assert.Equal(t, int64(1), stats.BannedUsers)
	assert.Equal(t, int64(2), stats.NewToday)
	assert.Equal(t, int64(2), stats.TotalMessages)
	assert.InDelta(t, 2.0, stats.AvgMessages, 0.001)
	assert.Equal(t, int64(1), stats.TotalReferrals)
	require.Len(t, stats.TopReferrers, 1)
	assert.Equal(t, "USER-AAAAA", stats.TopReferrers[0].AnonID)
}

func TestBroadcastRunPersists(t *testing.T) {
	store := openTestStore(t)
	run := &models.BroadcastRun{
		AdminID: 99, ContentKind: "text", Summary: "hello",
		SentCount: 10, FailedCount: 1, ElapsedMS: 1234, CreatedAt: time.Now(),
	}
	require.NoError(t, store.CreateBroadcastRun(context.Background(), run))
	assert.NotZero(t, run.ID)
}
