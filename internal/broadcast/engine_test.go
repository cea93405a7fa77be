package broadcast

import (
	"context"
	"errors"
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

func audienceStore(ids []int64) (*database.MockStore, *[]int64, **models.BroadcastRun) {
	deactivated := &[]int64{}
	var run *models.BroadcastRun
	store := &database.MockStore{
		ListActiveUserIDsFunc: func(ctx context.Context) ([]int64, error) {
			return ids, nil
		},
		GetUserByIDFunc: func(ctx context.Context, id int64) (*models.User, error) {
			return &models.User{ID: id, IsActive: true}, nil
		},
		MarkInactiveFunc: func(ctx context.Context, id int64) error {
			*deactivated = append(*deactivated, id)
			return nil
		},
		CreateBroadcastRunFunc: func(ctx context.Context, r *models.BroadcastRun) error {
			run = r
			return nil
		},
	}
	return store, deactivated, &run
}

func TestRunCountsBlockedRecipients(t *testing.T) {
	ids := make([]int64, 100)
	for i := range ids {
		ids[i] = int64(i + 1)
	}
	store, deactivated, run := audienceStore(ids)

	tr := &transport.MockTransport{
		CopyToUserFunc: func(ctx context.Context, userID int64, c transport.Content) (transport.MessageRef, error) {
			if userID == 42 {
				return transport.MessageRef{}, transport.ErrForbidden
			}
			return transport.MessageRef{}, nil
		},
	}

	engine := NewEngine(directory.NewService(store, mirror.Disabled{}), tr, 100000)
	var progressCalls int
	res, err := engine.Run(context.Background(), 99, transport.TextContent("hello"), func(done, total int) {
		progressCalls++
		assert.Equal(t, 100, total)
	})
	require.NoError(t, err)

	assert.Equal(t, 100, res.Total)
	assert.Equal(t, 99, res.Sent)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, []int64{42}, *deactivated)
	assert.Equal(t, 10, progressCalls)

	require.NotNil(t, *run)
	assert.Equal(t, 99, (*run).SentCount)
	assert.Equal(t, 1, (*run).FailedCount)
	assert.Equal(t, "hello", (*run).Summary)
	assert.Equal(t, "text", (*run).ContentKind)
}

func TestRunRetriesAfterRateLimit(t *testing.T) {
	store, _, _ := audienceStore([]int64{1})

	var attempts int
	tr := &transport.MockTransport{
		CopyToUserFunc: func(ctx context.Context, userID int64, c transport.Content) (transport.MessageRef, error) {
			attempts++
			if attempts == 1 {
				return transport.MessageRef{}, &transport.RateLimitedError{RetryAfter: 2 * time.Second}
			}
			return transport.MessageRef{}, nil
		},
	}

	engine := NewEngine(directory.NewService(store, mirror.Disabled{}), tr, 100000)
	var slept []time.Duration
	engine.SetSleeper(func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	})

	res, err := engine.Run(context.Background(), 99, transport.TextContent("hi"), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Sent, "a retried recipient counts once")
	assert.Equal(t, 0, res.Failed)
	assert.Equal(t, 2, attempts)
	assert.Equal(t, []time.Duration{2 * time.Second}, slept)
}

func TestRunGivesUpAfterRepeatedRateLimits(t *testing.T) {
	store, _, _ := audienceStore([]int64{1})

	var attempts int
	tr := &transport.MockTransport{
		CopyToUserFunc: func(ctx context.Context, userID int64, c transport.Content) (transport.MessageRef, error) {
			attempts++
			return transport.MessageRef{}, &transport.RateLimitedError{RetryAfter: time.Second}
		},
	}

	engine := NewEngine(directory.NewService(store, mirror.Disabled{}), tr, 100000)
	engine.SetSleeper(func(ctx context.Context, d time.Duration) error { return nil })

	res, err := engine.Run(context.Background(), 99, transport.TextContent("hi"), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Sent)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, maxRateLimitRetries+1, attempts)
}

func TestRunContinuesPastOtherErrors(t *testing.T) {
	store, deactivated, _ := audienceStore([]int64{1, 2, 3})

	tr := &transport.MockTransport{
		CopyToUserFunc: func(ctx context.Context, userID int64, c transport.Content) (transport.MessageRef, error) {
			if userID == 2 {
				return transport.MessageRef{}, &transport.NetworkError{Err: errors.New("timeout")}
			}
			return transport.MessageRef{}, nil
		},
	}

	engine := NewEngine(directory.NewService(store, mirror.Disabled{}), tr, 100000)
	res, err := engine.Run(context.Background(), 99, transport.TextContent("hi"), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Sent)
	assert.Equal(t, 1, res.Failed)
	assert.Empty(t, *deactivated, "network errors do not deactivate users")
}

func TestRunStopsOnCancel(t *testing.T) {
	store, _, _ := audienceStore([]int64{1, 2, 3, 4, 5})
	ctx, cancel := context.WithCancel(context.Background())

	var sent int
	tr := &transport.MockTransport{
		CopyToUserFunc: func(ctx context.Context, userID int64, c transport.Content) (transport.MessageRef, error) {
			sent++
			if sent == 2 {
				cancel()
			}
			return transport.MessageRef{}, nil
		},
	}

	engine := NewEngine(directory.NewService(store, mirror.Disabled{}), tr, 100000)
	_, err := engine.Run(ctx, 99, transport.TextContent("hi"), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, sent, 5)
}

func TestThroughputNeverDividesByZero(t *testing.T) {
	res := Result{Sent: 10, Elapsed: 0}
	assert.Greater(t, res.Throughput(), 0.0)
}
