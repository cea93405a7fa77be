package ticket

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

// harness records transport traffic around a single-user store.
type harness struct {
	router   *Router
	user     *models.User
	threads  []string              // created thread titles
	posts    map[int64][]string    // thread id -> relayed text
	sent     []string              // texts copied to the user
	marks    []transport.Sentiment // reactions set
	inactive bool
}

func newHarness(t *testing.T, user *models.User) *harness {
	t.Helper()
	h := &harness{user: user, posts: map[int64][]string{}}

	store := &database.MockStore{
		GetUserByThreadFunc: func(ctx context.Context, threadID int64) (*models.User, error) {
			if user.ThreadID != nil && *user.ThreadID == threadID {
				return user, nil
			}
			return nil, database.ErrNotFound
		},
		SetThreadFunc: func(ctx context.Context, id int64, threadID *int64) error {
			user.ThreadID = threadID
			return nil
		},
		IncrementMessageCountFunc: func(ctx context.Context, id int64, at time.Time) error {
			return nil
		},
		MarkInactiveFunc: func(ctx context.Context, id int64) error {
			h.inactive = true
			user.IsActive = false
			return nil
		},
	}

	tr := &transport.MockTransport{
		CreateThreadFunc: func(ctx context.Context, title string) (int64, error) {
			h.threads = append(h.threads, title)
			return int64(100 + len(h.threads)), nil
		},
		CopyToThreadFunc: func(ctx context.Context, threadID int64, header string, content transport.Content) (transport.MessageRef, error) {
			h.posts[threadID] = append(h.posts[threadID], content.Text)
			return transport.MessageRef{ChatID: -1, MessageID: len(h.posts[threadID])}, nil
		},
		CopyToUserFunc: func(ctx context.Context, userID int64, content transport.Content) (transport.MessageRef, error) {
			h.sent = append(h.sent, content.Text)
			return transport.MessageRef{ChatID: userID, MessageID: len(h.sent)}, nil
		},
		SetReactionFunc: func(ctx context.Context, ref transport.MessageRef, sentiment transport.Sentiment) error {
			h.marks = append(h.marks, sentiment)
			return nil
		},
	}

	dir := directory.NewService(store, mirror.Disabled{})
	h.router = NewRouter(dir, tr)
	return h
}

func content(text string) transport.Content {
	c := transport.TextContent(text)
	c.Origin = transport.MessageRef{ChatID: 10, MessageID: 1}
	return c
}

func TestOpenTicketCreatesThread(t *testing.T) {
	user := &models.User{ID: 10, AnonID: "USER-AAAAA"}
	h := newHarness(t, user)

	err := h.router.OpenTicket(context.Background(), user, "Payment", content("charged twice"))
	require.NoError(t, err)

	require.Len(t, h.threads, 1)
	assert.Equal(t, "Payment | USER-AAAAA", h.threads[0])
	require.NotNil(t, user.ThreadID)
	assert.Equal(t, int64(101), *user.ThreadID)

	posts := h.posts[101]
	require.Len(t, posts, 2, "summary card plus the opening message")
	assert.Contains(t, posts[0], "USER-AAAAA")
	assert.Contains(t, posts[0], "Payment")
	assert.Equal(t, "charged twice", posts[1])
}

func TestOpenTicketSupersedesPrevious(t *testing.T) {
	old := int64(50)
	user := &models.User{ID: 10, AnonID: "USER-AAAAA", ThreadID: &old}
	h := newHarness(t, user)

	err := h.router.OpenTicket(context.Background(), user, "Question", content("hello"))
	require.NoError(t, err)

	require.Len(t, h.posts[old], 1, "old thread gets a closure notice")
	assert.Contains(t, h.posts[old][0], "closed")
	require.NotNil(t, user.ThreadID)
	assert.NotEqual(t, old, *user.ThreadID)
}

func TestOpenTicketKeepsStateOnCreateFailure(t *testing.T) {
	user := &models.User{ID: 10, AnonID: "USER-AAAAA"}
	h := newHarness(t, user)
	h.router.transport.(*transport.MockTransport).CreateThreadFunc = func(ctx context.Context, title string) (int64, error) {
		return 0, &transport.NetworkError{Err: errors.New("timeout")}
	}

	err := h.router.OpenTicket(context.Background(), user, "Question", content("hello"))
	var ce *CreationError
	require.ErrorAs(t, err, &ce)
	assert.Nil(t, user.ThreadID)
}

func TestRelayToStaffRequiresTicket(t *testing.T) {
	user := &models.User{ID: 10, AnonID: "USER-AAAAA"}
	h := newHarness(t, user)

	err := h.router.RelayToStaff(context.Background(), user, content("hi"))
	assert.ErrorIs(t, err, ErrNoActiveTicket)
}

func TestRelayToStaffMarksDelivery(t *testing.T) {
	threadID := int64(60)
	user := &models.User{ID: 10, AnonID: "USER-AAAAA", ThreadID: &threadID}
	h := newHarness(t, user)

	require.NoError(t, h.router.RelayToStaff(context.Background(), user, content("hi")))
	assert.Equal(t, []string{"hi"}, h.posts[threadID])
	require.Len(t, h.marks, 1)
	assert.Equal(t, transport.SentimentPositive, h.marks[0])
}

func TestRelayToUserForbiddenDeactivates(t *testing.T) {
	threadID := int64(60)
	user := &models.User{ID: 10, AnonID: "USER-AAAAA", ThreadID: &threadID, IsActive: true}
	h := newHarness(t, user)
	h.router.transport.(*transport.MockTransport).CopyToUserFunc = func(ctx context.Context, userID int64, c transport.Content) (transport.MessageRef, error) {
		return transport.MessageRef{}, transport.ErrForbidden
	}

	err := h.router.RelayToUser(context.Background(), threadID, content("staff reply"))
	require.NoError(t, err, "forbidden is absorbed, not propagated")
	assert.True(t, h.inactive)
	require.Len(t, h.marks, 1)
	assert.Equal(t, transport.SentimentNegative, h.marks[0])
}

func TestRelayToUserUnknownThread(t *testing.T) {
	user := &models.User{ID: 10, AnonID: "USER-AAAAA"}
	h := newHarness(t, user)

	err := h.router.RelayToUser(context.Background(), 404, content("staff reply"))
	assert.ErrorIs(t, err, directory.ErrUserNotFound)
}

func TestCancelTicket(t *testing.T) {
	threadID := int64(60)
	user := &models.User{ID: 10, AnonID: "USER-AAAAA", ThreadID: &threadID}
	h := newHarness(t, user)

	require.NoError(t, h.router.CancelTicket(context.Background(), user))
	assert.Nil(t, user.ThreadID)
	require.Len(t, h.posts[threadID], 1)
	assert.Contains(t, h.posts[threadID][0], "closed")

	// Cancelling again is a no-op.
	require.NoError(t, h.router.CancelTicket(context.Background(), user))
}
