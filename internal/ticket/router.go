// Package ticket owns the support ticket lifecycle: opening threads,
// superseding stale ones and relaying content in both directions.
package ticket

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"ticketline/internal/directory"
	"ticketline/internal/metrics"
	"ticketline/internal/models"
	"ticketline/internal/transport"
)

// ErrNoActiveTicket is returned when a relay targets a user with no
// open support thread.
var ErrNoActiveTicket = errors.New("ticket: no active ticket")

// CreationError wraps a transport failure while opening a thread. The
// user keeps their previous state when this is returned.
type CreationError struct {
	Err error
}

func (e *CreationError) Error() string { return "ticket: create thread: " + e.Err.Error() }
func (e *CreationError) Unwrap() error { return e.Err }

// Router moves tickets and their content between users and the staff
// space.
type Router struct {
	dir       *directory.Service
	transport transport.Transport
}

// NewRouter wires the ticket router.
func NewRouter(dir *directory.Service, t transport.Transport) *Router {
	return &Router{dir: dir, transport: t}
}

// OpenTicket creates a fresh staff thread for the user under the given
// category and relays the opening message into it. An existing open
// thread is superseded: it receives a closure notice and the mapping
// moves to the new thread.
func (r *Router) OpenTicket(ctx context.Context, user *models.User, category string, content transport.Content) error {
	if user.ThreadID != nil {
		old := *user.ThreadID
		r.postToThread(ctx, old, "Ticket closed: the user opened a new request.")
		if err := r.dir.CloseThread(ctx, user); err != nil {
			return err
		}
	}

	title := category + " | " + user.AnonID
	threadID, err := r.transport.CreateThread(ctx, title)
	if err != nil {
		return &CreationError{Err: err}
	}
	if err := r.dir.OpenThread(ctx, user, threadID); err != nil {
		return err
	}
	metrics.TicketsOpened.Inc()
	log.Info().
		Int64("user_id", user.ID).
		Int64("thread_id", threadID).
		Str("category", category).
		Msg("ticket: opened")

	r.postToThread(ctx, threadID, summaryCard(user, category))

	return r.RelayToStaff(ctx, user, content)
}

// RelayToStaff copies the user's content into their open thread. The
// inbound message is marked with a positive reaction on success and a
// negative one on failure; reaction failures are logged, never fatal.
func (r *Router) RelayToStaff(ctx context.Context, user *models.User, content transport.Content) error {
	if user.ThreadID == nil {
		return ErrNoActiveTicket
	}

	header := user.AnonID
	_, err := r.transport.CopyToThread(ctx, *user.ThreadID, header, content)
	if err != nil {
		metrics.MessagesRelayed.WithLabelValues("user_to_staff", "failed").Inc()
		r.react(ctx, content.Origin, transport.SentimentNegative)
		return fmt.Errorf("ticket: relay to staff: %w", err)
	}

	if err := r.dir.MessageRelayed(ctx, user); err != nil {
		log.Warn().Err(err).Int64("user_id", user.ID).Msg("ticket: failed to count relayed message")
	}
	metrics.MessagesRelayed.WithLabelValues("user_to_staff", "sent").Inc()
	r.react(ctx, content.Origin, transport.SentimentPositive)
	return nil
}

// RelayToUser copies staff content from a thread to the user behind it.
// A forbidden error deactivates the user and is swallowed: staff see
// the negative marker, not an error.
func (r *Router) RelayToUser(ctx context.Context, threadID int64, content transport.Content) error {
	user, err := r.dir.LookupByThread(ctx, threadID)
	if err != nil {
		return err
	}

	_, err = r.transport.CopyToUser(ctx, user.ID, content)
	if err == nil {
		metrics.MessagesRelayed.WithLabelValues("staff_to_user", "sent").Inc()
		r.react(ctx, content.Origin, transport.SentimentPositive)
		return nil
	}

	metrics.MessagesRelayed.WithLabelValues("staff_to_user", "failed").Inc()
	r.react(ctx, content.Origin, transport.SentimentNegative)

	if transport.IsForbidden(err) {
		if derr := r.dir.MarkInactive(ctx, user); derr != nil {
			log.Error().Err(derr).Int64("user_id", user.ID).Msg("ticket: failed to deactivate user")
		}
		log.Info().Int64("user_id", user.ID).Msg("ticket: user blocked the bot, deactivated")
		return nil
	}
	return fmt.Errorf("ticket: relay to user %d: %w", user.ID, err)
}

// CancelTicket closes the user's open thread, posting a notice into it.
// Cancelling with no open thread is a no-op.
func (r *Router) CancelTicket(ctx context.Context, user *models.User) error {
	if user.ThreadID == nil {
		return nil
	}
	threadID := *user.ThreadID
	r.postToThread(ctx, threadID, "Ticket closed by the user.")
	if err := r.dir.CloseThread(ctx, user); err != nil {
		return err
	}
	log.Info().Int64("user_id", user.ID).Int64("thread_id", threadID).Msg("ticket: cancelled")
	return nil
}

// postToThread drops a plain text line into a staff thread. Failures
// are logged, never fatal.
func (r *Router) postToThread(ctx context.Context, threadID int64, text string) {
	if _, err := r.transport.CopyToThread(ctx, threadID, "", transport.TextContent(text)); err != nil {
		log.Warn().Err(err).Int64("thread_id", threadID).Msg("ticket: failed to post thread notice")
	}
}

func (r *Router) react(ctx context.Context, ref transport.MessageRef, s transport.Sentiment) {
	if ref.ChatID == 0 {
		return
	}
	if err := r.transport.SetReaction(ctx, ref, s); err != nil {
		log.Debug().Err(err).Int64("chat_id", ref.ChatID).Int("message_id", ref.MessageID).
			Msg("ticket: failed to set reaction")
	}
}

func summaryCard(user *models.User, category string) string {
	return fmt.Sprintf(
		"New ticket\nCategory: %s\nUser: %s\nID: %d\nMessages: %d\nWarnings: %d/%d",
		category, user.AnonID, user.ID, user.MessageCount, user.WarnCount, models.WarnThreshold,
	)
}
