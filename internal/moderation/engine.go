package moderation

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"ticketline/internal/directory"
	"ticketline/internal/models"
	"ticketline/internal/transport"
)

// autoBanReason marks bans applied when the warn counter reaches the
// threshold.
const autoBanReason = "warn threshold reached"

// Outcome describes what a moderation command did, for the staff reply.
type Outcome struct {
	User *models.User
	// WarnCount is the counter after a warn, zero otherwise.
	WarnCount int
	// AutoBanned is set when a warn tipped the user into a permanent ban.
	AutoBanned bool
	// Permanent is set for permanent bans.
	Permanent bool
	// Until is the expiry of a timed ban.
	Until time.Time
}

// Engine executes warn, ban and unban against users resolved by their
// support thread.
type Engine struct {
	dir       *directory.Service
	transport transport.Transport
	now       func() time.Time
}

// NewEngine wires the moderation engine.
func NewEngine(dir *directory.Service, t transport.Transport) *Engine {
	return &Engine{dir: dir, transport: t, now: time.Now}
}

// SetClock overrides the time source, for tests.
func (e *Engine) SetClock(now func() time.Time) { e.now = now }

// Warn increments the warn counter of the user behind the given thread.
// Reaching the threshold converts into a permanent ban; a user already
// banned is never banned again by further warns.
func (e *Engine) Warn(ctx context.Context, threadID, adminID int64, reason string) (*Outcome, error) {
	user, err := e.dir.LookupByThread(ctx, threadID)
	if err != nil {
		return nil, err
	}

	count, err := e.dir.IncrementWarn(ctx, user, adminID, reason)
	if err != nil {
		return nil, err
	}

	out := &Outcome{User: user, WarnCount: count}
	if count >= models.WarnThreshold && !user.IsBanned {
		if err := e.dir.SetBan(ctx, user, true, nil, autoBanReason); err != nil {
			return nil, err
		}
		out.AutoBanned = true
		out.Permanent = true
		log.Info().
			Int64("user_id", user.ID).
			Int("warn_count", count).
			Msg("moderation: warn threshold reached, user banned")
	}

	e.notify(ctx, user.ID, warnNotice(count, reason, out.AutoBanned))
	return out, nil
}

// Ban bans the user behind the given thread for the duration described
// by token ("1d12h", "30m", "permanent").
func (e *Engine) Ban(ctx context.Context, threadID, adminID int64, token, reason string) (*Outcome, error) {
	d, permanent, err := ParseDuration(token)
	if err != nil {
		return nil, err
	}

	user, err := e.dir.LookupByThread(ctx, threadID)
	if err != nil {
		return nil, err
	}

	var until *time.Time
	out := &Outcome{User: user, Permanent: permanent}
	if !permanent {
		t := e.now().Add(d)
		until = &t
		out.Until = t
	}

	if err := e.dir.SetBan(ctx, user, true, until, reason); err != nil {
		return nil, err
	}
	log.Info().
		Int64("user_id", user.ID).
		Int64("admin_id", adminID).
		Bool("permanent", permanent).
		Str("reason", reason).
		Msg("moderation: user banned")

	e.notify(ctx, user.ID, banNotice(d, permanent, reason))
	return out, nil
}

// Unban lifts any ban on the user behind the given thread.
func (e *Engine) Unban(ctx context.Context, threadID, adminID int64) (*Outcome, error) {
	user, err := e.dir.LookupByThread(ctx, threadID)
	if err != nil {
		return nil, err
	}

	if err := e.dir.SetBan(ctx, user, false, nil, ""); err != nil {
		return nil, err
	}
	log.Info().
		Int64("user_id", user.ID).
		Int64("admin_id", adminID).
		Msg("moderation: user unbanned")

	e.notify(ctx, user.ID, "You have been unbanned. You can contact support again.")
	return &Outcome{User: user}, nil
}

// notify delivers a best-effort notice to the user. Delivery failures
// never fail the moderation action.
func (e *Engine) notify(ctx context.Context, userID int64, text string) {
	if err := e.transport.Notify(ctx, userID, text); err != nil {
		log.Warn().Err(err).Int64("user_id", userID).Msg("moderation: failed to notify user")
	}
}

func warnNotice(count int, reason string, autoBanned bool) string {
	text := fmt.Sprintf("You have received a warning (%d/%d).", count, models.WarnThreshold)
	if reason != "" {
		text += "\nReason: " + reason
	}
	if autoBanned {
		text += "\n\nYou have been permanently banned for reaching the warning limit."
	}
	return text
}

func banNotice(d time.Duration, permanent bool, reason string) string {
	var text string
	if permanent {
		text = "You have been permanently banned."
	} else {
		text = "You have been banned for " + FormatDuration(d) + "."
	}
	if reason != "" {
		text += "\nReason: " + reason
	}
	return text
}
