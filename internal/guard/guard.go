// Package guard implements the pre-dispatch ban gate. Every
// user-initiated action passes through Check before any handler runs;
// no action may bypass it.
package guard

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"ticketline/internal/directory"
	"ticketline/internal/models"
)

// Decision is the gate's verdict for one inbound action.
type Decision struct {
	Allow bool
	// Notice is the user-visible rejection text when Allow is false.
	Notice string
	// User is the (possibly freshly registered) record; always set
	// when the returned error is nil.
	User *models.User
}

// Filter evaluates the ban state of inbound users.
type Filter struct {
	dir *directory.Service
	now func() time.Time
}

// NewFilter creates the gate over the given directory.
func NewFilter(dir *directory.Service) *Filter {
	return &Filter{dir: dir, now: time.Now}
}

// SetClock overrides the time source, for tests.
func (f *Filter) SetClock(now func() time.Time) { f.now = now }

// Check registers the user if unseen and evaluates their ban state.
// Expired timed bans are lifted lazily here; that lift is the gate's
// only write.
func (f *Filter) Check(ctx context.Context, externalID int64, referrerID *int64) (Decision, error) {
	user, err := f.dir.GetOrRegister(ctx, externalID, referrerID)
	if err != nil {
		return Decision{}, fmt.Errorf("guard: %w", err)
	}

	if !user.IsBanned {
		return Decision{Allow: true, User: user}, nil
	}

	if user.PermanentlyBanned() {
		return Decision{User: user, Notice: "You are permanently banned."}, nil
	}

	now := f.now()
	if user.BanExpired(now) {
		if err := f.dir.SetBan(ctx, user, false, nil, ""); err != nil {
			return Decision{}, fmt.Errorf("guard: lift expired ban: %w", err)
		}
		log.Info().Int64("user_id", user.ID).Msg("guard: expired ban lifted")
		return Decision{Allow: true, User: user}, nil
	}

	remaining := user.BanUntil.Sub(now)
	hours := int(remaining / time.Hour)
	minutes := int(remaining%time.Hour) / int(time.Minute)
	notice := fmt.Sprintf("You are banned. Time remaining: %dh %dm.", hours, minutes)
	if user.BanReason != "" {
		notice += "\nReason: " + user.BanReason
	}
	return Decision{User: user, Notice: notice}, nil
}
