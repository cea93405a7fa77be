// Package directory maps external user identity to the internal
// anonymized identity and the active support thread, and owns the
// ban/warn counters. All moderation-field mutations funnel through this
// service so the store's atomic updates are the single writer.
package directory

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/rs/zerolog/log"

	"ticketline/internal/database"
	"ticketline/internal/metrics"
	"ticketline/internal/mirror"
	"ticketline/internal/models"
)

// ErrUserNotFound is returned when a lookup misses.
var ErrUserNotFound = errors.New("directory: user not found")

const anonIDAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// anonIDAttempts bounds retries when a freshly generated anon id
// collides with an existing one.
const anonIDAttempts = 5

// Service is the user directory.
type Service struct {
	store  database.Store
	mirror mirror.Mirror
	now    func() time.Time
}

// NewService creates a directory backed by the given store. The mirror
// may be mirror.Disabled{}.
func NewService(store database.Store, m mirror.Mirror) *Service {
	return &Service{store: store, mirror: m, now: time.Now}
}

// SetClock overrides the time source, for tests.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

func newAnonID() string {
	b := make([]byte, 5)
	for i := range b {
		b[i] = anonIDAlphabet[rand.IntN(len(anonIDAlphabet))]
	}
	return models.AnonIDPrefix + string(b)
}

// GetOrRegister returns the user record for an external id, creating it
// on first contact. Registration generates a unique anon id, records
// the referral edge when a referrer is given (duplicate edges are
// ignored) and schedules a best-effort mirror sync. Repeat contact only
// refreshes last_seen.
func (s *Service) GetOrRegister(ctx context.Context, externalID int64, referrerID *int64) (*models.User, error) {
	user, err := s.store.GetUserByID(ctx, externalID)
	if err == nil {
		if err := s.store.TouchLastSeen(ctx, externalID, s.now()); err != nil {
			log.Warn().Err(err).Int64("user_id", externalID).Msg("directory: failed to touch last_seen")
		}
		return user, nil
	}
	if !errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("lookup user %d: %w", externalID, err)
	}

	now := s.now()
	user = &models.User{
		ID:         externalID,
		ReferrerID: referrerID,
		IsActive:   true,
		CreatedAt:  now,
		LastSeen:   now,
	}

	var createErr error
	for attempt := 0; attempt < anonIDAttempts; attempt++ {
		user.AnonID = newAnonID()
		if createErr = s.store.CreateUser(ctx, user); createErr == nil {
			break
		}
	}
	if createErr != nil {
		return nil, fmt.Errorf("register user %d: %w", externalID, createErr)
	}

	if referrerID != nil {
		if err := s.store.AddReferral(ctx, *referrerID, externalID, now); err != nil {
			log.Error().Err(err).
				Int64("referrer_id", *referrerID).
				Int64("referred_id", externalID).
				Msg("directory: failed to record referral")
		}
	}

	metrics.UsersRegistered.Inc()
	log.Info().Int64("user_id", externalID).Str("anon_id", user.AnonID).Msg("directory: new user registered")

	s.syncUser(user)
	return user, nil
}

// LookupByExternal returns the user with the given external id.
func (s *Service) LookupByExternal(ctx context.Context, externalID int64) (*models.User, error) {
	user, err := s.store.GetUserByID(ctx, externalID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	return user, err
}

// LookupByThread returns the user holding the given support thread.
func (s *Service) LookupByThread(ctx context.Context, threadID int64) (*models.User, error) {
	user, err := s.store.GetUserByThread(ctx, threadID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	return user, err
}

// OpenThread maps the user to a newly created support thread.
func (s *Service) OpenThread(ctx context.Context, user *models.User, threadID int64) error {
	if err := s.store.SetThread(ctx, user.ID, &threadID); err != nil {
		return fmt.Errorf("open thread for user %d: %w", user.ID, err)
	}
	user.ThreadID = &threadID
	s.syncUser(user)
	return nil
}

// CloseThread clears the user's thread mapping. Closing a user with no
// open thread is a no-op.
func (s *Service) CloseThread(ctx context.Context, user *models.User) error {
	if err := s.store.SetThread(ctx, user.ID, nil); err != nil {
		return fmt.Errorf("close thread for user %d: %w", user.ID, err)
	}
	user.ThreadID = nil
	s.syncUser(user)
	return nil
}

// SetBan writes the ban state. A nil until with banned=true is a
// permanent ban.
func (s *Service) SetBan(ctx context.Context, user *models.User, banned bool, until *time.Time, reason string) error {
	if err := s.store.SetBan(ctx, user.ID, banned, until, reason); err != nil {
		return fmt.Errorf("set ban for user %d: %w", user.ID, err)
	}
	user.IsBanned = banned
	user.BanUntil = until
	user.BanReason = reason
	if banned {
		metrics.BansApplied.Inc()
	}
	s.syncUser(user)
	return nil
}

// IncrementWarn atomically bumps the warn counter, appends the audit
// record and returns the new count.
func (s *Service) IncrementWarn(ctx context.Context, user *models.User, adminID int64, reason string) (int, error) {
	now := s.now()
	count, err := s.store.IncrementWarn(ctx, user.ID, adminID, reason, now)
	if err != nil {
		return 0, fmt.Errorf("warn user %d: %w", user.ID, err)
	}
	user.WarnCount = count
	metrics.WarnsIssued.Inc()

	s.syncUser(user)
	mirror.Go(s.mirror, "insert_warn", func(ctx context.Context, m mirror.Mirror) error {
		return m.InsertWarn(ctx, &models.WarnRecord{
			UserID:    user.ID,
			AdminID:   adminID,
			Reason:    reason,
			CreatedAt: now,
		})
	})
	return count, nil
}

// MessageRelayed records one successful user-to-staff relay.
func (s *Service) MessageRelayed(ctx context.Context, user *models.User) error {
	if err := s.store.IncrementMessageCount(ctx, user.ID, s.now()); err != nil {
		return fmt.Errorf("count message for user %d: %w", user.ID, err)
	}
	user.MessageCount++
	return nil
}

// MarkInactive flags the user as unreachable. Idempotent.
func (s *Service) MarkInactive(ctx context.Context, user *models.User) error {
	if err := s.store.MarkInactive(ctx, user.ID); err != nil {
		return fmt.Errorf("deactivate user %d: %w", user.ID, err)
	}
	user.IsActive = false
	s.syncUser(user)
	return nil
}

// ListActiveIDs enumerates users eligible for broadcast: active and not
// banned.
func (s *Service) ListActiveIDs(ctx context.Context) ([]int64, error) {
	return s.store.ListActiveUserIDs(ctx)
}

// ReferralCount returns how many users this user referred.
func (s *Service) ReferralCount(ctx context.Context, userID int64) (int64, error) {
	return s.store.CountReferrals(ctx, userID)
}

// RecordBroadcast persists the audit record of a finished broadcast
// run and mirrors it.
func (s *Service) RecordBroadcast(ctx context.Context, run *models.BroadcastRun) error {
	if err := s.store.CreateBroadcastRun(ctx, run); err != nil {
		return fmt.Errorf("record broadcast run: %w", err)
	}
	snapshot := *run
	mirror.Go(s.mirror, "insert_broadcast_run", func(ctx context.Context, m mirror.Mirror) error {
		return m.InsertBroadcastRun(ctx, &snapshot)
	})
	return nil
}

// RecentWarns returns the user's latest warn records, newest first.
func (s *Service) RecentWarns(ctx context.Context, userID int64, limit int) ([]models.WarnRecord, error) {
	return s.store.RecentWarns(ctx, userID, limit)
}

// syncUser schedules a fire-and-forget mirror upsert of the record.
func (s *Service) syncUser(user *models.User) {
	snapshot := *user
	mirror.Go(s.mirror, "upsert_user", func(ctx context.Context, m mirror.Mirror) error {
		return m.UpsertUser(ctx, &snapshot)
	})
}
