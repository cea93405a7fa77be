// Package mirror replicates selected records to a remote hosted
// database. The mirror is best-effort and non-authoritative: the local
// store holds the truth, sync failures are logged and never surfaced to
// the operation that triggered them, and there is no reconciliation
// protocol.
package mirror

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"ticketline/internal/models"
)

// Mirror is the remote-replica port. Implementations must be safe for
// concurrent use.
type Mirror interface {
	// Enabled reports whether a remote is configured. Callers may skip
	// scheduling work when it returns false.
	Enabled() bool

	UpsertUser(ctx context.Context, user *models.User) error
	InsertWarn(ctx context.Context, warn *models.WarnRecord) error
	InsertReview(ctx context.Context, review *models.Review) error
	DeleteReview(ctx context.Context, id uint) error
	InsertBroadcastRun(ctx context.Context, run *models.BroadcastRun) error
}

// Disabled is the no-op mirror used when no remote is configured.
type Disabled struct{}

var _ Mirror = Disabled{}

func (Disabled) Enabled() bool                                        { return false }
func (Disabled) UpsertUser(context.Context, *models.User) error       { return nil }
func (Disabled) InsertWarn(context.Context, *models.WarnRecord) error { return nil }
func (Disabled) InsertReview(context.Context, *models.Review) error   { return nil }
func (Disabled) DeleteReview(context.Context, uint) error             { return nil }

func (Disabled) InsertBroadcastRun(context.Context, *models.BroadcastRun) error { return nil }

// syncTimeout bounds one fire-and-forget replication attempt.
const syncTimeout = 10 * time.Second

// Go runs a replication step in the background. The step gets its own
// timeout-bounded context; failure is logged and dropped.
func Go(m Mirror, op string, fn func(ctx context.Context, m Mirror) error) {
	if !m.Enabled() {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), syncTimeout)
		defer cancel()
		if err := fn(ctx, m); err != nil {
			log.Error().Err(err).Str("op", op).Msg("mirror: sync failed")
		}
	}()
}
