// Package database defines the persistence port for the ticket relay
// core. The interface abstracts over the embedded SQLite store so tests
// can substitute a mock and so the remote mirror never sits on the
// critical path.
package database

import (
	"context"
	"errors"
	"time"

	"ticketline/internal/models"
)

// ErrNotFound is returned by point lookups that miss.
var ErrNotFound = errors.New("database: not found")

// AliasRating is one staff alias aggregated over its reviews.
type AliasRating struct {
	Alias     string
	AvgRating float64
	Count     int64
}

// ReviewStats aggregates the review table.
type ReviewStats struct {
	TotalCount int64
	AvgRating  float64
	// TopAliases lists the best-rated aliases with at least three
	// reviews, highest average first.
	TopAliases []AliasRating
}

// ReferrerCount is one referrer and how many users they brought in.
type ReferrerCount struct {
	ReferrerID int64
	AnonID     string
	Count      int64
}

// SystemStats is the staff-facing aggregate snapshot.
type SystemStats struct {
	TotalUsers     int64
	ActiveUsers    int64
	BannedUsers    int64
	NewToday       int64
	TotalMessages  int64
	AvgMessages    float64
	TotalWarns     int64
	TotalReferrals int64
	TopReferrers   []ReferrerCount
}

// Store defines the interface for all database operations. All methods
// accept a context.Context to support cancellation and timeouts.
// Implementations must be safe for concurrent use; read-modify-write
// operations (warn increment, message count) must be atomic.
type Store interface {
	// User operations
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	GetUserByThread(ctx context.Context, threadID int64) (*models.User, error)
	CreateUser(ctx context.Context, user *models.User) error
	TouchLastSeen(ctx context.Context, id int64, at time.Time) error
	SetThread(ctx context.Context, id int64, threadID *int64) error
	SetBan(ctx context.Context, id int64, banned bool, until *time.Time, reason string) error
	// IncrementWarn atomically bumps the warn counter and appends the
	// audit record in the same transaction, returning the new count.
	IncrementWarn(ctx context.Context, id, adminID int64, reason string, at time.Time) (int, error)
	IncrementMessageCount(ctx context.Context, id int64, at time.Time) error
	MarkInactive(ctx context.Context, id int64) error
	ListActiveUserIDs(ctx context.Context) ([]int64, error)

	// Referrals and warn history
	AddReferral(ctx context.Context, referrerID, referredID int64, at time.Time) error
	CountReferrals(ctx context.Context, referrerID int64) (int64, error)
	RecentWarns(ctx context.Context, userID int64, limit int) ([]models.WarnRecord, error)

	// Reviews
	CreateReview(ctx context.Context, review *models.Review) error
	GetReview(ctx context.Context, id uint) (*models.Review, error)
	DeleteReview(ctx context.Context, id uint) error
	ReviewStats(ctx context.Context) (*ReviewStats, error)
	LatestReviews(ctx context.Context, limit int) ([]models.Review, error)

	// Audit
	CreateBroadcastRun(ctx context.Context, run *models.BroadcastRun) error
	SystemStats(ctx context.Context, now time.Time) (*SystemStats, error)

	// Close the database connection
	Close() error
}
