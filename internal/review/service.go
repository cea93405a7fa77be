// Package review manages the staff review wall: user-submitted ratings
// of staff aliases, their aggregates, and staff-side deletion.
package review

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"ticketline/internal/database"
	"ticketline/internal/mirror"
	"ticketline/internal/models"
)

// Rating bounds for a submitted review.
const (
	MinRating = 1
	MaxRating = 5
)

const maxAliasLen = 64

// ErrNotFound is returned when a review id does not exist.
var ErrNotFound = errors.New("review: not found")

// InvalidInputError reports a rejected submission field.
type InvalidInputError struct {
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	return "review: invalid " + e.Field + ": " + e.Reason
}

// Wall is the aggregate view shown to users.
type Wall struct {
	Stats  *database.ReviewStats
	Latest []models.Review
}

// Service validates and persists reviews.
type Service struct {
	store  database.Store
	mirror mirror.Mirror
	now    func() time.Time
}

// NewService wires the review service.
func NewService(store database.Store, m mirror.Mirror) *Service {
	return &Service{store: store, mirror: m, now: time.Now}
}

// SetClock overrides the time source, for tests.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// Submit validates and stores a review, then mirrors it.
func (s *Service) Submit(ctx context.Context, userID int64, alias string, rating int, comment string) (*models.Review, error) {
	alias = strings.TrimSpace(alias)
	if alias == "" {
		return nil, &InvalidInputError{Field: "alias", Reason: "empty"}
	}
	if len(alias) > maxAliasLen {
		return nil, &InvalidInputError{Field: "alias", Reason: "too long"}
	}
	if rating < MinRating || rating > MaxRating {
		return nil, &InvalidInputError{Field: "rating", Reason: fmt.Sprintf("must be between %d and %d", MinRating, MaxRating)}
	}

	review := &models.Review{
		UserID:    userID,
		Alias:     alias,
		Rating:    rating,
		Comment:   strings.TrimSpace(comment),
		CreatedAt: s.now(),
	}
	if err := s.store.CreateReview(ctx, review); err != nil {
		return nil, fmt.Errorf("review: create: %w", err)
	}
	log.Info().Int64("user_id", userID).Str("alias", alias).Int("rating", rating).Msg("review: submitted")

	snapshot := *review
	mirror.Go(s.mirror, "insert_review", func(ctx context.Context, m mirror.Mirror) error {
		return m.InsertReview(ctx, &snapshot)
	})
	return review, nil
}

// Delete removes a review by id and mirrors the deletion.
func (s *Service) Delete(ctx context.Context, id uint) error {
	if _, err := s.store.GetReview(ctx, id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("review: lookup %d: %w", id, err)
	}
	if err := s.store.DeleteReview(ctx, id); err != nil {
		return fmt.Errorf("review: delete %d: %w", id, err)
	}
	log.Info().Uint("review_id", id).Msg("review: deleted")

	mirror.Go(s.mirror, "delete_review", func(ctx context.Context, m mirror.Mirror) error {
		return m.DeleteReview(ctx, id)
	})
	return nil
}

// Wall returns the aggregate stats plus the latest reviews.
func (s *Service) Wall(ctx context.Context, latest int) (*Wall, error) {
	stats, err := s.store.ReviewStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("review: stats: %w", err)
	}
	reviews, err := s.store.LatestReviews(ctx, latest)
	if err != nil {
		return nil, fmt.Errorf("review: latest: %w", err)
	}
	return &Wall{Stats: stats, Latest: reviews}, nil
}
