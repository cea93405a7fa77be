package database

import (
	"context"
	"time"

	"ticketline/internal/models"
)

// MockStore is a mock implementation of the Store interface for testing.
// Uses function fields to allow tests to inject custom behavior.
type MockStore struct {
	GetUserByIDFunc           func(ctx context.Context, id int64) (*models.User, error)
	GetUserByThreadFunc       func(ctx context.Context, threadID int64) (*models.User, error)
	CreateUserFunc            func(ctx context.Context, user *models.User) error
	TouchLastSeenFunc         func(ctx context.Context, id int64, at time.Time) error
	SetThreadFunc             func(ctx context.Context, id int64, threadID *int64) error
	SetBanFunc                func(ctx context.Context, id int64, banned bool, until *time.Time, reason string) error
	IncrementWarnFunc         func(ctx context.Context, id, adminID int64, reason string, at time.Time) (int, error)
	IncrementMessageCountFunc func(ctx context.Context, id int64, at time.Time) error
	MarkInactiveFunc          func(ctx context.Context, id int64) error
	ListActiveUserIDsFunc     func(ctx context.Context) ([]int64, error)

	AddReferralFunc    func(ctx context.Context, referrerID, referredID int64, at time.Time) error
	CountReferralsFunc func(ctx context.Context, referrerID int64) (int64, error)
	RecentWarnsFunc    func(ctx context.Context, userID int64, limit int) ([]models.WarnRecord, error)

	CreateReviewFunc  func(ctx context.Context, review *models.Review) error
	GetReviewFunc     func(ctx context.Context, id uint) (*models.Review, error)
	DeleteReviewFunc  func(ctx context.Context, id uint) error
	ReviewStatsFunc   func(ctx context.Context) (*ReviewStats, error)
	LatestReviewsFunc func(ctx context.Context, limit int) ([]models.Review, error)

	CreateBroadcastRunFunc func(ctx context.Context, run *models.BroadcastRun) error
	SystemStatsFunc        func(ctx context.Context, now time.Time) (*SystemStats, error)

	CloseFunc func() error
}

var _ Store = (*MockStore)(nil)

func (m *MockStore) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	if m.GetUserByIDFunc != nil {
		return m.GetUserByIDFunc(ctx, id)
	}
	return nil, ErrNotFound
}

func (m *MockStore) GetUserByThread(ctx context.Context, threadID int64) (*models.User, error) {
	if m.GetUserByThreadFunc != nil {
		return m.GetUserByThreadFunc(ctx, threadID)
	}
	return nil, ErrNotFound
}

func (m *MockStore) CreateUser(ctx context.Context, user *models.User) error {
	if m.CreateUserFunc != nil {
		return m.CreateUserFunc(ctx, user)
	}
	return nil
}

func (m *MockStore) TouchLastSeen(ctx context.Context, id int64, at time.Time) error {
	if m.TouchLastSeenFunc != nil {
		return m.TouchLastSeenFunc(ctx, id, at)
	}
	return nil
}

func (m *MockStore) SetThread(ctx context.Context, id int64, threadID *int64) error {
	if m.SetThreadFunc != nil {
		return m.SetThreadFunc(ctx, id, threadID)
	}
	return nil
}

func (m *MockStore) SetBan(ctx context.Context, id int64, banned bool, until *time.Time, reason string) error {
	if m.SetBanFunc != nil {
		return m.SetBanFunc(ctx, id, banned, until, reason)
	}
	return nil
}

func (m *MockStore) IncrementWarn(ctx context.Context, id, adminID int64, reason string, at time.Time) (int, error) {
	if m.IncrementWarnFunc != nil {
		return m.IncrementWarnFunc(ctx, id, adminID, reason, at)
	}
	return 0, nil
}

func (m *MockStore) IncrementMessageCount(ctx context.Context, id int64, at time.Time) error {
	if m.IncrementMessageCountFunc != nil {
		return m.IncrementMessageCountFunc(ctx, id, at)
	}
	return nil
}

func (m *MockStore) MarkInactive(ctx context.Context, id int64) error {
	if m.MarkInactiveFunc != nil {
		return m.MarkInactiveFunc(ctx, id)
	}
	return nil
}

func (m *MockStore) ListActiveUserIDs(ctx context.Context) ([]int64, error) {
	if m.ListActiveUserIDsFunc != nil {
		return m.ListActiveUserIDsFunc(ctx)
	}
	return nil, nil
}

func (m *MockStore) AddReferral(ctx context.Context, referrerID, referredID int64, at time.Time) error {
	if m.AddReferralFunc != nil {
		return m.AddReferralFunc(ctx, referrerID, referredID, at)
	}
	return nil
}

func (m *MockStore) CountReferrals(ctx context.Context, referrerID int64) (int64, error) {
	if m.CountReferralsFunc != nil {
		return m.CountReferralsFunc(ctx, referrerID)
	}
	return 0, nil
}

func (m *MockStore) RecentWarns(ctx context.Context, userID int64, limit int) ([]models.WarnRecord, error) {
	if m.RecentWarnsFunc != nil {
		return m.RecentWarnsFunc(ctx, userID, limit)
	}
	return nil, nil
}

func (m *MockStore) CreateReview(ctx context.Context, review *models.Review) error {
	if m.CreateReviewFunc != nil {
		return m.CreateReviewFunc(ctx, review)
	}
	return nil
}

func (m *MockStore) GetReview(ctx context.Context, id uint) (*models.Review, error) {
	if m.GetReviewFunc != nil {
		return m.GetReviewFunc(ctx, id)
	}
	return nil, ErrNotFound
}

func (m *MockStore) DeleteReview(ctx context.Context, id uint) error {
	if m.DeleteReviewFunc != nil {
		return m.DeleteReviewFunc(ctx, id)
	}
	return nil
}

func (m *MockStore) ReviewStats(ctx context.Context) (*ReviewStats, error) {
	if m.ReviewStatsFunc != nil {
		return m.ReviewStatsFunc(ctx)
	}
	return &ReviewStats{}, nil
}

func (m *MockStore) LatestReviews(ctx context.Context, limit int) ([]models.Review, error) {
	if m.LatestReviewsFunc != nil {
		return m.LatestReviewsFunc(ctx, limit)
	}
	return nil, nil
}

func (m *MockStore) CreateBroadcastRun(ctx context.Context, run *models.BroadcastRun) error {
	if m.CreateBroadcastRunFunc != nil {
		return m.CreateBroadcastRunFunc(ctx, run)
	}
	return nil
}

func (m *MockStore) SystemStats(ctx context.Context, now time.Time) (*SystemStats, error) {
	if m.SystemStatsFunc != nil {
		return m.SystemStatsFunc(ctx, now)
	}
	return &SystemStats{}, nil
}

func (m *MockStore) Close() error {
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}
