// Package gormstore provides the SQLite-backed Store implementation.
// The local file is the single source of truth for all invariants; the
// remote mirror is a non-authoritative replica maintained elsewhere.
package gormstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"ticketline/internal/database"
	"ticketline/internal/models"
)

// Store implements database.Store using SQLite via gorm.
type Store struct {
	db *gorm.DB
}

// Ensure Store implements the interface at compile time.
var _ database.Store = (*Store)(nil)

// Open creates or opens the SQLite database at the given path, creating
// parent directories and applying migrations as needed.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.AutoMigrate(
		&models.User{},
		&models.WarnRecord{},
		&models.Referral{},
		&models.Review{},
		&models.BroadcastRun{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, database.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user %d: %w", id, err)
	}
	return &user, nil
}

func (s *Store) GetUserByThread(ctx context.Context, threadID int64) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).First(&user, "thread_id = ?", threadID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, database.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user by thread %d: %w", threadID, err)
	}
	return &user, nil
}

func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		return fmt.Errorf("create user %d: %w", user.ID, err)
	}
	return nil
}

func (s *Store) TouchLastSeen(ctx context.Context, id int64, at time.Time) error {
	return s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", id).
		Update("last_seen", at).Error
}

func (s *Store) SetThread(ctx context.Context, id int64, threadID *int64) error {
	return s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", id).
		Update("thread_id", threadID).Error
}

func (s *Store) SetBan(ctx context.Context, id int64, banned bool, until *time.Time, reason string) error {
	return s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"is_banned":  banned,
			"ban_until":  until,
			"ban_reason": reason,
		}).Error
}

// IncrementWarn bumps the counter with a single UPDATE so concurrent
// warns never lose an increment, then records the audit row in the same
// transaction.
func (s *Store) IncrementWarn(ctx context.Context, id, adminID int64, reason string, at time.Time) (int, error) {
	var count int
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.User{}).
			Where("id = ?", id).
			UpdateColumn("warn_count", gorm.Expr("warn_count + ?", 1))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return database.ErrNotFound
		}

		var user models.User
		if err := tx.Select("warn_count").First(&user, "id = ?", id).Error; err != nil {
			return err
		}
		count = user.WarnCount

		return tx.Create(&models.WarnRecord{
			UserID:    id,
			AdminID:   adminID,
			Reason:    reason,
			CreatedAt: at,
		}).Error
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (s *Store) IncrementMessageCount(ctx context.Context, id int64, at time.Time) error {
	return s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"message_count": gorm.Expr("message_count + ?", 1),
			"last_seen":     at,
		}).Error
}

func (s *Store) MarkInactive(ctx context.Context, id int64) error {
	return s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", id).
		Update("is_active", false).Error
}

func (s *Store) ListActiveUserIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("is_active = ? AND is_banned = ?", true, false).
		Order("id").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("list active users: %w", err)
	}
	return ids, nil
}

func (s *Store) AddReferral(ctx context.Context, referrerID, referredID int64, at time.Time) error {
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.Referral{
			ReferrerID: referrerID,
			ReferredID: referredID,
			CreatedAt:  at,
		}).Error
}

func (s *Store) CountReferrals(ctx context.Context, referrerID int64) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Referral{}).
		Where("referrer_id = ?", referrerID).
		Count(&count).Error
	return count, err
}

func (s *Store) RecentWarns(ctx context.Context, userID int64, limit int) ([]models.WarnRecord, error) {
	var warns []models.WarnRecord
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&warns).Error
	return warns, err
}

func (s *Store) CreateReview(ctx context.Context, review *models.Review) error {
	if err := s.db.WithContext(ctx).Create(review).Error; err != nil {
		return fmt.Errorf("create review: %w", err)
	}
	return nil
}

func (s *Store) GetReview(ctx context.Context, id uint) (*models.Review, error) {
	var review models.Review
	err := s.db.WithContext(ctx).First(&review, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, database.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &review, nil
}

func (s *Store) DeleteReview(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Delete(&models.Review{}, id).Error
}

func (s *Store) ReviewStats(ctx context.Context) (*database.ReviewStats, error) {
	stats := &database.ReviewStats{}

	if err := s.db.WithContext(ctx).Model(&models.Review{}).Count(&stats.TotalCount).Error; err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(&models.Review{}).
		Select("COALESCE(AVG(rating), 0)").
		Scan(&stats.AvgRating).Error; err != nil {
		return nil, err
	}
	err := s.db.WithContext(ctx).Model(&models.Review{}).
		Select("alias, AVG(rating) AS avg_rating, COUNT(*) AS count").
		Group("alias").
		Having("COUNT(*) >= ?", 3).
		Order("avg_rating DESC").
		Limit(5).
		Scan(&stats.TopAliases).Error
	if err != nil {
		return nil, err
	}
	return stats, nil
}

func (s *Store) LatestReviews(ctx context.Context, limit int) ([]models.Review, error) {
	var reviews []models.Review
	err := s.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&reviews).Error
	return reviews, err
}

func (s *Store) CreateBroadcastRun(ctx context.Context, run *models.BroadcastRun) error {
	if err := s.db.WithContext(ctx).Create(run).Error; err != nil {
		return fmt.Errorf("create broadcast run: %w", err)
	}
	return nil
}

func (s *Store) SystemStats(ctx context.Context, now time.Time) (*database.SystemStats, error) {
	stats := &database.SystemStats{}
	db := s.db.WithContext(ctx)

	if err := db.Model(&models.User{}).Count(&stats.TotalUsers).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.User{}).
		Where("is_active = ? AND is_banned = ?", true, false).
		Count(&stats.ActiveUsers).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.User{}).
		Where("is_banned = ?", true).
		Count(&stats.BannedUsers).Error; err != nil {
		return nil, err
	}

	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if err := db.Model(&models.User{}).
		Where("created_at >= ?", startOfDay).
		Count(&stats.NewToday).Error; err != nil {
		return nil, err
	}

	if err := db.Model(&models.User{}).
		Select("COALESCE(SUM(message_count), 0)").
		Scan(&stats.TotalMessages).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.User{}).
		Where("message_count > 0").
		Select("COALESCE(AVG(message_count), 0)").
		Scan(&stats.AvgMessages).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.User{}).
		Select("COALESCE(SUM(warn_count), 0)").
		Scan(&stats.TotalWarns).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.Referral{}).Count(&stats.TotalReferrals).Error; err != nil {
		return nil, err
	}

	err := db.Table("referrals").
		Select("referrals.referrer_id, COALESCE(users.anon_id, '') AS anon_id, COUNT(*) AS count").
		Joins("LEFT JOIN users ON users.id = referrals.referrer_id").
		Group("referrals.referrer_id, users.anon_id").
		Order("count DESC").
		Limit(5).
		Scan(&stats.TopReferrers).Error
	if err != nil {
		return nil, err
	}

	return stats, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
