package mirror

import (
	"context"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"ticketline/internal/models"
)

// PostgresMirror replicates records to a hosted Postgres database.
type PostgresMirror struct {
	db *gorm.DB
}

var _ Mirror = (*PostgresMirror)(nil)

// OpenPostgres connects to the remote database and applies migrations.
// The remote schema mirrors the local one; rows written here carry no
// extra bookkeeping because the replica is never read back for
// invariant checks.
func OpenPostgres(dsn string) (*PostgresMirror, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mirror database: %w", err)
	}

	if err := db.AutoMigrate(
		&models.User{},
		&models.WarnRecord{},
		&models.Review{},
		&models.BroadcastRun{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate mirror database: %w", err)
	}

	return &PostgresMirror{db: db}, nil
}

func (m *PostgresMirror) Enabled() bool { return true }

func (m *PostgresMirror) UpsertUser(ctx context.Context, user *models.User) error {
	return m.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).
		Create(user).Error
}

func (m *PostgresMirror) InsertWarn(ctx context.Context, warn *models.WarnRecord) error {
	row := *warn
	row.ID = 0
	return m.db.WithContext(ctx).Create(&row).Error
}

func (m *PostgresMirror) InsertReview(ctx context.Context, review *models.Review) error {
	return m.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).
		Create(review).Error
}

func (m *PostgresMirror) DeleteReview(ctx context.Context, id uint) error {
	return m.db.WithContext(ctx).Delete(&models.Review{}, id).Error
}

func (m *PostgresMirror) InsertBroadcastRun(ctx context.Context, run *models.BroadcastRun) error {
	row := *run
	row.ID = 0
	return m.db.WithContext(ctx).Create(&row).Error
}
