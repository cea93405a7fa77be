// Package models defines the persisted data model for the ticket relay bot.
package models

import "time"

// AnonIDPrefix is prepended to every generated anonymized identity.
const AnonIDPrefix = "USER-"

// WarnThreshold is the warn count at which a permanent ban is applied.
const WarnThreshold = 3

// User is the identity and moderation record for one end user.
// The external (platform-assigned) id is the primary key; users are
// created lazily on first contact and never deleted.
type User struct {
	ID         int64   `gorm:"primaryKey"`
	AnonID     string  `gorm:"uniqueIndex;size:16;not null"`
	ThreadID   *int64  `gorm:"uniqueIndex"`
	ReferrerID *int64  `gorm:"index"`
	WarnCount  int     `gorm:"not null;default:0"`
	IsBanned   bool    `gorm:"not null;default:false"`
	BanUntil   *time.Time
	BanReason  string
	IsActive   bool `gorm:"not null;default:true"`
	// MessageCount counts relayed user-to-staff messages.
	MessageCount int `gorm:"not null;default:0"`
	CreatedAt    time.Time
	LastSeen     time.Time
}

// PermanentlyBanned reports whether the user carries a ban with no expiry.
func (u *User) PermanentlyBanned() bool {
	return u.IsBanned && u.BanUntil == nil
}

// BanExpired reports whether a timed ban has elapsed as of now.
func (u *User) BanExpired(now time.Time) bool {
	return u.IsBanned && u.BanUntil != nil && u.BanUntil.Before(now)
}

// HasOpenThread reports whether the user currently maps to a support thread.
func (u *User) HasOpenThread() bool {
	return u.ThreadID != nil
}

// WarnRecord is an append-only audit entry for one issued warning.
type WarnRecord struct {
	ID        uint  `gorm:"primaryKey;autoIncrement"`
	UserID    int64 `gorm:"index;not null"`
	AdminID   int64 `gorm:"not null"`
	Reason    string
	CreatedAt time.Time
}

// Referral records who invited whom. The (referrer, referred) pair is
// unique; duplicate edges are ignored on insert.
type Referral struct {
	ID         uint  `gorm:"primaryKey;autoIncrement"`
	ReferrerID int64 `gorm:"uniqueIndex:idx_referral_edge;not null"`
	ReferredID int64 `gorm:"uniqueIndex:idx_referral_edge;not null"`
	CreatedAt  time.Time
}

// Review is a user-submitted rating of a staff alias.
type Review struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	UserID    int64  `gorm:"index;not null"`
	Alias     string `gorm:"size:128;not null"`
	Rating    int    `gorm:"not null"`
	Comment   string
	CreatedAt time.Time
}

// BroadcastRun is the audit record of one completed fan-out. It is
// written once, after the run finishes, and never mutated.
type BroadcastRun struct {
	ID          uint  `gorm:"primaryKey;autoIncrement"`
	AdminID     int64 `gorm:"not null"`
	ContentKind string
	Summary     string
	SentCount   int
	FailedCount int
	ElapsedMS   int64
	CreatedAt   time.Time
}
