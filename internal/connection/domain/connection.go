package domain

import (
	"strings"
	"time"
)

// Connection is one monitored mailbox. It is owned by the sync pipeline:
// the watch manager mutates the watch expiry and resets the checkpoint, the
// sync engine advances the checkpoint after each successful notification
// cycle. Connections are never deleted here; their lifecycle is managed
// elsewhere.
type Connection struct {
	ID                string     `json:"id" gorm:"primaryKey"`
	UserID            string     `json:"user_id" gorm:"index;not null"`
	EmailAddress      string     `json:"email_address" gorm:"uniqueIndex;not null"`
	AccessToken       string     `json:"-" gorm:"not null"`
	RefreshToken      string     `json:"-"`
	HistoryCheckpoint *string    `json:"history_checkpoint"`
	WatchExpiry       *time.Time `json:"watch_expiry"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (Connection) TableName() string {
	return "connections"
}

// NormalizeAddress lower-cases a mailbox address so it can be used as a
// case-insensitive lookup key.
func NormalizeAddress(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}
