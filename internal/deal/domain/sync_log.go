package domain

import "time"

// Sync log actions.
const (
	SyncActionCreated = "created"
	SyncActionUpdated = "updated"
)

// SyncLogEntry is an append-only audit record of each create/update decision.
// Rows are never mutated.
type SyncLogEntry struct {
	ID                 string    `json:"id" gorm:"primaryKey"`
	UserID             string    `json:"user_id" gorm:"index;not null"`
	DealID             string    `json:"deal_id" gorm:"index;not null"`
	EmailThreadID      *string   `json:"email_thread_id"`
	Action             string    `json:"action" gorm:"not null"`
	DeliverableSummary string    `json:"deliverable_summary" gorm:"type:text"`
	CreatedAt          time.Time `json:"created_at"`
}

// TableName specifies the table name for GORM
func (SyncLogEntry) TableName() string {
	return "sync_log_entries"
}
