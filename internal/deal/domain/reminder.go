package domain

import "time"

// ReminderSourceEmail tags reminders generated from an email extraction.
// The whole source=email set is regenerated on every re-extraction, so a
// reminder an operator added by hand under this tag will be lost. That is a
// deliberate trade-off: the set always reflects only the latest extraction.
const ReminderSourceEmail = "email"

// ReminderType distinguishes what kind of item a reminder tracks.
type ReminderType string

const (
	ReminderDo          ReminderType = "do"
	ReminderDont        ReminderType = "dont"
	ReminderDeliverable ReminderType = "deliverable"
)

// Reminder is a derived, regenerable item attached to a Deal.
type Reminder struct {
	ID         string       `json:"id" gorm:"primaryKey"`
	DealID     string       `json:"deal_id" gorm:"index:idx_deal_source;not null"`
	UserID     string       `json:"user_id" gorm:"index;not null"`
	Source     string       `json:"source" gorm:"index:idx_deal_source;not null"`
	Type       ReminderType `json:"type" gorm:"not null"`
	Text       string       `json:"text" gorm:"type:text;not null"`
	DueAt      *time.Time   `json:"due_at"`
	OrderIndex int          `json:"order_index" gorm:"not null;default:0"`
	CreatedAt  time.Time    `json:"created_at"`
}

// TableName specifies the table name for GORM
func (Reminder) TableName() string {
	return "reminders"
}
