package domain

import "time"

// UrgencyLevel is derived from how soon the deal's next deadline is.
type UrgencyLevel string

const (
	UrgencyLow    UrgencyLevel = "LOW"
	UrgencyMedium UrgencyLevel = "MEDIUM"
	UrgencyHigh   UrgencyLevel = "HIGH"
)

// PaymentStatus normalizes free-form payment wording into stable values.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentLate    PaymentStatus = "late"
)

// Deal is the persisted record for one brand/creator partnership thread.
// There is at most one row per (user_id, email_thread_id) when a thread id is
// known; extractions without a thread id always create a new row.
type Deal struct {
	ID                  string        `json:"id" gorm:"primaryKey"`
	UserID              string        `json:"user_id" gorm:"index:idx_user_thread;not null"`
	EmailThreadID       *string       `json:"email_thread_id" gorm:"index:idx_user_thread"`
	Title               string        `json:"title" gorm:"not null"`
	BrandName           string        `json:"brand_name" gorm:"not null"`
	DeliverableSummary  string        `json:"deliverable_summary" gorm:"type:text"`
	DraftDeadline       *time.Time    `json:"draft_deadline"`
	LiveDeadline        *time.Time    `json:"live_deadline"`
	NextDeadline        *time.Time    `json:"next_deadline"`
	UrgencyLevel        UrgencyLevel  `json:"urgency_level" gorm:"not null;default:LOW"`
	GoLiveWindow        *string       `json:"go_live_window"`
	Exclusivity         *string       `json:"exclusivity"`
	UsageRights         *string       `json:"usage_rights"`
	PaymentAmount       *float64      `json:"payment_amount"`
	PaymentStatus       PaymentStatus `json:"payment_status" gorm:"not null;default:pending"`
	PaymentTerms        *string       `json:"payment_terms"`
	InvoiceSentDate     *time.Time    `json:"invoice_sent_date"`
	ExpectedPaymentDate *time.Time    `json:"expected_payment_date"`
	CreatedFrom         string        `json:"created_from" gorm:"not null;default:email"`
	CreatedAt           time.Time     `json:"created_at"`
	UpdatedAt           time.Time     `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (Deal) TableName() string {
	return "deals"
}
