package domain

import "time"

// DealExtraction is the audit row stored for each extractor call that led to
// a deal write. The raw payload is kept as JSON for debugging; it is never
// read back by the pipeline.
type DealExtraction struct {
	ID               string    `json:"id" gorm:"primaryKey"`
	DealID           string    `json:"deal_id" gorm:"index;not null"`
	UserID           string    `json:"user_id" gorm:"index;not null"`
	EmailThreadID    *string   `json:"email_thread_id"`
	Payload          string    `json:"payload" gorm:"type:jsonb"`
	Model            string    `json:"model"`
	LatencyMs        int64     `json:"latency_ms"`
	RetryCount       int       `json:"retry_count"`
	PromptTokens     int       `json:"prompt_tokens"`
	CompletionTokens int       `json:"completion_tokens"`
	CreatedAt        time.Time `json:"created_at"`
}

// TableName specifies the table name for GORM
func (DealExtraction) TableName() string {
	return "deal_extractions"
}
