package repository

import (
	"context"

	dealdomain "dealsync-backend/internal/deal/domain"
)

// DealRepository defines the storage operations for deals
type DealRepository interface {
	// Find the deal for a (userID, threadID) identity key. Returns (nil, nil)
	// when no deal exists for the thread.
	FindByUserAndThread(ctx context.Context, userID, threadID string) (*dealdomain.Deal, error)
	Create(ctx context.Context, deal *dealdomain.Deal) error
	Update(ctx context.Context, deal *dealdomain.Deal) error
}

// ReminderRepository defines the storage operations for reminders
type ReminderRepository interface {
	// Delete every reminder for the deal carrying the given source tag.
	DeleteByDealAndSource(ctx context.Context, dealID, source string) error
	// Insert a batch of reminders preserving their order indexes.
	CreateBatch(ctx context.Context, reminders []dealdomain.Reminder) error
	// Count reminders for a deal and source tag.
	CountByDealAndSource(ctx context.Context, dealID, source string) (int64, error)
}

// SyncLogRepository appends audit entries; entries are never mutated.
type SyncLogRepository interface {
	Append(ctx context.Context, entry *dealdomain.SyncLogEntry) error
}

// DealExtractionRepository stores the raw extractor output per deal write.
type DealExtractionRepository interface {
	Append(ctx context.Context, extraction *dealdomain.DealExtraction) error
}
