package repository

import (
	"context"
	"time"

	dealdomain "dealsync-backend/internal/deal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// syncLogRepository implements SyncLogRepository interface
type syncLogRepository struct {
	db *gorm.DB
}

// NewSyncLogRepository creates a new instance of syncLogRepository
func NewSyncLogRepository(db *gorm.DB) SyncLogRepository {
	return &syncLogRepository{
		db: db,
	}
}

func (r *syncLogRepository) Append(ctx context.Context, entry *dealdomain.SyncLogEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	entry.CreatedAt = time.Now()
	return r.db.WithContext(ctx).Create(entry).Error
}
