package repository

import (
	"context"
	"time"

	dealdomain "dealsync-backend/internal/deal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// reminderRepository implements ReminderRepository interface
type reminderRepository struct {
	db *gorm.DB
}

// NewReminderRepository creates a new instance of reminderRepository
func NewReminderRepository(db *gorm.DB) ReminderRepository {
	return &reminderRepository{
		db: db,
	}
}

func (r *reminderRepository) DeleteByDealAndSource(ctx context.Context, dealID, source string) error {
	return r.db.WithContext(ctx).
		Where("deal_id = ? AND source = ?", dealID, source).
		Delete(&dealdomain.Reminder{}).Error
}

func (r *reminderRepository) CreateBatch(ctx context.Context, reminders []dealdomain.Reminder) error {
	if len(reminders) == 0 {
		return nil
	}
	now := time.Now()
	for i := range reminders {
		if reminders[i].ID == "" {
			reminders[i].ID = uuid.New().String()
		}
		reminders[i].CreatedAt = now
	}
	return r.db.WithContext(ctx).Create(&reminders).Error
}

func (r *reminderRepository) CountByDealAndSource(ctx context.Context, dealID, source string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&dealdomain.Reminder{}).
		Where("deal_id = ? AND source = ?", dealID, source).
		Count(&count).Error
	return count, err
}
