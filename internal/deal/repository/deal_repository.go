package repository

import (
	"context"
	"time"

	dealdomain "dealsync-backend/internal/deal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// dealRepository implements DealRepository interface
type dealRepository struct {
	db *gorm.DB
}

// NewDealRepository creates a new instance of dealRepository
func NewDealRepository(db *gorm.DB) DealRepository {
	return &dealRepository{
		db: db,
	}
}

func (r *dealRepository) FindByUserAndThread(ctx context.Context, userID, threadID string) (*dealdomain.Deal, error) {
	var deal dealdomain.Deal
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND email_thread_id = ?", userID, threadID).
		First(&deal).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &deal, nil
}

func (r *dealRepository) Create(ctx context.Context, deal *dealdomain.Deal) error {
	now := time.Now()
	if deal.ID == "" {
		deal.ID = uuid.New().String()
	}
	deal.CreatedAt = now
	deal.UpdatedAt = now
	return r.db.WithContext(ctx).Create(deal).Error
}

func (r *dealRepository) Update(ctx context.Context, deal *dealdomain.Deal) error {
	deal.UpdatedAt = time.Now()
	return r.db.WithContext(ctx).Save(deal).Error
}
