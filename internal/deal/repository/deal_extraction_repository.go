package repository

import (
	"context"
	"time"

	dealdomain "dealsync-backend/internal/deal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// dealExtractionRepository implements DealExtractionRepository interface
type dealExtractionRepository struct {
	db *gorm.DB
}

// NewDealExtractionRepository creates a new instance of dealExtractionRepository
func NewDealExtractionRepository(db *gorm.DB) DealExtractionRepository {
	return &dealExtractionRepository{
		db: db,
	}
}

func (r *dealExtractionRepository) Append(ctx context.Context, extraction *dealdomain.DealExtraction) error {
	if extraction.ID == "" {
		extraction.ID = uuid.New().String()
	}
	extraction.CreatedAt = time.Now()
	return r.db.WithContext(ctx).Create(extraction).Error
}
