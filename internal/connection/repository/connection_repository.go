package repository

import (
	"context"
	"time"

	connectiondomain "dealsync-backend/internal/connection/domain"

	"gorm.io/gorm"
)

// connectionRepository implements ConnectionRepository interface
type connectionRepository struct {
	db *gorm.DB
}

// NewConnectionRepository creates a new instance of connectionRepository
func NewConnectionRepository(db *gorm.DB) ConnectionRepository {
	return &connectionRepository{
		db: db,
	}
}

func (r *connectionRepository) FindByEmail(ctx context.Context, address string) (*connectiondomain.Connection, error) {
	var conn connectiondomain.Connection
	err := r.db.WithContext(ctx).
		Where("email_address = ?", connectiondomain.NormalizeAddress(address)).
		First(&conn).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &conn, nil
}

func (r *connectionRepository) ListAll(ctx context.Context) ([]connectiondomain.Connection, error) {
	var conns []connectiondomain.Connection
	if err := r.db.WithContext(ctx).Find(&conns).Error; err != nil {
		return nil, err
	}
	return conns, nil
}

func (r *connectionRepository) UpdateCheckpoint(ctx context.Context, id string, cursor string) error {
	return r.db.WithContext(ctx).
		Model(&connectiondomain.Connection{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"history_checkpoint": cursor,
			"updated_at":         time.Now(),
		}).Error
}

func (r *connectionRepository) UpdateWatch(ctx context.Context, id string, cursor string, expiry time.Time) error {
	return r.db.WithContext(ctx).
		Model(&connectiondomain.Connection{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"history_checkpoint": cursor,
			"watch_expiry":       expiry,
			"updated_at":         time.Now(),
		}).Error
}

func (r *connectionRepository) UpdateWatchExpiry(ctx context.Context, id string, expiry time.Time) error {
	return r.db.WithContext(ctx).
		Model(&connectiondomain.Connection{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"watch_expiry": expiry,
			"updated_at":   time.Now(),
		}).Error
}

func (r *connectionRepository) UpdateTokens(ctx context.Context, id string, accessToken, refreshToken string) error {
	return r.db.WithContext(ctx).
		Model(&connectiondomain.Connection{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"access_token":  accessToken,
			"refresh_token": refreshToken,
			"updated_at":    time.Now(),
		}).Error
}
