package repository

import (
	"context"
	"time"

	connectiondomain "dealsync-backend/internal/connection/domain"
)

// ConnectionRepository defines the storage operations for monitored mailboxes
type ConnectionRepository interface {
	// Find a connection by mailbox address (case-insensitive). Returns
	// (nil, nil) when no connection is registered for the address.
	FindByEmail(ctx context.Context, address string) (*connectiondomain.Connection, error)
	// List every known connection, for the watch-renewal sweep.
	ListAll(ctx context.Context) ([]connectiondomain.Connection, error)
	// Advance the history checkpoint.
	UpdateCheckpoint(ctx context.Context, id string, cursor string) error
	// Record a fresh watch registration (cursor + expiry together). Used on
	// first registration and on stale-cursor recovery, where the checkpoint
	// is reset to the watch cursor.
	UpdateWatch(ctx context.Context, id string, cursor string, expiry time.Time) error
	// Record a renewed watch expiry without touching the checkpoint.
	UpdateWatchExpiry(ctx context.Context, id string, expiry time.Time) error
	// Persist a refreshed OAuth token set.
	UpdateTokens(ctx context.Context, id string, accessToken, refreshToken string) error
}
