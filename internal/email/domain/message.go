package domain

import (
	"time"

	"golang.org/x/oauth2"
)

// TokenUpdateFunc is a callback invoked when the OAuth token set is refreshed
// mid-call, so the new tokens can be persisted.
type TokenUpdateFunc func(token *oauth2.Token) error

// Credentials carries the per-mailbox OAuth token set into provider calls.
type Credentials struct {
	AccessToken    string
	RefreshToken   string
	OnTokenRefresh TokenUpdateFunc
}

// Message is an immutable snapshot of a fetched message.
type Message struct {
	ID         string
	ThreadID   string
	Subject    string
	From       string
	BodyText   string
	ReceivedAt *time.Time
}

// AddedMessage identifies one message-added history event.
type AddedMessage struct {
	ID       string
	ThreadID string
}

// HistoryDelta is one page of message-added events since a checkpoint.
// Added preserves the provider's listing order; each id appears at most once.
// NewCursor is the highest cursor covered by this delta and is what the
// caller persists after processing.
type HistoryDelta struct {
	Added     []AddedMessage
	NewCursor string
}

// WatchRegistration is the result of (re-)registering a mailbox watch.
type WatchRegistration struct {
	Cursor string
	Expiry time.Time
}
