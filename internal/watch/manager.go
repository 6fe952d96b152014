package watch

import (
	"context"
	"log"
	"time"

	connectiondomain "dealsync-backend/internal/connection/domain"
	connectionrepo "dealsync-backend/internal/connection/repository"
	emaildomain "dealsync-backend/internal/email/domain"
	"dealsync-backend/internal/retry"

	"golang.org/x/oauth2"
)

// Gmail expires a watch after about seven days. Re-register once it is within
// this window so notifications never stop flowing.
const watchRefreshBuffer = 24 * time.Hour

// Provider registers mailbox watches with the mail provider.
type Provider interface {
	EnsureWatch(ctx context.Context, creds emaildomain.Credentials, topic string) (*emaildomain.WatchRegistration, error)
}

// Manager owns the watch lifecycle for every connection: lazy refresh when a
// notification arrives, a periodic sweep for idle mailboxes, and forced
// re-registration when a history cursor goes stale.
type Manager struct {
	provider Provider
	conns    connectionrepo.ConnectionRepository
	topic    string
	now      func() time.Time
}

func NewManager(provider Provider, conns connectionrepo.ConnectionRepository, topic string) *Manager {
	return &Manager{
		provider: provider,
		conns:    conns,
		topic:    topic,
		now:      time.Now,
	}
}

// EnsureFresh re-registers the watch when it is missing or close to expiry.
// A routine renewal only persists the new expiry; the history checkpoint is
// untouched so no history between checkpoint and the fresh cursor is skipped.
// When the connection has no checkpoint at all, the fresh cursor seeds it.
func (m *Manager) EnsureFresh(ctx context.Context, conn *connectiondomain.Connection) error {
	if conn.WatchExpiry != nil && conn.WatchExpiry.After(m.now().Add(watchRefreshBuffer)) {
		return nil
	}

	reg, err := m.register(ctx, conn)
	if err != nil {
		return err
	}

	if conn.HistoryCheckpoint == nil {
		if err := m.conns.UpdateWatch(ctx, conn.ID, reg.Cursor, reg.Expiry); err != nil {
			return err
		}
		cursor := reg.Cursor
		conn.HistoryCheckpoint = &cursor
	} else {
		if err := m.conns.UpdateWatchExpiry(ctx, conn.ID, reg.Expiry); err != nil {
			return err
		}
	}
	expiry := reg.Expiry
	conn.WatchExpiry = &expiry
	return nil
}

// ForceRefresh re-registers the watch unconditionally and resets the
// checkpoint to the fresh cursor. This is the stale-cursor escape hatch:
// history between the dead checkpoint and the new cursor is lost, which is
// accepted over stalling the mailbox forever.
func (m *Manager) ForceRefresh(ctx context.Context, conn *connectiondomain.Connection) (*emaildomain.WatchRegistration, error) {
	reg, err := m.register(ctx, conn)
	if err != nil {
		return nil, err
	}
	if err := m.conns.UpdateWatch(ctx, conn.ID, reg.Cursor, reg.Expiry); err != nil {
		return nil, err
	}
	cursor := reg.Cursor
	expiry := reg.Expiry
	conn.HistoryCheckpoint = &cursor
	conn.WatchExpiry = &expiry
	log.Printf("[Watch] Forced refresh for %s: checkpoint reset to %s", conn.EmailAddress, reg.Cursor)
	return reg, nil
}

func (m *Manager) register(ctx context.Context, conn *connectiondomain.Connection) (*emaildomain.WatchRegistration, error) {
	creds := m.credentials(ctx, conn)
	reg, _, err := retry.Do(ctx, "watch", retry.GmailPolicy, func() (*emaildomain.WatchRegistration, error) {
		return m.provider.EnsureWatch(ctx, creds, m.topic)
	})
	return reg, err
}

func (m *Manager) credentials(ctx context.Context, conn *connectiondomain.Connection) emaildomain.Credentials {
	return emaildomain.Credentials{
		AccessToken:  conn.AccessToken,
		RefreshToken: conn.RefreshToken,
		OnTokenRefresh: func(token *oauth2.Token) error {
			refresh := conn.RefreshToken
			if token.RefreshToken != "" {
				refresh = token.RefreshToken
			}
			conn.AccessToken = token.AccessToken
			return m.conns.UpdateTokens(ctx, conn.ID, token.AccessToken, refresh)
		},
	}
}

// Sweep walks every connection and refreshes expiring watches. One failing
// mailbox never blocks the rest.
func (m *Manager) Sweep(ctx context.Context) {
	conns, err := m.conns.ListAll(ctx)
	if err != nil {
		log.Printf("[Watch] Sweep: failed to list connections: %v", err)
		return
	}
	refreshed := 0
	for i := range conns {
		conn := &conns[i]
		needed := conn.WatchExpiry == nil || !conn.WatchExpiry.After(m.now().Add(watchRefreshBuffer))
		if err := m.EnsureFresh(ctx, conn); err != nil {
			log.Printf("[Watch] Sweep: refresh failed for %s: %v", conn.EmailAddress, err)
			continue
		}
		if needed {
			refreshed++
		}
	}
	log.Printf("[Watch] Sweep complete: %d connections, %d refreshed", len(conns), refreshed)
}

// RunSweeper runs Sweep on a fixed interval until the context is cancelled.
func (m *Manager) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.Sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep(ctx)
		}
	}
}
