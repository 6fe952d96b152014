package sync

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"

	connectiondomain "dealsync-backend/internal/connection/domain"
	connectionrepo "dealsync-backend/internal/connection/repository"
	dealdomain "dealsync-backend/internal/deal/domain"
	dealusecase "dealsync-backend/internal/deal/usecase"
	emaildomain "dealsync-backend/internal/email/domain"
	"dealsync-backend/internal/mailerr"
	"dealsync-backend/internal/retry"

	"golang.org/x/oauth2"
)

// ErrUnknownMailbox is returned when a notification names a mailbox no
// connection is registered for.
var ErrUnknownMailbox = errors.New("no connection for mailbox")

// MailProvider is the slice of the mail adapter the engine needs.
type MailProvider interface {
	ListHistoryDelta(ctx context.Context, creds emaildomain.Credentials, startCursor string) (*emaildomain.HistoryDelta, error)
	FetchMessage(ctx context.Context, creds emaildomain.Credentials, id string) (*emaildomain.Message, error)
}

// WatchManager keeps the mailbox watch alive and recovers stale cursors.
type WatchManager interface {
	EnsureFresh(ctx context.Context, conn *connectiondomain.Connection) error
	ForceRefresh(ctx context.Context, conn *connectiondomain.Connection) (*emaildomain.WatchRegistration, error)
}

// Gate decides whether a message looks like campaign outreach.
type Gate interface {
	Admit(msg *emaildomain.Message) bool
}

// Extractor runs the structured-extraction call for one admitted message.
type Extractor interface {
	Extract(ctx context.Context, msg *emaildomain.Message) (*dealdomain.Extraction, *dealdomain.CallMetadata, error)
}

// Engine drives one full sync cycle per notification: watch freshness, the
// history delta from the durable checkpoint, per-message classification,
// extraction and reconciliation, then the checkpoint advance. The observed
// cursor from the notification is never persisted; only a delta response's
// own cursor moves the checkpoint, so a crash replays from the last fully
// processed point.
type Engine struct {
	conns      connectionrepo.ConnectionRepository
	provider   MailProvider
	watches    WatchManager
	gate       Gate
	extractor  Extractor
	reconciler dealusecase.Reconciler
}

func NewEngine(conns connectionrepo.ConnectionRepository, provider MailProvider, watches WatchManager, gate Gate, extractor Extractor, reconciler dealusecase.Reconciler) *Engine {
	return &Engine{
		conns:      conns,
		provider:   provider,
		watches:    watches,
		gate:       gate,
		extractor:  extractor,
		reconciler: reconciler,
	}
}

// ProcessNotification handles one push notification for the given mailbox.
// observedCursor is the cursor carried by the notification; it is used only
// to seed a missing checkpoint, never to advance one.
func (e *Engine) ProcessNotification(ctx context.Context, address string, observedCursor string) error {
	conn, err := e.conns.FindByEmail(ctx, address)
	if err != nil {
		return fmt.Errorf("connection lookup failed: %w", err)
	}
	if conn == nil {
		return fmt.Errorf("%w: %s", ErrUnknownMailbox, connectiondomain.NormalizeAddress(address))
	}

	if err := e.watches.EnsureFresh(ctx, conn); err != nil {
		return fmt.Errorf("watch refresh failed for %s: %w", conn.EmailAddress, err)
	}

	if conn.HistoryCheckpoint == nil {
		// First notification for this mailbox. Seed the checkpoint and skip
		// the delta; earlier history is out of scope by definition.
		if err := e.conns.UpdateCheckpoint(ctx, conn.ID, observedCursor); err != nil {
			return fmt.Errorf("checkpoint bootstrap failed: %w", err)
		}
		cursor := observedCursor
		conn.HistoryCheckpoint = &cursor
		log.Printf("[Sync] Bootstrapped checkpoint for %s at %s", conn.EmailAddress, observedCursor)
		return nil
	}

	delta, err := e.fetchDelta(ctx, conn)
	if err != nil {
		return err
	}

	e.processMessages(ctx, conn, delta.Added)
	return e.advanceCheckpoint(ctx, conn, delta.NewCursor)
}

// fetchDelta lists history from the checkpoint. A stale cursor triggers
// exactly one forced watch refresh and one retry from the reset checkpoint;
// a second stale result is surfaced, never looped on.
func (e *Engine) fetchDelta(ctx context.Context, conn *connectiondomain.Connection) (*emaildomain.HistoryDelta, error) {
	creds := e.credentials(ctx, conn)

	delta, _, err := retry.Do(ctx, "history", retry.GmailPolicy, func() (*emaildomain.HistoryDelta, error) {
		return e.provider.ListHistoryDelta(ctx, creds, *conn.HistoryCheckpoint)
	})
	if err == nil {
		return delta, nil
	}
	if !mailerr.IsStaleCursor(err) {
		return nil, fmt.Errorf("history listing failed for %s: %w", conn.EmailAddress, err)
	}

	log.Printf("[Sync] Stale cursor %s for %s, forcing watch refresh", *conn.HistoryCheckpoint, conn.EmailAddress)
	if _, err := e.watches.ForceRefresh(ctx, conn); err != nil {
		return nil, fmt.Errorf("stale-cursor recovery failed for %s: %w", conn.EmailAddress, err)
	}

	delta, _, err = retry.Do(ctx, "history", retry.GmailPolicy, func() (*emaildomain.HistoryDelta, error) {
		return e.provider.ListHistoryDelta(ctx, creds, *conn.HistoryCheckpoint)
	})
	if err != nil {
		return nil, fmt.Errorf("history listing failed after recovery for %s: %w", conn.EmailAddress, err)
	}
	return delta, nil
}

// processMessages runs the classify-extract-reconcile pipeline per message.
// A failing message is logged and skipped; it never blocks the rest of the
// delta or the checkpoint advance.
func (e *Engine) processMessages(ctx context.Context, conn *connectiondomain.Connection, added []emaildomain.AddedMessage) {
	if len(added) == 0 {
		return
	}
	creds := e.credentials(ctx, conn)

	var admitted, deals, failed int
	for _, am := range added {
		msg, _, err := retry.Do(ctx, "message", retry.GmailPolicy, func() (*emaildomain.Message, error) {
			return e.provider.FetchMessage(ctx, creds, am.ID)
		})
		if err != nil {
			if mailerr.IsNotFound(err) {
				// Deleted between the history event and the fetch.
				log.Printf("[Sync] Message %s gone before fetch, skipping", am.ID)
				continue
			}
			log.Printf("[Sync] Fetch failed for message %s: %v", am.ID, err)
			failed++
			continue
		}

		if !e.gate.Admit(msg) {
			continue
		}
		admitted++

		extraction, meta, retries, err := e.extract(ctx, msg)
		if err != nil {
			log.Printf("[Sync] Extraction failed for message %s: %v", msg.ID, err)
			failed++
			continue
		}
		if meta != nil {
			meta.RetryCount = retries
		}

		ref, err := e.reconciler.Reconcile(ctx, extraction, meta, msg, conn.UserID)
		if err != nil {
			log.Printf("[Sync] Reconcile failed for message %s: %v", msg.ID, err)
			failed++
			continue
		}
		if ref != nil {
			deals++
		}
	}
	log.Printf("[Sync] %s: %d messages, %d admitted, %d deals, %d failed",
		conn.EmailAddress, len(added), admitted, deals, failed)
}

func (e *Engine) extract(ctx context.Context, msg *emaildomain.Message) (*dealdomain.Extraction, *dealdomain.CallMetadata, int, error) {
	type result struct {
		extraction *dealdomain.Extraction
		meta       *dealdomain.CallMetadata
	}
	res, retries, err := retry.Do(ctx, "extract", retry.InferencePolicy, func() (result, error) {
		extraction, meta, err := e.extractor.Extract(ctx, msg)
		return result{extraction, meta}, err
	})
	return res.extraction, res.meta, retries, err
}

// advanceCheckpoint persists the delta's cursor, but never moves backwards.
// Notifications can arrive out of order; an older delta must not rewind a
// checkpoint a newer one already advanced.
func (e *Engine) advanceCheckpoint(ctx context.Context, conn *connectiondomain.Connection, newCursor string) error {
	if newCursor == "" {
		return nil
	}
	if conn.HistoryCheckpoint != nil && !cursorLess(*conn.HistoryCheckpoint, newCursor) {
		return nil
	}
	if err := e.conns.UpdateCheckpoint(ctx, conn.ID, newCursor); err != nil {
		return fmt.Errorf("checkpoint advance failed for %s: %w", conn.EmailAddress, err)
	}
	cursor := newCursor
	conn.HistoryCheckpoint = &cursor
	return nil
}

// cursorLess compares cursors numerically, falling back to string comparison
// when either side does not parse.
func cursorLess(a, b string) bool {
	av, aerr := strconv.ParseUint(a, 10, 64)
	bv, berr := strconv.ParseUint(b, 10, 64)
	if aerr != nil || berr != nil {
		return a < b
	}
	return av < bv
}

func (e *Engine) credentials(ctx context.Context, conn *connectiondomain.Connection) emaildomain.Credentials {
	return emaildomain.Credentials{
		AccessToken:  conn.AccessToken,
		RefreshToken: conn.RefreshToken,
		OnTokenRefresh: func(token *oauth2.Token) error {
			refresh := conn.RefreshToken
			if token.RefreshToken != "" {
				refresh = token.RefreshToken
			}
			conn.AccessToken = token.AccessToken
			return e.conns.UpdateTokens(ctx, conn.ID, token.AccessToken, refresh)
		},
	}
}
