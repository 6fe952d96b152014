package gmail

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"regexp"
	"strconv"
	"strings"
	"time"

	emaildomain "dealsync-backend/internal/email/domain"
	"dealsync-backend/internal/mailerr"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/time/rate"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const (
	maxHistoryResults = 100
	maxBodyTextChars  = 20000

	// See https://developers.google.com/gmail/api/v1/reference/quota
	quotaUnitsPerMessagesGet = 5
	quotaUnitsPerHistoryList = 2
	quotaUnitsPerWatch       = 100

	quotaUnitsPerSecond = 250
	rateLimitPerSecond  = quotaUnitsPerSecond * 0.8
	rateLimitBurst      = quotaUnitsPerSecond
)

// TokenUpdateFunc is a callback function that handles token updates
type TokenUpdateFunc = emaildomain.TokenUpdateFunc

// Service wraps the Gmail API for watch registration, history listing and
// message fetches. Every error leaving this package is normalized into a
// mailerr kind; callers never see raw googleapi errors.
type Service struct {
	clientID     string
	clientSecret string
	limiter      *rate.Limiter
}

type notifyTokenSource struct {
	src      oauth2.TokenSource
	current  *oauth2.Token
	callback TokenUpdateFunc
}

func (s *notifyTokenSource) Token() (*oauth2.Token, error) {
	t, err := s.src.Token()
	if err != nil {
		return nil, err
	}
	if s.callback != nil && s.current.AccessToken != t.AccessToken {
		s.current = t
		if err := s.callback(t); err != nil {
			log.Printf("[Gmail] Failed to persist refreshed token: %v", err)
		}
	}
	return t, nil
}

func NewService(clientID, clientSecret string) *Service {
	return &Service{
		clientID:     clientID,
		clientSecret: clientSecret,
		limiter:      rate.NewLimiter(rateLimitPerSecond, rateLimitBurst),
	}
}

// gmailService creates a Gmail client bound to one connection's token set.
func (s *Service) gmailService(ctx context.Context, creds emaildomain.Credentials) (*gmail.Service, error) {
	token := &oauth2.Token{
		AccessToken:  creds.AccessToken,
		RefreshToken: creds.RefreshToken,
		TokenType:    "Bearer",
	}

	// Only force refresh if we have a refresh token
	if creds.RefreshToken != "" {
		token.Expiry = time.Now()
	}

	config := &oauth2.Config{
		ClientID:     s.clientID,
		ClientSecret: s.clientSecret,
		Endpoint:     google.Endpoint,
	}

	wrappedSource := &notifyTokenSource{
		src:      config.TokenSource(ctx, token),
		current:  token,
		callback: creds.OnTokenRefresh,
	}

	client := oauth2.NewClient(ctx, wrappedSource)

	srv, err := gmail.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("unable to create Gmail service: %w", err)
	}
	return srv, nil
}

// EnsureWatch (re-)registers push notifications for the mailbox on the given
// Pub/Sub topic and returns the fresh cursor and expiry.
func (s *Service) EnsureWatch(ctx context.Context, creds emaildomain.Credentials, topicName string) (*emaildomain.WatchRegistration, error) {
	srv, err := s.gmailService(ctx, creds)
	if err != nil {
		return nil, err
	}
	if err := s.limiter.WaitN(ctx, quotaUnitsPerWatch); err != nil {
		return nil, err
	}

	// Clear any existing watch first; Gmail allows only one push client per
	// user. A failure here is fine when no watch exists.
	_ = srv.Users.Stop("me").Do()

	req := &gmail.WatchRequest{
		TopicName: topicName,
		LabelIds:  []string{"INBOX"},
	}
	resp, err := srv.Users.Watch("me", req).Context(ctx).Do()
	if err != nil {
		return nil, normalizeError(err, false)
	}
	if resp.HistoryId == 0 {
		return nil, mailerr.New(mailerr.KindMalformed, fmt.Errorf("no historyId returned from watch"))
	}

	reg := &emaildomain.WatchRegistration{
		Cursor: strconv.FormatUint(resp.HistoryId, 10),
		Expiry: time.UnixMilli(resp.Expiration),
	}
	log.Printf("[Gmail] Watch registered: cursor=%s expiry=%s", reg.Cursor, reg.Expiry.Format(time.RFC3339))
	return reg, nil
}

// ListHistoryDelta lists message-added history events since the given cursor,
// capped at one page. The returned NewCursor is the response's own historyId,
// the highest cursor the delta covers.
func (s *Service) ListHistoryDelta(ctx context.Context, creds emaildomain.Credentials, startCursor string) (*emaildomain.HistoryDelta, error) {
	srv, err := s.gmailService(ctx, creds)
	if err != nil {
		return nil, err
	}
	if err := s.limiter.WaitN(ctx, quotaUnitsPerHistoryList); err != nil {
		return nil, err
	}

	startID, err := strconv.ParseUint(startCursor, 10, 64)
	if err != nil {
		return nil, mailerr.New(mailerr.KindStaleCursor, fmt.Errorf("unparseable cursor %q: %w", startCursor, err))
	}

	resp, err := srv.Users.History.List("me").
		Context(ctx).
		StartHistoryId(startID).
		HistoryTypes("messageAdded").
		MaxResults(maxHistoryResults).
		Do()
	if err != nil {
		// A 404 on history.list means the cursor fell out of Gmail's
		// retention window.
		return nil, normalizeError(err, true)
	}

	delta := &emaildomain.HistoryDelta{
		NewCursor: strconv.FormatUint(resp.HistoryId, 10),
	}
	seen := make(map[string]bool)
	for _, h := range resp.History {
		for _, added := range h.MessagesAdded {
			msg := added.Message
			if msg == nil || msg.Id == "" || seen[msg.Id] {
				continue
			}
			seen[msg.Id] = true
			delta.Added = append(delta.Added, emaildomain.AddedMessage{
				ID:       msg.Id,
				ThreadID: msg.ThreadId,
			})
		}
	}
	return delta, nil
}

// FetchMessage retrieves the full message and converts it into the pipeline's
// message shape.
func (s *Service) FetchMessage(ctx context.Context, creds emaildomain.Credentials, id string) (*emaildomain.Message, error) {
	srv, err := s.gmailService(ctx, creds)
	if err != nil {
		return nil, err
	}
	if err := s.limiter.WaitN(ctx, quotaUnitsPerMessagesGet); err != nil {
		return nil, err
	}

	msg, err := srv.Users.Messages.Get("me", id).Context(ctx).Format("full").Do()
	if err != nil {
		return nil, normalizeError(err, false)
	}
	return convertMessage(msg), nil
}

// normalizeError maps a googleapi error onto the pipeline's error taxonomy.
// staleOn404 distinguishes history listing (404 = unresolvable cursor) from
// message fetches (404 = item disappeared).
func normalizeError(err error, staleOn404 bool) error {
	gerr, ok := err.(*googleapi.Error)
	if !ok {
		return mailerr.New(mailerr.KindTransient, err)
	}

	switch gerr.Code {
	case 429:
		return mailerr.RateLimited(err, retryAfterHint(gerr))
	case 404:
		if staleOn404 {
			return mailerr.New(mailerr.KindStaleCursor, err)
		}
		return mailerr.New(mailerr.KindNotFound, err)
	case 401:
		return mailerr.New(mailerr.KindAuth, err)
	case 403:
		for _, e := range gerr.Errors {
			switch e.Reason {
			case "rateLimitExceeded", "userRateLimitExceeded", "dailyLimitExceeded":
				return mailerr.RateLimited(err, retryAfterHint(gerr))
			}
		}
		return mailerr.New(mailerr.KindAuth, err)
	}
	return mailerr.New(mailerr.KindTransient, err)
}

func retryAfterHint(gerr *googleapi.Error) time.Duration {
	if gerr.Header == nil {
		return 0
	}
	v := gerr.Header.Get("Retry-After")
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return 0
}

// Helper functions

var htmlTagPattern = regexp.MustCompile(`<[^>]*>`)

func convertMessage(msg *gmail.Message) *emaildomain.Message {
	out := &emaildomain.Message{
		ID:       msg.Id,
		ThreadID: msg.ThreadId,
	}
	if msg.InternalDate > 0 {
		t := time.UnixMilli(msg.InternalDate).UTC()
		out.ReceivedAt = &t
	}
	if msg.Payload == nil {
		return out
	}

	out.Subject = getHeader(msg.Payload.Headers, "Subject")
	if out.Subject == "" {
		out.Subject = "(no subject)"
	}
	out.From = getHeader(msg.Payload.Headers, "From")
	if out.From == "" {
		out.From = "(unknown sender)"
	}

	body := extractPlainText(msg.Payload)
	if body == "" && msg.Snippet != "" {
		body = msg.Snippet
	}
	if len(body) > maxBodyTextChars {
		body = body[:maxBodyTextChars]
	}
	out.BodyText = body
	return out
}

func getHeader(headers []*gmail.MessagePartHeader, name string) string {
	for _, header := range headers {
		if header.Name == name {
			return header.Value
		}
	}
	return ""
}

// extractPlainText prefers a text/plain part and falls back to stripped HTML.
func extractPlainText(payload *gmail.MessagePart) string {
	var htmlBody string
	var plainBody string

	var walk func(part *gmail.MessagePart)
	walk = func(part *gmail.MessagePart) {
		if part == nil {
			return
		}
		if part.Body != nil && part.Body.Data != "" {
			if data, err := base64.URLEncoding.DecodeString(part.Body.Data); err == nil {
				switch part.MimeType {
				case "text/plain":
					if plainBody == "" {
						plainBody = string(data)
					}
				case "text/html":
					if htmlBody == "" {
						htmlBody = string(data)
					}
				}
			}
		}
		for _, p := range part.Parts {
			walk(p)
		}
	}
	walk(payload)

	if plainBody != "" {
		return strings.TrimSpace(plainBody)
	}
	if htmlBody == "" {
		return ""
	}
	text := htmlTagPattern.ReplaceAllString(htmlBody, " ")
	text = strings.ReplaceAll(text, "&nbsp;", " ")
	text = strings.ReplaceAll(text, "&lt;", "<")
	text = strings.ReplaceAll(text, "&gt;", ">")
	text = strings.ReplaceAll(text, "&amp;", "&")
	text = strings.ReplaceAll(text, "&quot;", "\"")
	return strings.Join(strings.Fields(text), " ")
}
