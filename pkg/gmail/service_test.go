package gmail

import (
	"encoding/base64"
	"errors"
	"net/http"
	"testing"
	"time"

	"dealsync-backend/internal/mailerr"

	gmailapi "google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
)

func TestNormalizeErrorKinds(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		staleOn404 bool
		want       mailerr.Kind
	}{
		{"429", &googleapi.Error{Code: 429}, false, mailerr.KindRateLimited},
		{"404 on history list", &googleapi.Error{Code: 404}, true, mailerr.KindStaleCursor},
		{"404 on message fetch", &googleapi.Error{Code: 404}, false, mailerr.KindNotFound},
		{"401", &googleapi.Error{Code: 401}, false, mailerr.KindAuth},
		{"403 quota", &googleapi.Error{Code: 403, Errors: []googleapi.ErrorItem{{Reason: "userRateLimitExceeded"}}}, false, mailerr.KindRateLimited},
		{"403 forbidden", &googleapi.Error{Code: 403}, false, mailerr.KindAuth},
		{"500", &googleapi.Error{Code: 500}, false, mailerr.KindTransient},
		{"plain error", errors.New("boom"), false, mailerr.KindTransient},
	}
	for _, tc := range cases {
		got := mailerr.KindOf(normalizeError(tc.err, tc.staleOn404))
		if got != tc.want {
			t.Errorf("%s: kind = %s, want %s", tc.name, got, tc.want)
		}
	}
}

func TestNormalizeErrorRetryAfter(t *testing.T) {
	gerr := &googleapi.Error{Code: 429, Header: http.Header{"Retry-After": []string{"7"}}}
	err := normalizeError(gerr, false)
	if got := mailerr.RetryAfterOf(err); got != 7*time.Second {
		t.Errorf("retry-after hint = %s, want 7s", got)
	}
}

func encodePart(s string) string {
	return base64.URLEncoding.EncodeToString([]byte(s))
}

func TestConvertMessagePrefersPlainText(t *testing.T) {
	msg := &gmailapi.Message{
		Id:           "m1",
		ThreadId:     "t1",
		InternalDate: time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC).UnixMilli(),
		Payload: &gmailapi.MessagePart{
			Headers: []*gmailapi.MessagePartHeader{
				{Name: "Subject", Value: "Collab"},
				{Name: "From", Value: "brand@acme.com"},
			},
			Parts: []*gmailapi.MessagePart{
				{MimeType: "text/html", Body: &gmailapi.MessagePartBody{Data: encodePart("<p>Hi &amp; hello</p>")}},
				{MimeType: "text/plain", Body: &gmailapi.MessagePartBody{Data: encodePart("Hi there")}},
			},
		},
	}
	out := convertMessage(msg)
	if out.Subject != "Collab" || out.From != "brand@acme.com" {
		t.Errorf("headers = %q / %q", out.Subject, out.From)
	}
	if out.BodyText != "Hi there" {
		t.Errorf("body = %q, want plain text part", out.BodyText)
	}
	if out.ReceivedAt == nil {
		t.Error("expected receivedAt from internal date")
	}
}

func TestConvertMessageStripsHTMLFallback(t *testing.T) {
	msg := &gmailapi.Message{
		Id: "m2",
		Payload: &gmailapi.MessagePart{
			Parts: []*gmailapi.MessagePart{
				{MimeType: "text/html", Body: &gmailapi.MessagePartBody{Data: encodePart("<div>Deal&nbsp;terms</div>")}},
			},
		},
	}
	out := convertMessage(msg)
	if out.BodyText != "Deal terms" {
		t.Errorf("body = %q", out.BodyText)
	}
	if out.Subject != "(no subject)" || out.From != "(unknown sender)" {
		t.Errorf("defaults = %q / %q", out.Subject, out.From)
	}
}
