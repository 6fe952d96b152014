package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

type sinkRecorder struct {
	payloads [][]byte
}

func (s *sinkRecorder) Handle(ctx context.Context, data []byte) <-chan struct{} {
	s.payloads = append(s.payloads, data)
	done := make(chan struct{})
	close(done)
	return done
}

func newTestRouter(sink NotificationSink) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	SetupRoutes(r, NewHandler(sink))
	return r
}

func TestHealth(t *testing.T) {
	r := newTestRouter(&sinkRecorder{})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}

func TestHandlePushDecodesEnvelope(t *testing.T) {
	sink := &sinkRecorder{}
	r := newTestRouter(sink)

	payload := `{"emailAddress":"creator@gmail.com","historyId":4711}`
	body, _ := json.Marshal(map[string]interface{}{
		"message": map[string]string{
			"data":      base64.StdEncoding.EncodeToString([]byte(payload)),
			"messageId": "42",
		},
		"subscription": "projects/p/subscriptions/gmail-updates-sub",
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/notifications/push", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if len(sink.payloads) != 1 || string(sink.payloads[0]) != payload {
		t.Errorf("sink got %q, want decoded notification payload", sink.payloads)
	}
}

func TestHandlePushMalformedStillAcked(t *testing.T) {
	sink := &sinkRecorder{}
	r := newTestRouter(sink)

	for _, body := range []string{`not json`, `{"message":{"data":"%%%"}}`} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/notifications/push", bytes.NewReader([]byte(body)))
		req.Header.Set("Content-Type", "application/json")
		r.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("body %q: status = %d, want 200 so push delivery stops retrying", body, w.Code)
		}
	}
	if len(sink.payloads) != 0 {
		t.Errorf("malformed envelopes reached the sink: %d", len(sink.payloads))
	}
}
