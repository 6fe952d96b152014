package api

import (
	"context"
	"encoding/base64"
	"net/http"

	"github.com/gin-gonic/gin"
)

// NotificationSink accepts one raw Gmail notification payload. The returned
// channel closes when processing finishes; push delivery does not wait on it.
type NotificationSink interface {
	Handle(ctx context.Context, data []byte) <-chan struct{}
}

type Handler struct {
	notifications NotificationSink
}

func NewHandler(notifications NotificationSink) *Handler {
	return &Handler{notifications: notifications}
}

func (h *Handler) Start(addr string) error {
	gin.SetMode(gin.ReleaseMode)
	r := gin.Default()
	SetupRoutes(r, h)
	return r.Run(addr)
}

// pushEnvelope is the wrapper Pub/Sub push delivery puts around the payload.
type pushEnvelope struct {
	Message struct {
		Data      string `json:"data"`
		MessageID string `json:"messageId"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

// HandlePush ingests a Pub/Sub push delivery. Malformed requests get a 2xx
// as well: push delivery retries on anything else, and a payload that failed
// to decode once will fail forever.
func (h *Handler) HandlePush(c *gin.Context) {
	var envelope pushEnvelope
	if err := c.ShouldBindJSON(&envelope); err != nil {
		c.JSON(http.StatusOK, gin.H{"status": "dropped", "error": "invalid envelope"})
		return
	}

	data, err := base64.StdEncoding.DecodeString(envelope.Message.Data)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"status": "dropped", "error": "invalid base64 data"})
		return
	}

	// Respond as soon as the notification is queued; push delivery has a
	// response deadline the sync cycle can easily exceed.
	h.notifications.Handle(context.Background(), data)
	c.JSON(http.StatusOK, gin.H{"status": "accepted"})
}
