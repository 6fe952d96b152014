package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	connectiondomain "dealsync-backend/internal/connection/domain"
	mailsync "dealsync-backend/internal/sync"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"
)

const (
	unknownMailboxWarnTTL = 15 * time.Minute
	unknownMailboxWarnCap = 1000
)

// GmailNotification is the decoded Pub/Sub payload Gmail publishes on every
// mailbox change.
type GmailNotification struct {
	EmailAddress string `json:"emailAddress"`
	HistoryID    uint64 `json:"historyId"`
}

// Processor handles one notification end to end.
type Processor interface {
	ProcessNotification(ctx context.Context, address string, observedCursor string) error
}

// Service pulls Gmail push notifications from a Pub/Sub subscription and
// feeds them to the sync engine, serialized per mailbox.
type Service struct {
	pubsubClient *pubsub.Client
	processor    Processor
	dispatcher   *Dispatcher
	warns        *warnCache
	topicName    string
	subName      string
}

func NewService(projectID, topicName, credentialsFile string, processor Processor) (*Service, error) {
	ctx := context.Background()

	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create pubsub client: %v", err)
	}

	return &Service{
		pubsubClient: client,
		processor:    processor,
		dispatcher:   NewDispatcher(),
		warns:        newWarnCache(unknownMailboxWarnTTL, unknownMailboxWarnCap),
		topicName:    topicName,
		subName:      topicName + "-sub", // Convention: topic-sub
	}, nil
}

// NewDirectSink builds the notification handler without a Pub/Sub client,
// for deployments that receive notifications through HTTP push only. Start
// must not be called on it.
func NewDirectSink(processor Processor) *Service {
	return &Service{
		processor:  processor,
		dispatcher: NewDispatcher(),
		warns:      newWarnCache(unknownMailboxWarnTTL, unknownMailboxWarnCap),
	}
}

func (s *Service) Start(ctx context.Context) {
	log.Printf("[PubSub] Starting notification service with topic: %s, subscription: %s", s.topicName, s.subName)

	// Ensure subscription exists
	sub := s.pubsubClient.Subscription(s.subName)
	exists, err := sub.Exists(ctx)
	if err != nil {
		log.Printf("[PubSub] Error checking subscription existence: %v", err)
		return
	}

	if !exists {
		topic := s.pubsubClient.Topic(s.topicName)
		topicExists, err := topic.Exists(ctx)
		if err != nil {
			log.Printf("[PubSub] Error checking topic existence: %v", err)
			return
		}
		if !topicExists {
			log.Printf("[PubSub] Topic %s does not exist, cannot create subscription", s.topicName)
			return
		}

		sub, err = s.pubsubClient.CreateSubscription(ctx, s.subName, pubsub.SubscriptionConfig{
			Topic:       topic,
			AckDeadline: 10 * time.Second,
		})
		if err != nil {
			log.Printf("[PubSub] Failed to create subscription: %v", err)
			return
		}
		log.Printf("[PubSub] Created subscription: %s", s.subName)
	}

	log.Printf("[PubSub] Listening for messages on subscription: %s", s.subName)
	err = sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		// Ack once the queued sync has run. Processing errors are acked too:
		// retryable failures were already retried inside the engine, and
		// redelivering a fatally failed notification cannot help.
		<-s.Handle(ctx, msg.Data)
		msg.Ack()
	})
	if err != nil {
		log.Printf("[PubSub] Error receiving messages: %v", err)
	}
}

// Handle decodes one raw notification payload and hands it to the per-mailbox
// queue. Malformed payloads are dropped; redelivering them can never succeed.
// The returned channel closes once the notification has been processed (or
// dropped).
func (s *Service) Handle(ctx context.Context, data []byte) <-chan struct{} {
	dropped := make(chan struct{})
	close(dropped)

	var notification GmailNotification
	if err := json.Unmarshal(data, &notification); err != nil {
		log.Printf("[PubSub] Dropping malformed notification %q: %v", data, err)
		return dropped
	}
	if notification.EmailAddress == "" || notification.HistoryID == 0 {
		log.Printf("[PubSub] Dropping incomplete notification %q", data)
		return dropped
	}

	address := connectiondomain.NormalizeAddress(notification.EmailAddress)
	cursor := strconv.FormatUint(notification.HistoryID, 10)

	return s.dispatcher.Submit(address, func() {
		err := s.processor.ProcessNotification(ctx, address, cursor)
		if err == nil {
			return
		}
		if errors.Is(err, mailsync.ErrUnknownMailbox) {
			if s.warns.shouldWarn(address) {
				log.Printf("[PubSub] Notification for unknown mailbox %s, ignoring", address)
			}
			return
		}
		log.Printf("[PubSub] Sync failed for %s (cursor %s): %v", address, cursor, err)
	})
}

// Drain waits for in-flight notification work to finish, for shutdown.
func (s *Service) Drain() {
	s.dispatcher.Wait()
}
