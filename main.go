package main

import (
	"context"
	"fmt"
	"log"
	"strings"

	api "dealsync-backend/cmd/api"
	"dealsync-backend/internal/classifier"
	connectiondomain "dealsync-backend/internal/connection/domain"
	connectionRepo "dealsync-backend/internal/connection/repository"
	dealdomain "dealsync-backend/internal/deal/domain"
	dealRepo "dealsync-backend/internal/deal/repository"
	dealUsecase "dealsync-backend/internal/deal/usecase"
	"dealsync-backend/internal/notification"
	mailsync "dealsync-backend/internal/sync"
	"dealsync-backend/internal/watch"
	"dealsync-backend/pkg/config"
	"dealsync-backend/pkg/database"
	"dealsync-backend/pkg/gmail"
	"dealsync-backend/pkg/openai"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize database
	db, err := database.NewPostgresConnection(cfg)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	// Auto-migrate database schemas
	if err := db.AutoMigrate(
		&connectiondomain.Connection{},
		&dealdomain.Deal{},
		&dealdomain.Reminder{},
		&dealdomain.SyncLogEntry{},
		&dealdomain.DealExtraction{},
	); err != nil {
		log.Fatal("Failed to migrate database:", err)
	}

	// Initialize repositories (dependency injection)
	connections := connectionRepo.NewConnectionRepository(db)
	deals := dealRepo.NewDealRepository(db)
	reminders := dealRepo.NewReminderRepository(db)
	syncLogs := dealRepo.NewSyncLogRepository(db)
	extractions := dealRepo.NewDealExtractionRepository(db)

	// Initialize external services
	gmailService := gmail.NewService(cfg.GoogleClientID, cfg.GoogleClientSecret)
	extractor := openai.NewService(cfg.OpenAIAPIKey, cfg.OpenAIModel)

	// Assemble the sync pipeline
	reconciler := dealUsecase.NewReconciler(deals, reminders, syncLogs, extractions)
	watchManager := watch.NewManager(gmailService, connections, watchTopicName(cfg))
	engine := mailsync.NewEngine(connections, gmailService, watchManager, classifier.NewGate(), extractor, reconciler)

	ctx := context.Background()
	go watchManager.RunSweeper(ctx, cfg.WatchSweepInterval)

	// Initialize Notification Service (Pub/Sub)
	// Only start if project ID is configured
	var notifService *notification.Service
	if cfg.GoogleProjectID != "" {
		notifService, err = notification.NewService(cfg.GoogleProjectID, shortTopicName(cfg.PubSubTopic), cfg.GoogleCredentials, engine)
		if err != nil {
			log.Printf("[ERROR] Failed to initialize notification service: %v", err)
		} else {
			go notifService.Start(ctx)
		}
	} else {
		log.Printf("[WARN] GCP_PROJECT_ID not configured, notification service disabled")
	}

	// Initialize HTTP handler
	handler := api.NewHandler(pushSink(notifService, engine))

	log.Printf("Server starting on port %s", cfg.Port)
	if err := handler.Start(":" + cfg.Port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}

// watchTopicName returns the full Pub/Sub resource name Gmail's watch call
// requires.
func watchTopicName(cfg *config.Config) string {
	if strings.HasPrefix(cfg.PubSubTopic, "projects/") {
		return cfg.PubSubTopic
	}
	return fmt.Sprintf("projects/%s/topics/%s", cfg.GoogleProjectID, cfg.PubSubTopic)
}

// shortTopicName strips a full resource name down to the bare topic id the
// pubsub client expects.
func shortTopicName(topic string) string {
	if parts := strings.Split(topic, "/"); len(parts) > 1 {
		return parts[len(parts)-1]
	}
	return topic
}

// pushSink routes HTTP push deliveries through the notification service when
// it is running, so pull and push share the per-mailbox queue. Without
// Pub/Sub the push endpoint still works against the engine directly.
func pushSink(notifService *notification.Service, engine *mailsync.Engine) api.NotificationSink {
	if notifService != nil {
		return notifService
	}
	return notification.NewDirectSink(engine)
}
