package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/praxia-health/notes-platform/pkg/common/config"
	"github.com/praxia-health/notes-platform/pkg/common/database"
	"github.com/praxia-health/notes-platform/pkg/common/kafka"
	"github.com/praxia-health/notes-platform/pkg/common/logger"
	"github.com/praxia-health/notes-platform/pkg/common/models"
	"github.com/praxia-health/notes-platform/pkg/notes"
	"github.com/praxia-health/notes-platform/pkg/validation"
)

// The worker consumes validation requests from the notes topic and runs the
// AI collaborator against each referenced note. Results are merged back as
// an advisory overlay; the note lifecycle is never touched from here.
func main() {
	logger.Init()
	cfg := config.Load()

	db, err := database.GetPostgres()
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to connect to postgres")
	}

	repo := notes.NewRepository(db)
	cache := notes.NewCache(database.GetRedis(), cfg.NoteCacheTTL)
	producer := kafka.NewProducer(cfg.NotesTopic)
	defer producer.Close()

	collaborator := validation.NewHTTPCollaborator(cfg.ValidationBaseURL, cfg.ValidationAPIKey, cfg.ValidationTimeout)
	gateway := validation.NewGateway(collaborator, repo, cache, producer)

	consumer := kafka.NewConsumer(cfg.NotesTopic, cfg.KafkaGroupID)
	defer consumer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		logger.Log.Info("Shutting down validation worker...")
		cancel()
	}()

	logger.Log.WithField("topic", cfg.NotesTopic).Info("Validation worker consuming")
	err = consumer.Consume(ctx, func(ctx context.Context, event models.Event) error {
		if event.Type != notes.EventValidationRequested {
			return nil
		}
		centerID, noteID, err := parseTarget(event)
		if err != nil {
			// Malformed events are committed and dropped, retrying cannot fix them.
			logger.Log.WithError(err).WithField("event_id", event.ID).Warn("dropping malformed validation request")
			return nil
		}
		if _, err := gateway.Validate(ctx, centerID, noteID); err != nil {
			if notes.IsNotFound(err) {
				logger.Log.WithField("note_id", noteID).Warn("note deleted before validation ran")
				return nil
			}
			return err
		}
		return nil
	})
	if err != nil && err != context.Canceled {
		logger.Log.WithError(err).Error("validation worker stopped with error")
	}
	logger.Log.Info("Validation worker stopped")
}

func parseTarget(event models.Event) (string, uuid.UUID, error) {
	centerID, _ := event.Data["center_id"].(string)
	rawNote, _ := event.Data["note_id"].(string)
	if centerID == "" || rawNote == "" {
		return "", uuid.Nil, fmt.Errorf("event %s missing center_id or note_id", event.ID)
	}
	noteID, err := uuid.Parse(rawNote)
	if err != nil {
		return "", uuid.Nil, fmt.Errorf("event %s has invalid note_id: %w", event.ID, err)
	}
	return centerID, noteID, nil
}
