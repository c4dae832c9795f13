package validation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/praxia-health/notes-platform/pkg/common/logger"
	"github.com/praxia-health/notes-platform/pkg/common/models"
)

// ErrValidationUnavailable means the collaborator failed or is unreachable.
// Recoverable: the note's prior aiValidation is left untouched, and the
// lifecycle is never blocked.
var ErrValidationUnavailable = errors.New("validation collaborator unavailable")

const EventValidationCompleted = "note.validation.completed"

// Recorder is the slice of the note store the gateway needs: a read, and
// the advisory write path that touches only the aiValidation field.
type Recorder interface {
	Get(ctx context.Context, centerID string, noteID uuid.UUID) (models.NoteRecord, error)
	MergeValidation(ctx context.Context, centerID string, noteID uuid.UUID, result models.AIValidationResult) error
}

// Invalidator drops a cached note after an advisory write.
type Invalidator interface {
	Invalidate(ctx context.Context, centerID string, noteID uuid.UUID)
}

type EventPublisher interface {
	PublishEvent(ctx context.Context, eventType string, source string, data map[string]interface{}) error
}

// Gateway integrates the AI collaborator as a strictly advisory layer. Its
// write path never changes clinical content, diagnosis, or status, so it is
// permitted even on locked notes. Results are idempotent and never
// authoritative: a pass computed against stale content is superseded by the
// next pass.
type Gateway struct {
	collaborator Collaborator
	recorder     Recorder
	cache        Invalidator
	events       EventPublisher
}

func NewGateway(collaborator Collaborator, recorder Recorder, cache Invalidator, events EventPublisher) *Gateway {
	return &Gateway{collaborator: collaborator, recorder: recorder, cache: cache, events: events}
}

// Validate runs one pass against the note's current content and merges the
// result. Suggested diagnoses land in the result only; the therapist's
// adopted diagnosis.primary is never overwritten.
func (g *Gateway) Validate(ctx context.Context, centerID string, noteID uuid.UUID) (models.AIValidationResult, error) {
	note, err := g.recorder.Get(ctx, centerID, noteID)
	if err != nil {
		return models.AIValidationResult{}, err
	}

	result, err := g.collaborator.Validate(ctx, note.Content, note.Diagnosis)
	if err != nil {
		logger.Log.WithError(err).WithField("note_id", noteID).Warn("validation collaborator failed")
		return models.AIValidationResult{}, fmt.Errorf("%w: %v", ErrValidationUnavailable, err)
	}

	if result.ID == uuid.Nil {
		result.ID = uuid.New()
	}
	result.NoteID = noteID
	if result.Timestamp.IsZero() {
		result.Timestamp = time.Now().UTC()
	}

	if err := g.recorder.MergeValidation(ctx, centerID, noteID, result); err != nil {
		return models.AIValidationResult{}, err
	}
	g.invalidate(ctx, centerID, noteID)

	if g.events != nil {
		_ = g.events.PublishEvent(ctx, EventValidationCompleted, "validation-gateway", map[string]interface{}{
			"center_id":       centerID,
			"note_id":         noteID.String(),
			"coherence_score": result.CoherenceScore,
		})
	}
	return result, nil
}

// MarkSuggestionReviewed flips the reviewed flag on one suggestion so
// unadopted advice does not linger as silently stale. Goes through the same
// advisory write path, so it works on locked notes too.
func (g *Gateway) MarkSuggestionReviewed(ctx context.Context, centerID string, noteID uuid.UUID, suggestionIndex int) error {
	note, err := g.recorder.Get(ctx, centerID, noteID)
	if err != nil {
		return err
	}
	if note.AIValidation == nil {
		return fmt.Errorf("note %s has no validation result", noteID)
	}
	if suggestionIndex < 0 || suggestionIndex >= len(note.AIValidation.Suggestions) {
		return fmt.Errorf("suggestion index %d out of range", suggestionIndex)
	}

	result := *note.AIValidation
	result.Suggestions[suggestionIndex].Reviewed = true
	if err := g.recorder.MergeValidation(ctx, centerID, noteID, result); err != nil {
		return err
	}
	g.invalidate(ctx, centerID, noteID)
	return nil
}

func (g *Gateway) invalidate(ctx context.Context, centerID string, noteID uuid.UUID) {
	if g.cache != nil {
		g.cache.Invalidate(ctx, centerID, noteID)
	}
}
