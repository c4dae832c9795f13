package notes

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/praxia-health/notes-platform/pkg/common/models"
)

// VersioningService derives a new editable draft from an existing note,
// preserving the back-link to its predecessor. The source is never mutated;
// locked notes are superseded this way rather than deleted.
type VersioningService struct {
	store  Store
	cache  *Cache
	events EventPublisher
}

func NewVersioningService(store Store, cache *Cache, events EventPublisher) *VersioningService {
	return &VersioningService{store: store, cache: cache, events: events}
}

// CreateVersion copies the source's content and diagnosis into a fresh
// draft with version = source.version + 1. Advisory validation results do
// not carry over; a new pass must be requested against the new content.
// The store's uniqueness guarantee on the predecessor link keeps the chain
// linear: deriving a second version from the same source fails with
// ErrConcurrentModification.
func (v *VersioningService) CreateVersion(ctx context.Context, centerID string, sourceNoteID uuid.UUID, actor string) (models.NoteRecord, error) {
	source, err := v.store.Get(ctx, centerID, sourceNoteID)
	if err != nil {
		return models.NoteRecord{}, err
	}

	content, err := copyContent(source.Content)
	if err != nil {
		return models.NoteRecord{}, err
	}
	diagnosis, err := copyDiagnosis(source.Diagnosis)
	if err != nil {
		return models.NoteRecord{}, err
	}

	now := time.Now().UTC()
	sourceID := source.ID
	next := models.NoteRecord{
		ID:                uuid.New(),
		CenterID:          source.CenterID,
		PatientID:         source.PatientID,
		TherapistID:       source.TherapistID,
		SessionID:         source.SessionID,
		TemplateType:      source.TemplateType,
		Content:           content,
		Diagnosis:         diagnosis,
		Status:            models.StatusDraft,
		Version:           source.Version + 1,
		PreviousVersionID: &sourceID,
		Revision:          1,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := v.store.Create(ctx, &next); err != nil {
		return models.NoteRecord{}, err
	}

	_ = v.store.AppendAuditLog(ctx, models.NoteAuditLog{
		CenterID: centerID,
		NoteID:   next.ID,
		Actor:    actor,
		Action:   "note_version_created",
		Payload: map[string]interface{}{
			"source_note_id": sourceID.String(),
			"version":        next.Version,
		},
	})
	if v.events != nil {
		_ = v.events.PublishEvent(ctx, EventNoteVersionCreated, eventSource, map[string]interface{}{
			"center_id":      centerID,
			"note_id":        next.ID.String(),
			"source_note_id": sourceID.String(),
			"version":        next.Version,
		})
	}

	return next, nil
}

// Deep copies via JSON round-trip so the new draft shares no slices or
// nested pointers with the frozen source.

func copyContent(content models.NoteContent) (models.NoteContent, error) {
	data, err := json.Marshal(content)
	if err != nil {
		return models.NoteContent{}, err
	}
	var out models.NoteContent
	if err := json.Unmarshal(data, &out); err != nil {
		return models.NoteContent{}, err
	}
	return out, nil
}

func copyDiagnosis(diagnosis models.Diagnosis) (models.Diagnosis, error) {
	data, err := json.Marshal(diagnosis)
	if err != nil {
		return models.Diagnosis{}, err
	}
	var out models.Diagnosis
	if err := json.Unmarshal(data, &out); err != nil {
		return models.Diagnosis{}, err
	}
	return out, nil
}
