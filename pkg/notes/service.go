package notes

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/praxia-health/notes-platform/pkg/common/logger"
	"github.com/praxia-health/notes-platform/pkg/common/models"
)

const (
	EventNoteCreated         = "note.created"
	EventNoteUpdated         = "note.updated"
	EventNoteSubmitted       = "note.submitted"
	EventNoteRecalled        = "note.recalled"
	EventNoteSigned          = "note.signed"
	EventNoteDeleted         = "note.deleted"
	EventNoteVersionCreated  = "note.version.created"
	EventValidationRequested = "note.validation.requested"
	EventValidationCompleted = "note.validation.completed"

	eventSource = "notes-service"
)

// EventPublisher is the slice of the Kafka producer the service needs.
type EventPublisher interface {
	PublishEvent(ctx context.Context, eventType string, source string, data map[string]interface{}) error
}

// Service orchestrates the note lifecycle: creation, guarded edits, the
// submit/recall moves, deletion, attachments, and the async validation
// request path. Signing and version derivation live in SignatureService and
// VersioningService.
type Service struct {
	store   Store
	cache   *Cache
	events  EventPublisher
	catalog Catalog
}

func NewService(store Store, cache *Cache, events EventPublisher, catalog Catalog) *Service {
	return &Service{store: store, cache: cache, events: events, catalog: catalog}
}

func (s *Service) Create(ctx context.Context, centerID string, req models.CreateNoteRequest, actor string) (models.NoteRecord, error) {
	if strings.TrimSpace(centerID) == "" {
		return models.NoteRecord{}, fmt.Errorf("center id is required")
	}
	if strings.TrimSpace(req.PatientID) == "" || strings.TrimSpace(req.TherapistID) == "" {
		return models.NoteRecord{}, fmt.Errorf("patient_id and therapist_id are required")
	}
	if _, ok := s.catalog.Lookup(req.TemplateType); !ok {
		return models.NoteRecord{}, fmt.Errorf("unknown template type %q", req.TemplateType)
	}

	now := time.Now().UTC()
	note := models.NoteRecord{
		ID:           uuid.New(),
		CenterID:     centerID,
		PatientID:    req.PatientID,
		TherapistID:  req.TherapistID,
		SessionID:    req.SessionID,
		TemplateType: req.TemplateType,
		Content:      req.Content,
		Diagnosis:    req.Diagnosis,
		Status:       models.StatusDraft,
		Version:      1,
		Revision:     1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.Create(ctx, &note); err != nil {
		return models.NoteRecord{}, err
	}

	s.audit(ctx, centerID, note.ID, actor, "note_created", map[string]interface{}{
		"patient_id":    note.PatientID,
		"template_type": note.TemplateType,
	})
	s.publish(ctx, EventNoteCreated, centerID, note.ID)
	return note, nil
}

func (s *Service) Get(ctx context.Context, centerID string, noteID uuid.UUID) (models.NoteRecord, error) {
	if note, ok := s.cache.Get(ctx, centerID, noteID); ok {
		return note, nil
	}
	note, err := s.store.Get(ctx, centerID, noteID)
	if err != nil {
		return models.NoteRecord{}, err
	}
	s.cache.Set(ctx, note)
	return note, nil
}

func (s *Service) Query(ctx context.Context, centerID string, q models.NoteQuery) ([]models.NoteRecord, error) {
	return s.store.Query(ctx, centerID, q)
}

// UpdateContent replaces the mutable fields of an editable note. The
// request's revision must match the stored revision; a stale token fails
// with ErrConcurrentModification and no partial write.
func (s *Service) UpdateContent(ctx context.Context, centerID string, noteID uuid.UUID, req models.UpdateNoteRequest, actor string) (models.NoteRecord, error) {
	current, err := s.store.Get(ctx, centerID, noteID)
	if err != nil {
		return models.NoteRecord{}, err
	}

	templateType := current.TemplateType
	if req.TemplateType != "" {
		templateType = req.TemplateType
	}
	if _, ok := s.catalog.Lookup(templateType); !ok {
		return models.NoteRecord{}, fmt.Errorf("unknown template type %q", templateType)
	}
	content := current.Content
	if req.Content != nil {
		content = *req.Content
	}
	diagnosis := current.Diagnosis
	if req.Diagnosis != nil {
		diagnosis = *req.Diagnosis
	}

	now := time.Now().UTC()
	if err := s.store.UpdateContent(ctx, centerID, noteID, req.Revision, templateType, content, diagnosis, now); err != nil {
		return models.NoteRecord{}, err
	}
	s.cache.Invalidate(ctx, centerID, noteID)

	s.audit(ctx, centerID, noteID, actor, "note_updated", map[string]interface{}{
		"revision": req.Revision + 1,
	})
	s.publish(ctx, EventNoteUpdated, centerID, noteID)
	return s.store.Get(ctx, centerID, noteID)
}

// Submit moves a draft to pending review. Per the lifecycle contract there
// is no precondition beyond existence; completeness is advisory (see
// CheckCompleteness).
func (s *Service) Submit(ctx context.Context, centerID string, noteID uuid.UUID, actor string) (models.NoteRecord, error) {
	return s.transition(ctx, centerID, noteID, models.StatusDraft, models.StatusPending, "note_submitted", EventNoteSubmitted, actor)
}

// Recall moves a pending note back to draft for further edits.
func (s *Service) Recall(ctx context.Context, centerID string, noteID uuid.UUID, actor string) (models.NoteRecord, error) {
	return s.transition(ctx, centerID, noteID, models.StatusPending, models.StatusDraft, "note_recalled", EventNoteRecalled, actor)
}

func (s *Service) transition(ctx context.Context, centerID string, noteID uuid.UUID, from, to models.NoteStatus, action, eventType, actor string) (models.NoteRecord, error) {
	if err := s.store.UpdateStatus(ctx, centerID, noteID, from, to, time.Now().UTC()); err != nil {
		return models.NoteRecord{}, err
	}
	s.cache.Invalidate(ctx, centerID, noteID)
	s.audit(ctx, centerID, noteID, actor, action, map[string]interface{}{
		"from": from,
		"to":   to,
	})
	s.publish(ctx, eventType, centerID, noteID)
	return s.store.Get(ctx, centerID, noteID)
}

// Delete removes a non-locked note. Locked notes fail with ErrImmutableNote
// and are only ever superseded through versioning.
func (s *Service) Delete(ctx context.Context, centerID string, noteID uuid.UUID, actor string) error {
	if err := s.store.Delete(ctx, centerID, noteID); err != nil {
		return err
	}
	s.cache.Invalidate(ctx, centerID, noteID)
	s.audit(ctx, centerID, noteID, actor, "note_deleted", nil)
	s.publish(ctx, EventNoteDeleted, centerID, noteID)
	return nil
}

// AddAttachment appends attachment metadata. Attachments are advisory and
// permitted on any status, including locked; clinical content is untouched.
func (s *Service) AddAttachment(ctx context.Context, centerID string, noteID uuid.UUID, req models.AddAttachmentRequest, actor string) (models.Attachment, error) {
	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.StorageURL) == "" {
		return models.Attachment{}, fmt.Errorf("name and storage_url are required")
	}
	att := models.Attachment{
		ID:          uuid.New(),
		Name:        req.Name,
		ContentType: req.ContentType,
		StorageURL:  req.StorageURL,
		SizeBytes:   req.SizeBytes,
		UploadedBy:  req.UploadedBy,
		UploadedAt:  time.Now().UTC(),
	}
	if err := s.store.AppendAttachment(ctx, centerID, noteID, att); err != nil {
		return models.Attachment{}, err
	}
	s.cache.Invalidate(ctx, centerID, noteID)
	s.audit(ctx, centerID, noteID, actor, "attachment_added", map[string]interface{}{
		"name": att.Name,
		"size": att.SizeBytes,
	})
	return att, nil
}

// RequestValidation publishes an async validation request for the worker.
// The lifecycle never depends on the outcome.
func (s *Service) RequestValidation(ctx context.Context, centerID string, noteID uuid.UUID, actor string) error {
	if _, err := s.store.Get(ctx, centerID, noteID); err != nil {
		return err
	}
	s.audit(ctx, centerID, noteID, actor, "validation_requested", nil)
	s.publish(ctx, EventValidationRequested, centerID, noteID)
	return nil
}

// CheckCompleteness reports which required template sections are still
// empty. Advisory only: it gates nothing.
func (s *Service) CheckCompleteness(ctx context.Context, centerID string, noteID uuid.UUID) error {
	note, err := s.Get(ctx, centerID, noteID)
	if err != nil {
		return err
	}
	return s.catalog.Validate(note.TemplateType, note.Content)
}

func (s *Service) ListAuditLogs(ctx context.Context, centerID string, noteID uuid.UUID, limit int) ([]models.NoteAuditLog, error) {
	return s.store.ListAuditLogs(ctx, centerID, noteID, limit)
}

func (s *Service) audit(ctx context.Context, centerID string, noteID uuid.UUID, actor, action string, payload map[string]interface{}) {
	if actor == "" {
		actor = "system"
	}
	if payload == nil {
		payload = map[string]interface{}{}
	}
	err := s.store.AppendAuditLog(ctx, models.NoteAuditLog{
		CenterID: centerID,
		NoteID:   noteID,
		Actor:    actor,
		Action:   action,
		Payload:  payload,
	})
	if err != nil {
		logger.Log.WithError(err).WithField("action", action).Warn("failed to append audit log")
	}
}

func (s *Service) publish(ctx context.Context, eventType, centerID string, noteID uuid.UUID) {
	if s.events == nil {
		return
	}
	err := s.events.PublishEvent(ctx, eventType, eventSource, map[string]interface{}{
		"center_id": centerID,
		"note_id":   noteID.String(),
	})
	if err != nil {
		logger.Log.WithError(err).WithField("event_type", eventType).Warn("failed to publish note event")
	}
}
