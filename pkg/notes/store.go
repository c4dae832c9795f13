package notes

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/praxia-health/notes-platform/pkg/common/models"
)

// Store is the keyed record store backing the lifecycle engine. Every call
// is scoped by centerID; implementations must never leak records across
// centers.
//
// The conditional mutations (UpdateContent, UpdateStatus, SignAndLock,
// Delete) check the note's current state and the write as one atomic
// operation against the store, and classify a failed condition into the
// package error taxonomy: ErrNoteNotFound, ErrImmutableNote,
// ErrInvalidTransition, or ErrConcurrentModification.
type Store interface {
	Create(ctx context.Context, note *models.NoteRecord) error
	Get(ctx context.Context, centerID string, noteID uuid.UUID) (models.NoteRecord, error)
	Query(ctx context.Context, centerID string, q models.NoteQuery) ([]models.NoteRecord, error)

	// UpdateContent replaces the mutable fields (template type, content,
	// diagnosis) if the note is still editable and expectedRevision matches.
	UpdateContent(ctx context.Context, centerID string, noteID uuid.UUID, expectedRevision int64, templateType models.NoteTemplateType, content models.NoteContent, diagnosis models.Diagnosis, at time.Time) error

	// UpdateStatus performs draft/pending moves conditionally on the
	// current status being from.
	UpdateStatus(ctx context.Context, centerID string, noteID uuid.UUID, from, to models.NoteStatus, at time.Time) error

	// SignAndLock sets signed, signature, locked, and status=locked in one
	// conditional write gated on the note still being draft or pending.
	SignAndLock(ctx context.Context, centerID string, noteID uuid.UUID, sig models.ElectronicSignature) error

	// MergeValidation writes only the advisory aiValidation field. Permitted
	// on any status, including locked.
	MergeValidation(ctx context.Context, centerID string, noteID uuid.UUID, result models.AIValidationResult) error

	// AppendAttachment appends attachment metadata. Permitted on any status.
	AppendAttachment(ctx context.Context, centerID string, noteID uuid.UUID, att models.Attachment) error

	// Delete removes a non-locked note.
	Delete(ctx context.Context, centerID string, noteID uuid.UUID) error

	AppendAuditLog(ctx context.Context, entry models.NoteAuditLog) error
	ListAuditLogs(ctx context.Context, centerID string, noteID uuid.UUID, limit int) ([]models.NoteAuditLog, error)
}
