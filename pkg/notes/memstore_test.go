package notes

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/praxia-health/notes-platform/pkg/common/models"
)

// memStore mirrors the Repository's conditional-update semantics in memory
// so the services can be tested without postgres.
type memStore struct {
	mu         sync.Mutex
	notes      map[string]map[uuid.UUID]models.NoteRecord
	successors map[uuid.UUID]bool
	audits     []models.NoteAuditLog
}

var _ Store = (*memStore)(nil)

func newMemStore() *memStore {
	return &memStore{
		notes:      map[string]map[uuid.UUID]models.NoteRecord{},
		successors: map[uuid.UUID]bool{},
	}
}

func (m *memStore) Create(ctx context.Context, note *models.NoteRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if note.PreviousVersionID != nil {
		if m.successors[*note.PreviousVersionID] {
			return ErrConcurrentModification
		}
		m.successors[*note.PreviousVersionID] = true
	}
	if m.notes[note.CenterID] == nil {
		m.notes[note.CenterID] = map[uuid.UUID]models.NoteRecord{}
	}
	m.notes[note.CenterID][note.ID] = *note
	return nil
}

func (m *memStore) Get(ctx context.Context, centerID string, noteID uuid.UUID) (models.NoteRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	note, ok := m.notes[centerID][noteID]
	if !ok {
		return models.NoteRecord{}, ErrNoteNotFound
	}
	return note, nil
}

func (m *memStore) Query(ctx context.Context, centerID string, q models.NoteQuery) ([]models.NoteRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.NoteRecord
	for _, note := range m.notes[centerID] {
		if q.PatientID != "" && note.PatientID != q.PatientID {
			continue
		}
		if q.TherapistID != "" && note.TherapistID != q.TherapistID {
			continue
		}
		if q.Status != "" && note.Status != q.Status {
			continue
		}
		if q.Signed != nil && note.Signed != *q.Signed {
			continue
		}
		out = append(out, note)
	}
	return out, nil
}

func (m *memStore) UpdateContent(ctx context.Context, centerID string, noteID uuid.UUID, expectedRevision int64, templateType models.NoteTemplateType, content models.NoteContent, diagnosis models.Diagnosis, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	note, ok := m.notes[centerID][noteID]
	if !ok {
		return ErrNoteNotFound
	}
	if !CanMutateContent(note.Status) {
		return ImmutableError{NoteID: noteID, Status: note.Status}
	}
	if note.Revision != expectedRevision {
		return ErrConcurrentModification
	}
	note.TemplateType = templateType
	note.Content = content
	note.Diagnosis = diagnosis
	note.Revision++
	note.UpdatedAt = at
	m.notes[centerID][noteID] = note
	return nil
}

func (m *memStore) UpdateStatus(ctx context.Context, centerID string, noteID uuid.UUID, from, to models.NoteStatus, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	note, ok := m.notes[centerID][noteID]
	if !ok {
		return ErrNoteNotFound
	}
	if note.Status != from {
		return TransitionError{NoteID: noteID, From: note.Status, To: to}
	}
	note.Status = to
	note.Revision++
	note.UpdatedAt = at
	m.notes[centerID][noteID] = note
	return nil
}

func (m *memStore) SignAndLock(ctx context.Context, centerID string, noteID uuid.UUID, sig models.ElectronicSignature) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	note, ok := m.notes[centerID][noteID]
	if !ok {
		return ErrNoteNotFound
	}
	if !Signable(note.Status) {
		return TransitionError{NoteID: noteID, From: note.Status, To: models.StatusLocked}
	}
	ts := sig.Timestamp
	note.Status = models.StatusLocked
	note.Signed = true
	note.SignedAt = &ts
	note.SignedBy = sig.TherapistID
	note.Signature = &sig
	note.Locked = true
	note.LockedAt = &ts
	note.LockedBy = sig.TherapistID
	note.Revision++
	note.UpdatedAt = ts
	m.notes[centerID][noteID] = note
	return nil
}

func (m *memStore) MergeValidation(ctx context.Context, centerID string, noteID uuid.UUID, result models.AIValidationResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	note, ok := m.notes[centerID][noteID]
	if !ok {
		return ErrNoteNotFound
	}
	note.AIValidation = &result
	m.notes[centerID][noteID] = note
	return nil
}

func (m *memStore) AppendAttachment(ctx context.Context, centerID string, noteID uuid.UUID, att models.Attachment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	note, ok := m.notes[centerID][noteID]
	if !ok {
		return ErrNoteNotFound
	}
	note.Attachments = append(note.Attachments, att)
	note.UpdatedAt = att.UploadedAt
	m.notes[centerID][noteID] = note
	return nil
}

func (m *memStore) Delete(ctx context.Context, centerID string, noteID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	note, ok := m.notes[centerID][noteID]
	if !ok {
		return ErrNoteNotFound
	}
	if !Deletable(note.Status) {
		return ImmutableError{NoteID: noteID, Status: note.Status}
	}
	delete(m.notes[centerID], noteID)
	return nil
}

func (m *memStore) AppendAuditLog(ctx context.Context, entry models.NoteAuditLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry.ID = int64(len(m.audits) + 1)
	entry.CreatedAt = time.Now().UTC()
	m.audits = append(m.audits, entry)
	return nil
}

func (m *memStore) ListAuditLogs(ctx context.Context, centerID string, noteID uuid.UUID, limit int) ([]models.NoteAuditLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.NoteAuditLog
	for _, entry := range m.audits {
		if entry.CenterID == centerID && entry.NoteID == noteID {
			out = append(out, entry)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (m *memStore) auditActions(centerID string, noteID uuid.UUID) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var actions []string
	for _, entry := range m.audits {
		if entry.CenterID == centerID && entry.NoteID == noteID {
			actions = append(actions, entry.Action)
		}
	}
	return actions
}

// capturingPublisher records published events for assertions.
type capturingPublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *capturingPublisher) PublishEvent(ctx context.Context, eventType string, source string, data map[string]interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, eventType)
	return nil
}

func (p *capturingPublisher) has(eventType string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, e := range p.events {
		if e == eventType {
			return true
		}
	}
	return false
}
