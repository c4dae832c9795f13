package notes

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/praxia-health/notes-platform/pkg/common/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Repository is the PostgreSQL Store implementation. Clinical content,
// diagnosis, signature, validation results, and attachments live in JSONB
// columns; lifecycle fields are plain columns so conditional updates can
// gate on them.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

var _ Store = (*Repository)(nil)

type noteModel struct {
	ID          uuid.UUID `gorm:"primaryKey;column:id"`
	CenterID    string    `gorm:"column:center_id;index:idx_notes_center_patient"`
	PatientID   string    `gorm:"column:patient_id;index:idx_notes_center_patient"`
	TherapistID string    `gorm:"column:therapist_id;index"`
	SessionID   string    `gorm:"column:session_id"`

	TemplateType string         `gorm:"column:template_type"`
	Content      datatypes.JSON `gorm:"column:content"`
	Diagnosis    datatypes.JSON `gorm:"column:diagnosis"`

	Status    string         `gorm:"column:status;index"`
	Signed    bool           `gorm:"column:signed"`
	SignedAt  *time.Time     `gorm:"column:signed_at"`
	SignedBy  string         `gorm:"column:signed_by"`
	Signature datatypes.JSON `gorm:"column:signature"`

	Locked   bool       `gorm:"column:locked"`
	LockedAt *time.Time `gorm:"column:locked_at"`
	LockedBy string     `gorm:"column:locked_by"`

	Version           int        `gorm:"column:version"`
	PreviousVersionID *uuid.UUID `gorm:"column:previous_version_id;uniqueIndex"`
	Revision          int64      `gorm:"column:revision"`

	AIValidation datatypes.JSON `gorm:"column:ai_validation"`
	Attachments  datatypes.JSON `gorm:"column:attachments"`

	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (noteModel) TableName() string { return "clinical_notes" }

type noteAuditModel struct {
	ID        int64          `gorm:"primaryKey;column:id"`
	CenterID  string         `gorm:"column:center_id;index"`
	NoteID    uuid.UUID      `gorm:"column:note_id;index"`
	Actor     string         `gorm:"column:actor"`
	Action    string         `gorm:"column:action"`
	Payload   datatypes.JSON `gorm:"column:payload"`
	CreatedAt time.Time      `gorm:"column:created_at"`
}

func (noteAuditModel) TableName() string { return "note_audit_logs" }

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&noteModel{}, &noteAuditModel{})
}

func (r *Repository) Create(ctx context.Context, note *models.NoteRecord) error {
	row, err := toRow(note)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		// The unique index on previous_version_id keeps version chains
		// linear: a second successor for the same predecessor loses.
		if isDuplicateKey(err) {
			return ErrConcurrentModification
		}
		return err
	}
	return nil
}

func (r *Repository) Get(ctx context.Context, centerID string, noteID uuid.UUID) (models.NoteRecord, error) {
	var row noteModel
	err := r.db.WithContext(ctx).First(&row, "center_id = ? AND id = ?", centerID, noteID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.NoteRecord{}, ErrNoteNotFound
		}
		return models.NoteRecord{}, err
	}
	return fromRow(&row)
}

func (r *Repository) Query(ctx context.Context, centerID string, q models.NoteQuery) ([]models.NoteRecord, error) {
	limit := q.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	tx := r.db.WithContext(ctx).Model(&noteModel{}).Where("center_id = ?", centerID)
	if q.PatientID != "" {
		tx = tx.Where("patient_id = ?", q.PatientID)
	}
	if q.TherapistID != "" {
		tx = tx.Where("therapist_id = ?", q.TherapistID)
	}
	if q.Status != "" {
		tx = tx.Where("status = ?", string(q.Status))
	}
	if q.TemplateType != "" {
		tx = tx.Where("template_type = ?", string(q.TemplateType))
	}
	if q.From != nil {
		tx = tx.Where("created_at >= ?", *q.From)
	}
	if q.To != nil {
		tx = tx.Where("created_at <= ?", *q.To)
	}
	if q.Signed != nil {
		tx = tx.Where("signed = ?", *q.Signed)
	}
	if q.RiskLevel != "" {
		tx = tx.Where("content -> 'risk_assessment' ->> 'level' = ?", string(q.RiskLevel))
	}
	if search := strings.TrimSpace(q.Search); search != "" {
		tx = tx.Where("content::text ILIKE ?", "%"+search+"%")
	}

	var rows []noteModel
	if err := tx.Order("created_at DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}

	records := make([]models.NoteRecord, 0, len(rows))
	for i := range rows {
		record, err := fromRow(&rows[i])
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

func (r *Repository) UpdateContent(ctx context.Context, centerID string, noteID uuid.UUID, expectedRevision int64, templateType models.NoteTemplateType, content models.NoteContent, diagnosis models.Diagnosis, at time.Time) error {
	contentJSON, err := json.Marshal(content)
	if err != nil {
		return err
	}
	diagnosisJSON, err := json.Marshal(diagnosis)
	if err != nil {
		return err
	}

	res := r.db.WithContext(ctx).Model(&noteModel{}).
		Where("center_id = ? AND id = ? AND status IN ? AND revision = ?",
			centerID, noteID, mutableStatuses(), expectedRevision).
		Updates(map[string]interface{}{
			"template_type": string(templateType),
			"content":       datatypes.JSON(contentJSON),
			"diagnosis":     datatypes.JSON(diagnosisJSON),
			"revision":      gorm.Expr("revision + 1"),
			"updated_at":    at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return r.classifyContentFailure(ctx, centerID, noteID)
	}
	return nil
}

func (r *Repository) UpdateStatus(ctx context.Context, centerID string, noteID uuid.UUID, from, to models.NoteStatus, at time.Time) error {
	res := r.db.WithContext(ctx).Model(&noteModel{}).
		Where("center_id = ? AND id = ? AND status = ?", centerID, noteID, string(from)).
		Updates(map[string]interface{}{
			"status":     string(to),
			"revision":   gorm.Expr("revision + 1"),
			"updated_at": at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		current, err := r.Get(ctx, centerID, noteID)
		if err != nil {
			return err
		}
		return TransitionError{NoteID: noteID, From: current.Status, To: to}
	}
	return nil
}

func (r *Repository) SignAndLock(ctx context.Context, centerID string, noteID uuid.UUID, sig models.ElectronicSignature) error {
	sigJSON, err := json.Marshal(sig)
	if err != nil {
		return err
	}

	// One conditional update: a concurrent edit or second sign attempt
	// cannot land between the status check and the lock.
	res := r.db.WithContext(ctx).Model(&noteModel{}).
		Where("center_id = ? AND id = ? AND status IN ?", centerID, noteID, mutableStatuses()).
		Updates(map[string]interface{}{
			"status":     string(models.StatusLocked),
			"signed":     true,
			"signed_at":  sig.Timestamp,
			"signed_by":  sig.TherapistID,
			"signature":  datatypes.JSON(sigJSON),
			"locked":     true,
			"locked_at":  sig.Timestamp,
			"locked_by":  sig.TherapistID,
			"revision":   gorm.Expr("revision + 1"),
			"updated_at": sig.Timestamp,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		current, err := r.Get(ctx, centerID, noteID)
		if err != nil {
			return err
		}
		return TransitionError{NoteID: noteID, From: current.Status, To: models.StatusLocked}
	}
	return nil
}

func (r *Repository) MergeValidation(ctx context.Context, centerID string, noteID uuid.UUID, result models.AIValidationResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return err
	}

	// Advisory write: touches only ai_validation. No revision bump, so a
	// late validation result never invalidates an in-flight content edit.
	res := r.db.WithContext(ctx).Model(&noteModel{}).
		Where("center_id = ? AND id = ?", centerID, noteID).
		Update("ai_validation", datatypes.JSON(resultJSON))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNoteNotFound
	}
	return nil
}

func (r *Repository) AppendAttachment(ctx context.Context, centerID string, noteID uuid.UUID, att models.Attachment) error {
	attJSON, err := json.Marshal([]models.Attachment{att})
	if err != nil {
		return err
	}

	res := r.db.WithContext(ctx).Model(&noteModel{}).
		Where("center_id = ? AND id = ?", centerID, noteID).
		Updates(map[string]interface{}{
			"attachments": gorm.Expr("COALESCE(attachments, '[]'::jsonb) || ?::jsonb", string(attJSON)),
			"updated_at":  att.UploadedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNoteNotFound
	}
	return nil
}

func (r *Repository) Delete(ctx context.Context, centerID string, noteID uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Where("center_id = ? AND id = ? AND locked = ?", centerID, noteID, false).
		Delete(&noteModel{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		current, err := r.Get(ctx, centerID, noteID)
		if err != nil {
			return err
		}
		return ImmutableError{NoteID: noteID, Status: current.Status}
	}
	return nil
}

func (r *Repository) AppendAuditLog(ctx context.Context, entry models.NoteAuditLog) error {
	payload, _ := json.Marshal(entry.Payload)
	row := &noteAuditModel{
		CenterID:  entry.CenterID,
		NoteID:    entry.NoteID,
		Actor:     entry.Actor,
		Action:    entry.Action,
		Payload:   datatypes.JSON(payload),
		CreatedAt: time.Now().UTC(),
	}
	return r.db.WithContext(ctx).Create(row).Error
}

func (r *Repository) ListAuditLogs(ctx context.Context, centerID string, noteID uuid.UUID, limit int) ([]models.NoteAuditLog, error) {
	if limit <= 0 || limit > 200 {
		limit = 100
	}
	var rows []noteAuditModel
	err := r.db.WithContext(ctx).
		Where("center_id = ? AND note_id = ?", centerID, noteID).
		Order("created_at DESC").Limit(limit).Find(&rows).Error
	if err != nil {
		return nil, err
	}
	logs := make([]models.NoteAuditLog, 0, len(rows))
	for _, row := range rows {
		logs = append(logs, models.NoteAuditLog{
			ID:        row.ID,
			CenterID:  row.CenterID,
			NoteID:    row.NoteID,
			Actor:     row.Actor,
			Action:    row.Action,
			Payload:   jsonMap(row.Payload),
			CreatedAt: row.CreatedAt,
		})
	}
	return logs, nil
}

// classifyContentFailure turns a zero-row conditional update into the
// precise taxonomy error. Diagnostic only: the conditional update itself is
// the correctness boundary.
func (r *Repository) classifyContentFailure(ctx context.Context, centerID string, noteID uuid.UUID) error {
	current, err := r.Get(ctx, centerID, noteID)
	if err != nil {
		return err
	}
	if !CanMutateContent(current.Status) {
		return ImmutableError{NoteID: noteID, Status: current.Status}
	}
	return ErrConcurrentModification
}

func mutableStatuses() []string {
	return []string{string(models.StatusDraft), string(models.StatusPending)}
}

func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return strings.Contains(err.Error(), "duplicate key")
}

func toRow(note *models.NoteRecord) (*noteModel, error) {
	contentJSON, err := json.Marshal(note.Content)
	if err != nil {
		return nil, err
	}
	diagnosisJSON, err := json.Marshal(note.Diagnosis)
	if err != nil {
		return nil, err
	}

	row := &noteModel{
		ID:                note.ID,
		CenterID:          note.CenterID,
		PatientID:         note.PatientID,
		TherapistID:       note.TherapistID,
		SessionID:         note.SessionID,
		TemplateType:      string(note.TemplateType),
		Content:           datatypes.JSON(contentJSON),
		Diagnosis:         datatypes.JSON(diagnosisJSON),
		Status:            string(note.Status),
		Signed:            note.Signed,
		SignedAt:          note.SignedAt,
		SignedBy:          note.SignedBy,
		Locked:            note.Locked,
		LockedAt:          note.LockedAt,
		LockedBy:          note.LockedBy,
		Version:           note.Version,
		PreviousVersionID: note.PreviousVersionID,
		Revision:          note.Revision,
		CreatedAt:         note.CreatedAt,
		UpdatedAt:         note.UpdatedAt,
	}
	if note.Signature != nil {
		data, err := json.Marshal(note.Signature)
		if err != nil {
			return nil, err
		}
		row.Signature = datatypes.JSON(data)
	}
	if note.AIValidation != nil {
		data, err := json.Marshal(note.AIValidation)
		if err != nil {
			return nil, err
		}
		row.AIValidation = datatypes.JSON(data)
	}
	if len(note.Attachments) > 0 {
		data, err := json.Marshal(note.Attachments)
		if err != nil {
			return nil, err
		}
		row.Attachments = datatypes.JSON(data)
	}
	return row, nil
}

func fromRow(row *noteModel) (models.NoteRecord, error) {
	note := models.NoteRecord{
		ID:                row.ID,
		CenterID:          row.CenterID,
		PatientID:         row.PatientID,
		TherapistID:       row.TherapistID,
		SessionID:         row.SessionID,
		TemplateType:      models.NoteTemplateType(row.TemplateType),
		Status:            models.NoteStatus(row.Status),
		Signed:            row.Signed,
		SignedAt:          row.SignedAt,
		SignedBy:          row.SignedBy,
		Locked:            row.Locked,
		LockedAt:          row.LockedAt,
		LockedBy:          row.LockedBy,
		Version:           row.Version,
		PreviousVersionID: row.PreviousVersionID,
		Revision:          row.Revision,
		CreatedAt:         row.CreatedAt,
		UpdatedAt:         row.UpdatedAt,
	}
	if len(row.Content) > 0 {
		if err := json.Unmarshal(row.Content, &note.Content); err != nil {
			return models.NoteRecord{}, err
		}
	}
	if len(row.Diagnosis) > 0 {
		if err := json.Unmarshal(row.Diagnosis, &note.Diagnosis); err != nil {
			return models.NoteRecord{}, err
		}
	}
	if len(row.Signature) > 0 {
		var sig models.ElectronicSignature
		if err := json.Unmarshal(row.Signature, &sig); err != nil {
			return models.NoteRecord{}, err
		}
		note.Signature = &sig
	}
	if len(row.AIValidation) > 0 {
		var result models.AIValidationResult
		if err := json.Unmarshal(row.AIValidation, &result); err != nil {
			return models.NoteRecord{}, err
		}
		note.AIValidation = &result
	}
	if len(row.Attachments) > 0 {
		if err := json.Unmarshal(row.Attachments, &note.Attachments); err != nil {
			return models.NoteRecord{}, err
		}
	}
	return note, nil
}

func jsonMap(data datatypes.JSON) map[string]interface{} {
	if len(data) == 0 {
		return nil
	}
	var result map[string]interface{}
	_ = json.Unmarshal(data, &result)
	return result
}
