package models

import (
	"time"

	"github.com/google/uuid"
)

// Event bus models
type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"` // note.created, note.updated, note.signed, ...
	Source    string                 `json:"source"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]string      `json:"metadata,omitempty"`
}

// NoteStatus is the lifecycle state of a clinical note. Transitions between
// states are owned by the lifecycle engine; callers never assign Status
// directly.
type NoteStatus string

const (
	StatusDraft   NoteStatus = "draft"
	StatusPending NoteStatus = "pending"
	StatusSigned  NoteStatus = "signed"
	StatusLocked  NoteStatus = "locked"
)

// NoteTemplateType selects the structural schema of a note's content.
type NoteTemplateType string

const (
	TemplateSOAP NoteTemplateType = "soap"
	TemplateDAP  NoteTemplateType = "dap"
	TemplateFree NoteTemplateType = "free"
)

type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// NoteRecord is one clinical documentation entry for a patient-therapist
// encounter. CenterID scopes every read and write (tenant boundary).
type NoteRecord struct {
	ID          uuid.UUID `json:"id"`
	CenterID    string    `json:"center_id"`
	PatientID   string    `json:"patient_id"`
	TherapistID string    `json:"therapist_id"`
	SessionID   string    `json:"session_id,omitempty"`

	TemplateType NoteTemplateType `json:"template_type"`
	Content      NoteContent      `json:"content"`
	Diagnosis    Diagnosis        `json:"diagnosis"`

	Status    NoteStatus           `json:"status"`
	Signed    bool                 `json:"signed"`
	SignedAt  *time.Time           `json:"signed_at,omitempty"`
	SignedBy  string               `json:"signed_by,omitempty"`
	Signature *ElectronicSignature `json:"signature,omitempty"`

	Locked   bool       `json:"locked"`
	LockedAt *time.Time `json:"locked_at,omitempty"`
	LockedBy string     `json:"locked_by,omitempty"`

	// Version counts along the previous-version chain; Revision is the
	// optimistic-concurrency token bumped on content and lifecycle writes.
	// Advisory writes (aiValidation, attachments) leave it untouched.
	Version           int        `json:"version"`
	PreviousVersionID *uuid.UUID `json:"previous_version_id,omitempty"`
	Revision          int64      `json:"revision"`

	AIValidation *AIValidationResult `json:"ai_validation,omitempty"`
	Attachments  []Attachment        `json:"attachments,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NoteContent holds the template-specific sections plus the fields every
// template carries. Which sections are populated depends on TemplateType.
type NoteContent struct {
	// SOAP
	Subjective string `json:"subjective,omitempty"`
	Objective  string `json:"objective,omitempty"`
	// SOAP + DAP
	Assessment string `json:"assessment,omitempty"`
	Plan       string `json:"plan,omitempty"`
	// DAP
	Data string `json:"data,omitempty"`
	// Free-form
	FreeText string `json:"free_text,omitempty"`

	RiskAssessment   *RiskAssessment   `json:"risk_assessment,omitempty"`
	MentalStatusExam *MentalStatusExam `json:"mental_status_exam,omitempty"`
	NextSessionPlan  string            `json:"next_session_plan,omitempty"`
	Homework         string            `json:"homework,omitempty"`
	Interventions    []string          `json:"interventions,omitempty"`
}

type RiskAssessment struct {
	Level             RiskLevel `json:"level"`
	Factors           []string  `json:"factors,omitempty"`
	Interventions     []string  `json:"interventions,omitempty"`
	FollowUpRequired  bool      `json:"follow_up_required"`
	EmergencyContacts bool      `json:"emergency_contacts"`
}

type MentalStatusExam struct {
	Appearance     string `json:"appearance,omitempty"`
	Behavior       string `json:"behavior,omitempty"`
	Speech         string `json:"speech,omitempty"`
	Mood           string `json:"mood,omitempty"`
	Affect         string `json:"affect,omitempty"`
	ThoughtProcess string `json:"thought_process,omitempty"`
	ThoughtContent string `json:"thought_content,omitempty"`
	Perceptions    string `json:"perceptions,omitempty"`
	Cognition      string `json:"cognition,omitempty"`
	Insight        string `json:"insight,omitempty"`
	Judgment       string `json:"judgment,omitempty"`
}

type DiagnosisCode struct {
	Code        string  `json:"code"`
	Description string  `json:"description"`
	System      string  `json:"system"` // ICD-10, ICD-11, DSM-5
	Confidence  float64 `json:"confidence,omitempty"`
}

// Diagnosis separates the therapist's adopted codes from machine
// suggestions. Suggested entries are informational and never promoted
// to Primary automatically.
type Diagnosis struct {
	Primary   *DiagnosisCode  `json:"primary,omitempty"`
	Secondary []DiagnosisCode `json:"secondary,omitempty"`
	Suggested []DiagnosisCode `json:"suggested,omitempty"`
}

type SignatureMethod string

const (
	SignatureDigital SignatureMethod = "digital"
	SignatureTyped   SignatureMethod = "typed"
	SignatureDrawn   SignatureMethod = "drawn"
)

type ElectronicSignature struct {
	ID            uuid.UUID       `json:"id"`
	TherapistID   string          `json:"therapist_id"`
	SignerName    string          `json:"signer_name"`
	Method        SignatureMethod `json:"method"`
	SignatureData string          `json:"signature_data,omitempty"` // base64 image for drawn signatures
	Timestamp     time.Time       `json:"timestamp"`
	IPAddress     string          `json:"ip_address,omitempty"`
	UserAgent     string          `json:"user_agent,omitempty"`
	IsValid       bool            `json:"is_valid"`
}

// AIValidationResult is advisory metadata produced by the validation
// collaborator. It never participates in lifecycle transitions.
type AIValidationResult struct {
	ID                 uuid.UUID       `json:"id"`
	NoteID             uuid.UUID       `json:"note_id"`
	Timestamp          time.Time       `json:"timestamp"`
	CoherenceScore     int             `json:"coherence_score"` // 0-100
	Confidence         float64         `json:"confidence"`
	IsValid            bool            `json:"is_valid"`
	Suggestions        []AISuggestion  `json:"suggestions,omitempty"`
	FlaggedIssues      []AIFlag        `json:"flagged_issues,omitempty"`
	RiskFlags          []string        `json:"risk_flags,omitempty"`
	SuggestedDiagnoses []DiagnosisCode `json:"suggested_diagnoses,omitempty"`
}

type AISuggestion struct {
	Type       string  `json:"type"` // diagnosis, intervention, risk-assessment, grammar, clarity
	Field      string  `json:"field,omitempty"`
	Suggestion string  `json:"suggestion"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning,omitempty"`
	Priority   string  `json:"priority,omitempty"` // low, medium, high
	Reviewed   bool    `json:"reviewed"`
}

type AIFlag struct {
	Type           string `json:"type"` // inconsistency, missing-info, risk-indicator, compliance-issue
	Severity       string `json:"severity"`
	Description    string `json:"description"`
	Recommendation string `json:"recommendation,omitempty"`
	Field          string `json:"field,omitempty"`
}

type Attachment struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	ContentType string    `json:"content_type"`
	StorageURL  string    `json:"storage_url"`
	SizeBytes   int64     `json:"size_bytes"`
	UploadedBy  string    `json:"uploaded_by"`
	UploadedAt  time.Time `json:"uploaded_at"`
}

type NoteAuditLog struct {
	ID        int64                  `json:"id"`
	CenterID  string                 `json:"center_id"`
	NoteID    uuid.UUID              `json:"note_id"`
	Actor     string                 `json:"actor"`
	Action    string                 `json:"action"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

// Request DTOs

type CreateNoteRequest struct {
	PatientID    string           `json:"patient_id"`
	TherapistID  string           `json:"therapist_id"`
	SessionID    string           `json:"session_id,omitempty"`
	TemplateType NoteTemplateType `json:"template_type"`
	Content      NoteContent      `json:"content"`
	Diagnosis    Diagnosis        `json:"diagnosis"`
}

// UpdateNoteRequest replaces the mutable fields wholesale (last-writer-wins
// within a revision). Revision must match the caller's last read.
type UpdateNoteRequest struct {
	TemplateType NoteTemplateType `json:"template_type,omitempty"`
	Content      *NoteContent     `json:"content,omitempty"`
	Diagnosis    *Diagnosis       `json:"diagnosis,omitempty"`
	Revision     int64            `json:"revision"`
}

type SignNoteRequest struct {
	TherapistID   string          `json:"therapist_id"`
	SignerName    string          `json:"signer_name"`
	Method        SignatureMethod `json:"method"`
	SignatureData string          `json:"signature_data,omitempty"`
	IPAddress     string          `json:"ip_address,omitempty"`
	UserAgent     string          `json:"user_agent,omitempty"`
}

type AddAttachmentRequest struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	StorageURL  string `json:"storage_url"`
	SizeBytes   int64  `json:"size_bytes"`
	UploadedBy  string `json:"uploaded_by"`
}

// NoteQuery filters a center-scoped listing.
type NoteQuery struct {
	PatientID    string           `json:"patient_id,omitempty"`
	TherapistID  string           `json:"therapist_id,omitempty"`
	Status       NoteStatus       `json:"status,omitempty"`
	TemplateType NoteTemplateType `json:"template_type,omitempty"`
	From         *time.Time       `json:"from,omitempty"`
	To           *time.Time       `json:"to,omitempty"`
	Signed       *bool            `json:"signed,omitempty"`
	RiskLevel    RiskLevel        `json:"risk_level,omitempty"`
	Search       string           `json:"search,omitempty"`
	Limit        int              `json:"limit,omitempty"`
}
