package notes

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/praxia-health/notes-platform/pkg/common/models"
)

// SignatureService attaches a binding electronic signature to a note and
// couples it to the immutability lock. Signing and locking are one atomic
// store update: no observer ever sees signed=true on a still-mutable note,
// and never locked=true without a valid signature.
type SignatureService struct {
	store  Store
	cache  *Cache
	events EventPublisher
}

func NewSignatureService(store Store, cache *Cache, events EventPublisher) *SignatureService {
	return &SignatureService{store: store, cache: cache, events: events}
}

// Sign validates the payload, builds the signature record, and performs the
// draft|pending to locked transition. On any failure the note is unchanged.
func (s *SignatureService) Sign(ctx context.Context, centerID string, noteID uuid.UUID, req models.SignNoteRequest) (models.NoteRecord, error) {
	if err := validateSignaturePayload(req); err != nil {
		return models.NoteRecord{}, err
	}

	sig := models.ElectronicSignature{
		ID:            uuid.New(),
		TherapistID:   req.TherapistID,
		SignerName:    req.SignerName,
		Method:        req.Method,
		SignatureData: req.SignatureData,
		Timestamp:     time.Now().UTC(),
		IPAddress:     req.IPAddress,
		UserAgent:     req.UserAgent,
		IsValid:       true,
	}

	if err := s.store.SignAndLock(ctx, centerID, noteID, sig); err != nil {
		return models.NoteRecord{}, err
	}
	s.cache.Invalidate(ctx, centerID, noteID)

	_ = s.store.AppendAuditLog(ctx, models.NoteAuditLog{
		CenterID: centerID,
		NoteID:   noteID,
		Actor:    req.TherapistID,
		Action:   "note_signed",
		Payload: map[string]interface{}{
			"signature_id": sig.ID.String(),
			"method":       sig.Method,
			"ip_address":   sig.IPAddress,
		},
	})
	if s.events != nil {
		_ = s.events.PublishEvent(ctx, EventNoteSigned, eventSource, map[string]interface{}{
			"center_id": centerID,
			"note_id":   noteID.String(),
			"signed_by": sig.TherapistID,
		})
	}

	return s.store.Get(ctx, centerID, noteID)
}

// Signature validity is structural: the only rejection cause is a missing
// required field or an unknown method. Cryptographic signing is out of
// scope.
func validateSignaturePayload(req models.SignNoteRequest) error {
	var missing []string
	if req.TherapistID == "" {
		missing = append(missing, "therapist_id")
	}
	if req.SignerName == "" {
		missing = append(missing, "signer_name")
	}
	switch req.Method {
	case models.SignatureDigital, models.SignatureTyped, models.SignatureDrawn:
	case "":
		missing = append(missing, "method")
	default:
		missing = append(missing, "method")
	}
	if len(missing) > 0 {
		return SignatureError{Missing: missing}
	}
	return nil
}
