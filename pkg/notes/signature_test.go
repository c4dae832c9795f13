package notes

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/praxia-health/notes-platform/pkg/common/models"
)

func TestSignLocksAtomically(t *testing.T) {
	store := newMemStore()
	events := &capturingPublisher{}
	svc := newTestService(store, events)
	sigs := NewSignatureService(store, NewCache(nil, 0), events)
	note := createDraft(t, svc, "center-1")

	signed, err := sigs.Sign(context.Background(), "center-1", note.ID, models.SignNoteRequest{
		TherapistID:   "therapist-1",
		SignerName:    "Dr. Example",
		Method:        models.SignatureDrawn,
		SignatureData: "base64-image-data",
		IPAddress:     "10.0.0.7",
		UserAgent:     "praxia-web/2.4",
	})
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}

	if signed.Status != models.StatusLocked {
		t.Fatalf("expected locked, got %s", signed.Status)
	}
	if !signed.Signed || !signed.Locked {
		t.Fatal("signed and locked must both be set")
	}
	if signed.Signature == nil || !signed.Signature.IsValid {
		t.Fatal("expected a valid signature record")
	}
	if signed.SignedAt == nil || signed.LockedAt == nil || !signed.SignedAt.Equal(*signed.LockedAt) {
		t.Fatal("lockedAt must equal signedAt")
	}
	if signed.SignedBy != "therapist-1" || signed.LockedBy != "therapist-1" {
		t.Fatalf("unexpected signer attribution: %s/%s", signed.SignedBy, signed.LockedBy)
	}
	if signed.Signature.IPAddress != "10.0.0.7" || signed.Signature.UserAgent != "praxia-web/2.4" {
		t.Fatal("signature must capture request context")
	}
	if !events.has(EventNoteSigned) {
		t.Fatal("expected note.signed event")
	}
}

func TestSignPendingNote(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, &capturingPublisher{})
	sigs := NewSignatureService(store, NewCache(nil, 0), nil)
	note := createDraft(t, svc, "center-1")

	if _, err := svc.Submit(context.Background(), "center-1", note.ID, "therapist-1"); err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	signed, err := sigs.Sign(context.Background(), "center-1", note.ID, models.SignNoteRequest{
		TherapistID: "therapist-1",
		SignerName:  "Dr. Example",
		Method:      models.SignatureTyped,
	})
	if err != nil {
		t.Fatalf("sign from pending failed: %v", err)
	}
	if signed.Status != models.StatusLocked {
		t.Fatalf("expected locked, got %s", signed.Status)
	}
}

func TestSignIncompletePayload(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, &capturingPublisher{})
	sigs := NewSignatureService(store, NewCache(nil, 0), nil)
	note := createDraft(t, svc, "center-1")

	cases := []models.SignNoteRequest{
		{SignerName: "Dr. Example", Method: models.SignatureTyped},
		{TherapistID: "therapist-1", Method: models.SignatureTyped},
		{TherapistID: "therapist-1", SignerName: "Dr. Example"},
		{TherapistID: "therapist-1", SignerName: "Dr. Example", Method: "fax"},
	}
	for i, req := range cases {
		_, err := sigs.Sign(context.Background(), "center-1", note.ID, req)
		if !errors.Is(err, ErrIncompleteSignature) {
			t.Fatalf("case %d: expected ErrIncompleteSignature, got %v", i, err)
		}
		var sigErr SignatureError
		if !errors.As(err, &sigErr) || len(sigErr.Missing) == 0 {
			t.Fatalf("case %d: expected SignatureError naming missing fields", i)
		}
	}

	current, err := store.Get(context.Background(), "center-1", note.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if current.Status != models.StatusDraft || current.Signed || current.Locked {
		t.Fatal("failed signing attempts must leave the note unchanged")
	}
	if current.Revision != note.Revision {
		t.Fatal("failed signing attempts must not bump revision")
	}
}

func TestSignTwiceFails(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, &capturingPublisher{})
	sigs := NewSignatureService(store, NewCache(nil, 0), nil)
	note := createDraft(t, svc, "center-1")

	req := models.SignNoteRequest{
		TherapistID: "therapist-1",
		SignerName:  "Dr. Example",
		Method:      models.SignatureDigital,
	}
	if _, err := sigs.Sign(context.Background(), "center-1", note.ID, req); err != nil {
		t.Fatalf("first sign failed: %v", err)
	}
	_, err := sigs.Sign(context.Background(), "center-1", note.ID, req)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition on second sign, got %v", err)
	}
}

func TestSignMissingNote(t *testing.T) {
	store := newMemStore()
	sigs := NewSignatureService(store, NewCache(nil, 0), nil)

	_, err := sigs.Sign(context.Background(), "center-1", uuid.New(), models.SignNoteRequest{
		TherapistID: "therapist-1",
		SignerName:  "Dr. Example",
		Method:      models.SignatureTyped,
	})
	if !errors.Is(err, ErrNoteNotFound) {
		t.Fatalf("expected ErrNoteNotFound, got %v", err)
	}
}
