package notes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/praxia-health/notes-platform/pkg/common/models"
	"github.com/praxia-health/notes-platform/pkg/validation"
)

type okCollaborator struct{}

func (okCollaborator) Validate(ctx context.Context, content models.NoteContent, diagnosis models.Diagnosis) (models.AIValidationResult, error) {
	return models.AIValidationResult{CoherenceScore: 80, IsValid: true}, nil
}

func newTestRouter(store *memStore) *mux.Router {
	cache := NewCache(nil, 0)
	events := &capturingPublisher{}
	svc := NewService(store, cache, events, DefaultCatalog())
	sigs := NewSignatureService(store, cache, events)
	versions := NewVersioningService(store, cache, events)
	gw := validation.NewGateway(okCollaborator{}, store, nil, nil)

	router := mux.NewRouter()
	api := router.PathPrefix("/api/v1").Subrouter()
	NewHandler(svc, sigs, versions, gw).Register(api)
	return router
}

func doJSON(t *testing.T, router *mux.Router, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body == nil {
		body = map[string]interface{}{}
	}
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("X-Therapist-ID", "therapist-1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestNoteLifecycleOverHTTP(t *testing.T) {
	store := newMemStore()
	router := newTestRouter(store)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/centers/center-1/notes", models.CreateNoteRequest{
		PatientID:    "patient-1",
		TherapistID:  "therapist-1",
		TemplateType: models.TemplateSOAP,
		Content:      models.NoteContent{Subjective: "Initial visit."},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var created struct {
		Note models.NoteRecord `json:"note"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	base := fmt.Sprintf("/api/v1/centers/center-1/notes/%s", created.Note.ID)

	if rec = doJSON(t, router, http.MethodPost, base+"/submit", nil); rec.Code != http.StatusOK {
		t.Fatalf("submit: expected 200, got %d", rec.Code)
	}

	rec = doJSON(t, router, http.MethodPost, base+"/sign", models.SignNoteRequest{
		TherapistID: "therapist-1",
		SignerName:  "Dr. Example",
		Method:      models.SignatureTyped,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("sign: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var signed struct {
		Note models.NoteRecord `json:"note"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &signed); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if signed.Note.Status != models.StatusLocked {
		t.Fatalf("expected locked, got %s", signed.Note.Status)
	}

	// Edits after lock map to 409.
	content := signed.Note.Content
	content.Plan = "Late edit."
	rec = doJSON(t, router, http.MethodPatch, base, models.UpdateNoteRequest{
		Content:  &content,
		Revision: signed.Note.Revision,
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("locked edit: expected 409, got %d", rec.Code)
	}

	if rec = doJSON(t, router, http.MethodDelete, base, nil); rec.Code != http.StatusConflict {
		t.Fatalf("locked delete: expected 409, got %d", rec.Code)
	}

	// Validation is still allowed on the locked note.
	if rec = doJSON(t, router, http.MethodPost, base+"/validate", nil); rec.Code != http.StatusOK {
		t.Fatalf("validate: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	// A new version can be derived from it.
	if rec = doJSON(t, router, http.MethodPost, base+"/versions", nil); rec.Code != http.StatusCreated {
		t.Fatalf("version: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHTTPErrorMapping(t *testing.T) {
	store := newMemStore()
	router := newTestRouter(store)

	rec := doJSON(t, router, http.MethodGet, "/api/v1/centers/center-1/notes/00000000-0000-0000-0000-000000000001", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing note: expected 404, got %d", rec.Code)
	}

	rec = doJSON(t, router, http.MethodGet, "/api/v1/centers/center-1/notes/not-a-uuid", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad id: expected 400, got %d", rec.Code)
	}

	created := doJSON(t, router, http.MethodPost, "/api/v1/centers/center-1/notes", models.CreateNoteRequest{
		PatientID:    "patient-1",
		TherapistID:  "therapist-1",
		TemplateType: models.TemplateSOAP,
	})
	var resp struct {
		Note models.NoteRecord `json:"note"`
	}
	if err := json.Unmarshal(created.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	base := fmt.Sprintf("/api/v1/centers/center-1/notes/%s", resp.Note.ID)

	// Incomplete signature payload maps to 422.
	rec = doJSON(t, router, http.MethodPost, base+"/sign", models.SignNoteRequest{Method: models.SignatureTyped})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("incomplete signature: expected 422, got %d", rec.Code)
	}

	// Stale revision maps to 412.
	content := models.NoteContent{Subjective: "Edit."}
	rec = doJSON(t, router, http.MethodPatch, base, models.UpdateNoteRequest{Content: &content, Revision: 99})
	if rec.Code != http.StatusPreconditionFailed {
		t.Fatalf("stale revision: expected 412, got %d", rec.Code)
	}

	// Recall of a draft maps to 409.
	rec = doJSON(t, router, http.MethodPost, base+"/recall", nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("recall draft: expected 409, got %d", rec.Code)
	}
}
