package validation

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/praxia-health/notes-platform/pkg/common/models"
)

func TestHTTPCollaboratorValidate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/notes/validate" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected authorization header %q", got)
		}
		var payload map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("bad payload: %v", err)
		}
		json.NewEncoder(w).Encode(models.AIValidationResult{CoherenceScore: 91, IsValid: true})
	}))
	defer server.Close()

	collab := NewHTTPCollaborator(server.URL, "test-key", 5*time.Second)
	result, err := collab.Validate(context.Background(), models.NoteContent{Subjective: "text"}, models.Diagnosis{})
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if result.CoherenceScore != 91 || !result.IsValid {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestHTTPCollaboratorErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	collab := NewHTTPCollaborator(server.URL, "", 5*time.Second)
	if _, err := collab.Validate(context.Background(), models.NoteContent{}, models.Diagnosis{}); err == nil {
		t.Fatal("expected error for non-200 response")
	}
}
