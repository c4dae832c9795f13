package validation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/praxia-health/notes-platform/pkg/common/models"
)

// Collaborator is the external AI validation service. From the engine's
// perspective it is a pure function over note content and diagnosis.
type Collaborator interface {
	Validate(ctx context.Context, content models.NoteContent, diagnosis models.Diagnosis) (models.AIValidationResult, error)
}

// HTTPCollaborator talks to the validation model service over HTTP.
type HTTPCollaborator struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewHTTPCollaborator(baseURL, apiKey string, timeout time.Duration) *HTTPCollaborator {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPCollaborator{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *HTTPCollaborator) Validate(ctx context.Context, content models.NoteContent, diagnosis models.Diagnosis) (models.AIValidationResult, error) {
	payload := map[string]interface{}{
		"content":   content,
		"diagnosis": diagnosis,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return models.AIValidationResult{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/notes/validate", bytes.NewBuffer(body))
	if err != nil {
		return models.AIValidationResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return models.AIValidationResult{}, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.AIValidationResult{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return models.AIValidationResult{}, fmt.Errorf("validation service returned %d", resp.StatusCode)
	}

	var result models.AIValidationResult
	if err := json.Unmarshal(data, &result); err != nil {
		return models.AIValidationResult{}, fmt.Errorf("failed to decode validation result: %w", err)
	}
	return result, nil
}
