package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/driftlab/assessor/pkg/models"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// decodeInto decodes and shape-checks a response payload. A payload that
// unmarshals but fails validation surfaces as a typed decode error instead
// of zero values propagating silently.
func (c *Client) decodeInto(ctx context.Context, endpoint string, opts RequestOptions, out any) error {
	err := c.DoJSON(ctx, endpoint, opts, out)
	if err != nil {
		return err
	}

	err = validate.Struct(out)
	if err != nil {
		return &Error{
			Kind:    KindDecode,
			Message: fmt.Sprintf("The server returned a malformed payload from %s.", endpoint),
			Detail:  err.Error(),
		}
	}

	return nil
}

// LoginResult is the response of a successful authentication call.
type LoginResult struct {
	Token string       `json:"token" validate:"required"`
	User  *models.User `json:"user"`
}

// Login authenticates and returns the issued token. Storing it is the
// caller's job; the client itself never writes credentials on success.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	var result LoginResult

	err := c.decodeInto(ctx, "/auth/login", RequestOptions{
		Method: http.MethodPost,
		Body:   map[string]string{"email": email, "password": password},
		NoAuth: true,
	}, &result)
	if err != nil {
		return nil, err
	}

	return &result, nil
}

// SubmitResult echoes the identifiers assigned to a submitted assessment.
type SubmitResult struct {
	AssessmentID string `json:"id"          validate:"required"`
	WorkflowID   string `json:"workflow_id"`
	Status       string `json:"status"`
}

// SubmitAssessment posts the final intake payload. A 409 comes back as a
// duplicate-kind error carrying the existing assessment id.
func (c *Client) SubmitAssessment(ctx context.Context, assessment *models.Assessment) (*SubmitResult, error) {
	var result SubmitResult

	err := c.decodeInto(ctx, "/assessments", RequestOptions{
		Method: http.MethodPost,
		Body:   assessment,
	}, &result)
	if err != nil {
		return nil, err
	}

	return &result, nil
}

// UpdateAssessment replaces an existing assessment's payload.
func (c *Client) UpdateAssessment(ctx context.Context, assessment *models.Assessment) (*models.Assessment, error) {
	var result models.Assessment

	err := c.DoJSON(ctx, "/assessments/"+assessment.ID, RequestOptions{
		Method: http.MethodPut,
		Body:   assessment,
	}, &result)
	if err != nil && !errors.Is(err, ErrNoContent) {
		return nil, err
	}

	return &result, nil
}

// GetAssessment fetches one assessment, including any remote draft data.
func (c *Client) GetAssessment(ctx context.Context, id string) (*models.Assessment, error) {
	var result models.Assessment

	err := c.DoJSON(ctx, "/assessments/"+id, RequestOptions{}, &result)
	if err != nil {
		return nil, err
	}

	return &result, nil
}

// DeleteAssessment removes an assessment.
func (c *Client) DeleteAssessment(ctx context.Context, id string) error {
	_, err := c.Do(ctx, "/assessments/"+id, RequestOptions{Method: http.MethodDelete})

	return err
}

// Recommendations fetches the generated advisory items for a completed
// assessment.
func (c *Client) Recommendations(ctx context.Context, assessmentID string) ([]models.Recommendation, error) {
	var result []models.Recommendation

	err := c.DoJSON(ctx, "/assessments/"+assessmentID+"/recommendations", RequestOptions{}, &result)
	if err != nil {
		if errors.Is(err, ErrNoContent) {
			return nil, nil
		}

		return nil, err
	}

	return result, nil
}

// saveProgressResponse echoes the server-assigned draft identifier.
type saveProgressResponse struct {
	AssessmentID string `json:"assessment_id" validate:"required"`
}

// SaveProgress writes a draft to the backend, creating or updating
// depending on whether the record already carries an assessment id. The
// echoed id is returned for subsequent updates.
func (c *Client) SaveProgress(ctx context.Context, record *models.DraftRecord) (string, error) {
	var result saveProgressResponse

	err := c.decodeInto(ctx, "/forms/save-progress", RequestOptions{
		Method: http.MethodPost,
		Body:   record,
	}, &result)
	if err != nil {
		return "", err
	}

	return result.AssessmentID, nil
}

// LoadProgress fetches a remote draft by assessment id.
func (c *Client) LoadProgress(ctx context.Context, assessmentID string) (*models.DraftRecord, error) {
	var record models.DraftRecord

	err := c.decodeInto(ctx, "/forms/load-progress/"+assessmentID, RequestOptions{}, &record)
	if err != nil {
		return nil, err
	}

	return &record, nil
}

// DeleteProgress removes a remote draft.
func (c *Client) DeleteProgress(ctx context.Context, assessmentID string) error {
	_, err := c.Do(ctx, "/forms/delete-progress/"+assessmentID, RequestOptions{Method: http.MethodDelete})

	return err
}

// ListSaved returns summaries of every remote draft for the current user.
func (c *Client) ListSaved(ctx context.Context) ([]models.DraftSummary, error) {
	var result []models.DraftSummary

	err := c.DoJSON(ctx, "/forms/list-saved", RequestOptions{}, &result)
	if err != nil {
		if errors.Is(err, ErrNoContent) {
			return nil, nil
		}

		return nil, err
	}

	return result, nil
}

// WorkflowStatus polls the progress of one assessment workflow. Used as
// the fallback transport while the push channel is disconnected.
func (c *Client) WorkflowStatus(ctx context.Context, workflowID string) (*models.WorkflowProgress, error) {
	var progress models.WorkflowProgress

	err := c.decodeInto(ctx, "/workflows/"+workflowID+"/status", RequestOptions{}, &progress)
	if err != nil {
		return nil, err
	}

	return &progress, nil
}
