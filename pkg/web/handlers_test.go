package web

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftlab/assessor/pkg/log"
	"github.com/driftlab/assessor/pkg/models"
	"github.com/driftlab/assessor/pkg/web/push"
)

func setupTestApp(t *testing.T) (*fiber.App, *Store) {
	t.Helper()

	store := NewStore()
	hub := push.NewHub(log.WithModule("test"))
	handlers := NewAPIHandlers(store, hub, log.WithModule("test"), time.Millisecond)

	return handlers.App(), store
}

func jsonRequest(t *testing.T, method, target string, payload any) *http.Request {
	t.Helper()

	var body io.Reader

	if payload != nil {
		data, err := json.Marshal(payload)
		require.NoError(t, err)

		body = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, target, body)
	req.Header.Set("Content-Type", "application/json")

	return req
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()

	defer func() {
		_ = resp.Body.Close()
	}()

	var out T

	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))

	return out
}

func submitPayload() map[string]any {
	return map[string]any{
		"company_name":  "Acme Robotics",
		"contact_email": "ada@acme.test",
	}
}

func TestLoginIssuesToken(t *testing.T) {
	app, _ := setupTestApp(t)

	resp, err := app.Test(jsonRequest(t, http.MethodPost, "/auth/login", map[string]string{
		"email":    "ada@acme.test",
		"password": "hunter2",
	}))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody[map[string]any](t, resp)
	assert.NotEmpty(t, body["token"])
}

func TestLoginRejectsBadPayload(t *testing.T) {
	app, _ := setupTestApp(t)

	resp, err := app.Test(jsonRequest(t, http.MethodPost, "/auth/login", map[string]string{
		"email": "not-an-email",
	}))
	require.NoError(t, err)

	defer func() {
		_ = resp.Body.Close()
	}()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSubmitAssessmentCreatesWorkflow(t *testing.T) {
	app, store := setupTestApp(t)

	resp, err := app.Test(jsonRequest(t, http.MethodPost, "/assessments", submitPayload()))
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	body := decodeBody[map[string]string](t, resp)
	require.NotEmpty(t, body["id"])
	require.NotEmpty(t, body["workflow_id"])

	assessment, ok := store.GetAssessment(body["id"])
	require.True(t, ok)
	assert.Equal(t, models.AssessmentStatusProcessing, assessment.Status)
}

func TestSubmitDuplicateReturnsConflict(t *testing.T) {
	app, _ := setupTestApp(t)

	first, err := app.Test(jsonRequest(t, http.MethodPost, "/assessments", submitPayload()))
	require.NoError(t, err)
	firstBody := decodeBody[map[string]string](t, first)

	// Same company and contact, different casing: still a duplicate.
	payload := submitPayload()
	payload["company_name"] = "ACME ROBOTICS"

	second, err := app.Test(jsonRequest(t, http.MethodPost, "/assessments", payload))
	require.NoError(t, err)
	assert.Equal(t, http.StatusConflict, second.StatusCode)

	conflict := decodeBody[map[string]any](t, second)
	assert.Equal(t, firstBody["id"], conflict["existing_id"])
}

func TestSubmitMissingFieldsRejected(t *testing.T) {
	app, _ := setupTestApp(t)

	resp, err := app.Test(jsonRequest(t, http.MethodPost, "/assessments", map[string]string{
		"company_name": "Acme",
	}))
	require.NoError(t, err)

	defer func() {
		_ = resp.Body.Close()
	}()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSubmitRateLimitEveryNth(t *testing.T) {
	app, _ := setupTestApp(t)

	for i := 1; i < rateLimitEvery; i++ {
		resp, err := app.Test(jsonRequest(t, http.MethodPost, "/assessments", map[string]any{
			"company_name":  fmt.Sprintf("Acme %d", i),
			"contact_email": fmt.Sprintf("ada+%d@acme.test", i),
		}))
		require.NoError(t, err)
		require.NoError(t, resp.Body.Close())
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	resp, err := app.Test(jsonRequest(t, http.MethodPost, "/assessments", map[string]any{
		"company_name":  "Acme Final",
		"contact_email": "ada+final@acme.test",
	}))
	require.NoError(t, err)

	defer func() {
		_ = resp.Body.Close()
	}()

	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestGetAssessmentNotFound(t *testing.T) {
	app, _ := setupTestApp(t)

	resp, err := app.Test(jsonRequest(t, http.MethodGet, "/assessments/nope", nil))
	require.NoError(t, err)

	defer func() {
		_ = resp.Body.Close()
	}()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSaveAndLoadProgress(t *testing.T) {
	app, _ := setupTestApp(t)

	record := models.DraftRecord{
		FormID:    "f1",
		StepIndex: 2,
		Fields:    models.FieldMap{"company_name": models.TextValue("Acme")},
	}

	resp, err := app.Test(jsonRequest(t, http.MethodPost, "/forms/save-progress", record))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	saved := decodeBody[map[string]string](t, resp)
	assessmentID := saved["assessment_id"]
	require.NotEmpty(t, assessmentID)

	loadResp, err := app.Test(jsonRequest(t, http.MethodGet, "/forms/load-progress/"+assessmentID, nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, loadResp.StatusCode)

	loaded := decodeBody[models.DraftRecord](t, loadResp)
	assert.Equal(t, "f1", loaded.FormID)
	assert.Equal(t, 2, loaded.StepIndex)
	assert.Equal(t, "Acme", loaded.Fields["company_name"].Text)
}

func TestSaveProgressRequiresFormID(t *testing.T) {
	app, _ := setupTestApp(t)

	resp, err := app.Test(jsonRequest(t, http.MethodPost, "/forms/save-progress", map[string]any{}))
	require.NoError(t, err)

	defer func() {
		_ = resp.Body.Close()
	}()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDeleteProgressAndList(t *testing.T) {
	app, _ := setupTestApp(t)

	resp, err := app.Test(jsonRequest(t, http.MethodPost, "/forms/save-progress", models.DraftRecord{FormID: "f1"}))
	require.NoError(t, err)
	saved := decodeBody[map[string]string](t, resp)

	listResp, err := app.Test(jsonRequest(t, http.MethodGet, "/forms/list-saved", nil))
	require.NoError(t, err)

	summaries := decodeBody[[]models.DraftSummary](t, listResp)
	require.Len(t, summaries, 1)

	delResp, err := app.Test(jsonRequest(t, http.MethodDelete, "/forms/delete-progress/"+saved["assessment_id"], nil))
	require.NoError(t, err)

	defer func() {
		_ = delResp.Body.Close()
	}()

	assert.Equal(t, http.StatusNoContent, delResp.StatusCode)

	listResp, err = app.Test(jsonRequest(t, http.MethodGet, "/forms/list-saved", nil))
	require.NoError(t, err)

	summaries = decodeBody[[]models.DraftSummary](t, listResp)
	assert.Empty(t, summaries)
}

func TestWorkflowStatusAfterSubmission(t *testing.T) {
	app, store := setupTestApp(t)

	resp, err := app.Test(jsonRequest(t, http.MethodPost, "/assessments", submitPayload()))
	require.NoError(t, err)
	body := decodeBody[map[string]string](t, resp)

	require.Eventually(t, func() bool {
		progress, ok := store.GetWorkflow(body["workflow_id"])

		return ok && progress.Status == models.WorkflowStatusCompleted
	}, 2*time.Second, 10*time.Millisecond)

	statusResp, err := app.Test(jsonRequest(t, http.MethodGet, "/workflows/"+body["workflow_id"]+"/status", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, statusResp.StatusCode)

	progress := decodeBody[models.WorkflowProgress](t, statusResp)
	assert.Equal(t, models.WorkflowStatusCompleted, progress.Status)
	assert.InEpsilon(t, 100.0, progress.ProgressPercent, 0.001)
}

func TestWorkflowStatusNotFound(t *testing.T) {
	app, _ := setupTestApp(t)

	resp, err := app.Test(jsonRequest(t, http.MethodGet, "/workflows/nope/status", nil))
	require.NoError(t, err)

	defer func() {
		_ = resp.Body.Close()
	}()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRecommendationsForExistingAssessment(t *testing.T) {
	app, _ := setupTestApp(t)

	resp, err := app.Test(jsonRequest(t, http.MethodPost, "/assessments", submitPayload()))
	require.NoError(t, err)
	body := decodeBody[map[string]string](t, resp)

	recResp, err := app.Test(jsonRequest(t, http.MethodGet, "/assessments/"+body["id"]+"/recommendations", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, recResp.StatusCode)

	recs := decodeBody[[]models.Recommendation](t, recResp)
	assert.NotEmpty(t, recs)
}
