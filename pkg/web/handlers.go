// Package web is the mock assessment backend: the REST surface the client
// toolkit is written against, for local development and integration tests.
package web

import (
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/google/uuid"

	"github.com/driftlab/assessor/pkg/models"
	"github.com/driftlab/assessor/pkg/web/push"
)

// rateLimitEvery makes every Nth submission return 429 so clients can
// exercise their guard-relax path against a live server.
const rateLimitEvery = 5

type APIHandlers struct {
	store          *Store
	hub            *push.Hub
	validator      *validator.Validate
	logger         *slog.Logger
	simulationTick time.Duration

	submissions atomic.Int64
}

func NewAPIHandlers(store *Store, hub *push.Hub, logger *slog.Logger, simulationTick time.Duration) *APIHandlers {
	return &APIHandlers{
		store:          store,
		hub:            hub,
		validator:      validator.New(validator.WithRequiredStructEnabled()),
		logger:         logger,
		simulationTick: simulationTick,
	}
}

// App assembles the fiber application with every route the client uses.
func (h *APIHandlers) App() *fiber.App {
	app := fiber.New()
	app.Use(cors.New())

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())

	app.Post("/auth/login", h.Login)

	app.Post("/assessments", h.SubmitAssessment)
	app.Get("/assessments/:id", h.GetAssessment)
	app.Put("/assessments/:id", h.UpdateAssessment)
	app.Delete("/assessments/:id", h.DeleteAssessment)
	app.Get("/assessments/:id/recommendations", h.GetRecommendations)

	app.Post("/forms/save-progress", h.SaveProgress)
	app.Get("/forms/load-progress/:id", h.LoadProgress)
	app.Delete("/forms/delete-progress/:id", h.DeleteProgress)
	app.Get("/forms/list-saved", h.ListSaved)

	app.Get("/workflows/:id/status", h.WorkflowStatus)

	return app
}

type loginRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (h *APIHandlers) Login(c fiber.Ctx) error {
	var req loginRequest

	if err := c.Bind().Body(&req); err != nil {
		return badRequest(c, "invalid login payload: "+err.Error())
	}

	if err := h.validator.Struct(&req); err != nil {
		return badRequest(c, err.Error())
	}

	if req.Password == "" {
		return unauthorized(c, "invalid credentials")
	}

	return c.JSON(fiber.Map{
		"token": "mock-" + uuid.New().String(),
		"user": models.User{
			ID:    uuid.New().String(),
			Email: req.Email,
			Name:  "Mock User",
		},
	})
}

func (h *APIHandlers) SubmitAssessment(c fiber.Ctx) error {
	var assessment models.Assessment

	if err := c.Bind().Body(&assessment); err != nil {
		return badRequest(c, "invalid assessment payload: "+err.Error())
	}

	if err := h.validator.StructPartial(&assessment, "CompanyName", "ContactEmail"); err != nil {
		return badRequest(c, err.Error())
	}

	if existingID, found := h.store.FindDuplicate(assessment.CompanyName, assessment.ContactEmail); found {
		return duplicateConflict(c, existingID)
	}

	if h.submissions.Add(1)%rateLimitEvery == 0 {
		return tooManyRequests(c)
	}

	now := time.Now().UTC()
	assessment.ID = uuid.New().String()
	assessment.WorkflowID = uuid.New().String()
	assessment.Status = models.AssessmentStatusProcessing
	assessment.CreatedAt = now
	assessment.UpdatedAt = now

	h.store.PutAssessment(&assessment)

	h.logger.Info("assessment submitted",
		"assessment_id", assessment.ID, "workflow_id", assessment.WorkflowID)

	go simulateWorkflow(h.store, h.hub, assessment.WorkflowID, h.simulationTick)

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"id":          assessment.ID,
		"workflow_id": assessment.WorkflowID,
		"status":      assessment.Status,
	})
}

func (h *APIHandlers) GetAssessment(c fiber.Ctx) error {
	assessment, ok := h.store.GetAssessment(c.Params("id"))
	if !ok {
		return notFound(c, "assessment not found")
	}

	return c.JSON(assessment)
}

func (h *APIHandlers) UpdateAssessment(c fiber.Ctx) error {
	existing, ok := h.store.GetAssessment(c.Params("id"))
	if !ok {
		return notFound(c, "assessment not found")
	}

	var update models.Assessment

	if err := c.Bind().Body(&update); err != nil {
		return badRequest(c, "invalid assessment payload: "+err.Error())
	}

	update.ID = existing.ID
	update.WorkflowID = existing.WorkflowID
	update.CreatedAt = existing.CreatedAt
	update.UpdatedAt = time.Now().UTC()

	h.store.PutAssessment(&update)

	return c.JSON(&update)
}

func (h *APIHandlers) DeleteAssessment(c fiber.Ctx) error {
	h.store.DeleteAssessment(c.Params("id"))

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) GetRecommendations(c fiber.Ctx) error {
	assessment, ok := h.store.GetAssessment(c.Params("id"))
	if !ok {
		return notFound(c, "assessment not found")
	}

	now := time.Now().UTC()

	return c.JSON([]models.Recommendation{
		{
			ID:           uuid.New().String(),
			AssessmentID: assessment.ID,
			Title:        "Consolidate GPU capacity",
			Category:     "infrastructure",
			Priority:     "high",
			Summary:      "Pool training workloads onto shared reserved capacity.",
			CreatedAt:    now,
		},
		{
			ID:           uuid.New().String(),
			AssessmentID: assessment.ID,
			Title:        "Introduce model registry",
			Category:     "mlops",
			Priority:     "medium",
			Summary:      "Track deployed model versions centrally.",
			CreatedAt:    now,
		},
	})
}

func (h *APIHandlers) SaveProgress(c fiber.Ctx) error {
	var record models.DraftRecord

	if err := c.Bind().Body(&record); err != nil {
		return badRequest(c, "invalid draft payload: "+err.Error())
	}

	if record.FormID == "" {
		return badRequest(c, "form_id is required")
	}

	assessmentID := h.store.SaveDraft(&record)

	return c.JSON(fiber.Map{"assessment_id": assessmentID})
}

func (h *APIHandlers) LoadProgress(c fiber.Ctx) error {
	record, ok := h.store.GetDraft(c.Params("id"))
	if !ok {
		return notFound(c, "draft not found")
	}

	return c.JSON(record)
}

func (h *APIHandlers) DeleteProgress(c fiber.Ctx) error {
	h.store.DeleteDraft(c.Params("id"))

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) ListSaved(c fiber.Ctx) error {
	return c.JSON(h.store.ListDrafts())
}

func (h *APIHandlers) WorkflowStatus(c fiber.Ctx) error {
	progress, ok := h.store.GetWorkflow(c.Params("id"))
	if !ok {
		return notFound(c, "workflow not found")
	}

	return c.JSON(progress)
}
