package web

import (
	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"
)

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(400).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func unauthorized(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(401).
		WithInstance(c.Path()).
		WithType("authentication_error").
		WithDetail(detail)

	return c.Status(fiber.StatusUnauthorized).JSON(problem)
}

func notFound(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(404).
		WithInstance(c.Path()).
		WithType("not_found").
		WithDetail(detail)

	return c.Status(fiber.StatusNotFound).JSON(problem)
}

// duplicateConflict reports an already-existing assessment. The problem
// body carries the existing id as an extension member so clients can offer
// a "view existing" choice.
func duplicateConflict(c fiber.Ctx, existingID string) error {
	return c.Status(fiber.StatusConflict).JSON(fiber.Map{
		"type":        "duplicate_assessment",
		"title":       "Conflict",
		"status":      fiber.StatusConflict,
		"detail":      "an assessment with the same company and contact already exists",
		"instance":    c.Path(),
		"existing_id": existingID,
	})
}

func tooManyRequests(c fiber.Ctx) error {
	problem := problems.NewStatusProblem(429).
		WithInstance(c.Path()).
		WithType("rate_limited").
		WithDetail("submission rate limit reached, slow down")

	return c.Status(fiber.StatusTooManyRequests).JSON(problem)
}
