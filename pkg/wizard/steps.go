// Package wizard drives the multi-step intake form: the fixed step
// sequence, per-step validation, and the session gluing form state to
// draft persistence and submission.
package wizard

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"

	"github.com/driftlab/assessor/pkg/models"
)

// Step is one screen of the intake sequence.
type Step struct {
	Name   string
	Title  string
	Fields []string
	schema string // JSON schema applied to this step's answers
}

// FieldError is one labeled validation finding. Validation failures are
// collected and reported as a list, never raised as errors: the wizard
// does not advance but stays interactive.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e FieldError) String() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// steps is the fixed ordered sequence. Index positions are the step
// indexes persisted in draft records.
var steps = []Step{
	{
		Name:   "company_profile",
		Title:  "Company Profile",
		Fields: []string{"company_name", "industry", "company_size"},
		schema: `{
			"type": "object",
			"properties": {
				"company_name": {"type": "string", "minLength": 2},
				"industry": {"type": "string"},
				"company_size": {"type": "string", "enum": ["", "1-50", "51-250", "251-1000", "1000+"]}
			},
			"required": ["company_name"]
		}`,
	},
	{
		Name:   "contact",
		Title:  "Primary Contact",
		Fields: []string{"contact_name", "contact_email", "contact_role"},
		schema: `{
			"type": "object",
			"properties": {
				"contact_name": {"type": "string", "minLength": 1},
				"contact_email": {"type": "string", "format": "email"},
				"contact_role": {"type": "string"}
			},
			"required": ["contact_name", "contact_email"]
		}`,
	},
	{
		Name:   "infrastructure",
		Title:  "Infrastructure Inventory",
		Fields: []string{"cloud_providers", "on_prem_servers", "data_centers"},
		schema: `{
			"type": "object",
			"properties": {
				"cloud_providers": {"type": "array", "items": {"type": "string"}, "minItems": 1},
				"on_prem_servers": {"type": "string"},
				"data_centers": {"type": "string"}
			},
			"required": ["cloud_providers"]
		}`,
	},
	{
		Name:   "ai_maturity",
		Title:  "AI Maturity",
		Fields: []string{"ai_adoption_stage", "ml_team_size"},
		schema: `{
			"type": "object",
			"properties": {
				"ai_adoption_stage": {"type": "string", "enum": ["exploring", "piloting", "production", "scaled"]},
				"ml_team_size": {"type": "string"}
			},
			"required": ["ai_adoption_stage"]
		}`,
	},
	{
		Name:   "workloads",
		Title:  "AI Workloads",
		Fields: []string{"workload_types", "monthly_inference_volume", "training_data_volume"},
		schema: `{
			"type": "object",
			"properties": {
				"workload_types": {"type": "array", "items": {"type": "string"}, "minItems": 1},
				"monthly_inference_volume": {"type": "string"},
				"training_data_volume": {"type": "string"}
			},
			"required": ["workload_types"]
		}`,
	},
	{
		Name:   "constraints",
		Title:  "Constraints & Compliance",
		Fields: []string{"compliance_regimes", "budget_range", "latency_requirements"},
		schema: `{
			"type": "object",
			"properties": {
				"compliance_regimes": {"type": "array", "items": {"type": "string"}},
				"budget_range": {"type": "string"},
				"latency_requirements": {"type": "string"}
			}
		}`,
	},
	{
		Name:   "goals",
		Title:  "Goals & Timeline",
		Fields: []string{"primary_goals", "timeline", "success_criteria"},
		schema: `{
			"type": "object",
			"properties": {
				"primary_goals": {"type": "array", "items": {"type": "string"}, "minItems": 1},
				"timeline": {"type": "string"},
				"success_criteria": {"type": "string"}
			},
			"required": ["primary_goals"]
		}`,
	},
	{
		Name:   "review",
		Title:  "Review & Confirm",
		Fields: []string{"confirmed"},
		schema: `{
			"type": "object",
			"properties": {
				"confirmed": {"type": "string", "enum": ["yes"]}
			},
			"required": ["confirmed"]
		}`,
	},
}

// Steps returns the fixed step sequence.
func Steps() []Step {
	return steps
}

// StepCount is the length of the fixed sequence.
func StepCount() int {
	return len(steps)
}

// ValidateStep checks one step's answers against its schema and returns
// the labeled findings, empty when the step passes.
func ValidateStep(stepIndex int, fields models.FieldMap) []FieldError {
	if stepIndex < 0 || stepIndex >= len(steps) {
		return []FieldError{{Field: "step", Message: fmt.Sprintf("unknown step index %d", stepIndex)}}
	}

	step := steps[stepIndex]
	document := make(map[string]any, len(step.Fields))

	for _, name := range step.Fields {
		value, ok := fields[name]
		if !ok || value.IsEmpty() {
			continue
		}

		switch value.Kind {
		case models.FieldKindSet:
			document[name] = value.Options
		default:
			document[name] = value.Text
		}
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(step.schema),
		gojsonschema.NewGoLoader(document),
	)
	if err != nil {
		return []FieldError{{Field: step.Name, Message: fmt.Sprintf("validation could not run: %v", err)}}
	}

	findings := make([]FieldError, 0, len(result.Errors()))
	for _, resultErr := range result.Errors() {
		field := resultErr.Field()
		if field == "(root)" {
			if property, ok := resultErr.Details()["property"].(string); ok {
				field = property
			}
		}

		findings = append(findings, FieldError{
			Field:   field,
			Message: resultErr.Description(),
		})
	}

	return findings
}

// ValidateAll runs every step's validation, used before submission.
func ValidateAll(fields models.FieldMap) []FieldError {
	var findings []FieldError

	for i := range steps {
		findings = append(findings, ValidateStep(i, fields)...)
	}

	return findings
}
