package wizard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftlab/assessor/pkg/models"
)

// completeAnswers fills every required field across all steps.
func completeAnswers() models.FieldMap {
	return models.FieldMap{
		"company_name":      models.TextValue("Acme Robotics"),
		"contact_name":      models.TextValue("Ada"),
		"contact_email":     models.TextValue("ada@acme.test"),
		"cloud_providers":   models.SetValue("aws"),
		"ai_adoption_stage": models.TextValue("piloting"),
		"workload_types":    models.SetValue("inference"),
		"primary_goals":     models.SetValue("cost_reduction"),
		"confirmed":         models.TextValue("yes"),
	}
}

func TestStepSequenceIsFixed(t *testing.T) {
	sequence := Steps()

	require.Len(t, sequence, StepCount())
	assert.Equal(t, "company_profile", sequence[0].Name)
	assert.Equal(t, "review", sequence[len(sequence)-1].Name)
}

func TestValidateStepPasses(t *testing.T) {
	findings := ValidateStep(0, completeAnswers())

	assert.Empty(t, findings)
}

func TestValidateStepMissingRequiredField(t *testing.T) {
	findings := ValidateStep(0, models.FieldMap{})

	require.NotEmpty(t, findings)
	assert.Equal(t, "company_name", findings[0].Field)
}

func TestValidateStepTooShortValue(t *testing.T) {
	fields := models.FieldMap{"company_name": models.TextValue("A")}

	findings := ValidateStep(0, fields)

	require.NotEmpty(t, findings)
	assert.Equal(t, "company_name", findings[0].Field)
}

func TestValidateStepBadEmail(t *testing.T) {
	fields := models.FieldMap{
		"contact_name":  models.TextValue("Ada"),
		"contact_email": models.TextValue("not-an-email"),
	}

	findings := ValidateStep(1, fields)

	require.NotEmpty(t, findings)
	assert.Equal(t, "contact_email", findings[0].Field)
}

func TestValidateStepEmptySetCountsAsMissing(t *testing.T) {
	fields := models.FieldMap{"cloud_providers": models.SetValue()}

	findings := ValidateStep(2, fields)

	require.NotEmpty(t, findings)
	assert.Equal(t, "cloud_providers", findings[0].Field)
}

func TestValidateStepUnknownEnumValue(t *testing.T) {
	fields := models.FieldMap{"ai_adoption_stage": models.TextValue("daydreaming")}

	findings := ValidateStep(3, fields)

	assert.NotEmpty(t, findings)
}

func TestValidateStepOptionalStepPassesEmpty(t *testing.T) {
	// Constraints step has no required fields.
	findings := ValidateStep(5, models.FieldMap{})

	assert.Empty(t, findings)
}

func TestValidateStepOutOfRange(t *testing.T) {
	findings := ValidateStep(99, models.FieldMap{})

	require.Len(t, findings, 1)
	assert.Equal(t, "step", findings[0].Field)
}

func TestValidateAll(t *testing.T) {
	assert.Empty(t, ValidateAll(completeAnswers()))

	partial := completeAnswers()
	delete(partial, "confirmed")
	delete(partial, "primary_goals")

	findings := ValidateAll(partial)
	assert.Len(t, findings, 2)
}
