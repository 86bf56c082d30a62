// Package models defines the core domain models shared by the assessor client toolkit.
package models

import "time"

// AssessmentStatus represents the lifecycle state of an assessment on the backend.
type AssessmentStatus string

const (
	AssessmentStatusDraft      AssessmentStatus = "draft"      // Unsubmitted, editable
	AssessmentStatusSubmitted  AssessmentStatus = "submitted"  // Queued for processing
	AssessmentStatusProcessing AssessmentStatus = "processing" // Workflow running
	AssessmentStatusCompleted  AssessmentStatus = "completed"  // Recommendations available
	AssessmentStatusFailed     AssessmentStatus = "failed"
)

// Assessment is the backend's record of one infrastructure assessment,
// including the remote draft payload while it is still being filled in.
type Assessment struct {
	ID           string           `json:"id"`
	CompanyName  string           `json:"company_name"  validate:"required,min=2"`
	ContactEmail string           `json:"contact_email" validate:"required,email"`
	Status       AssessmentStatus `json:"status"`
	DraftData    FieldMap         `json:"draft_data,omitempty"`
	CurrentStep  int              `json:"current_step"`
	WorkflowID   string           `json:"workflow_id,omitempty"`
	Owner        string           `json:"owner,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// Recommendation is one generated advisory item attached to a completed assessment.
type Recommendation struct {
	ID           string    `json:"id"`
	AssessmentID string    `json:"assessment_id" validate:"required"`
	Title        string    `json:"title"         validate:"required"`
	Category     string    `json:"category"`
	Priority     string    `json:"priority"      validate:"omitempty,oneof=low medium high critical"`
	Summary      string    `json:"summary"`
	CreatedAt    time.Time `json:"created_at"`
}

// User is the authenticated account record stored alongside the token.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email" validate:"required,email"`
	Name  string `json:"name"`
}
