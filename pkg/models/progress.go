package models

import "time"

// WorkflowStatus represents the lifecycle state of a backend assessment workflow.
type WorkflowStatus string

const (
	WorkflowStatusPending   WorkflowStatus = "pending"
	WorkflowStatusRunning   WorkflowStatus = "running"
	WorkflowStatusCompleted WorkflowStatus = "completed"
	WorkflowStatusFailed    WorkflowStatus = "failed"
)

// IsTerminal reports whether no further status transitions can occur.
func (s WorkflowStatus) IsTerminal() bool {
	return s == WorkflowStatusCompleted || s == WorkflowStatusFailed
}

// StepStatus represents the state of one named workflow step.
type StepStatus string

const (
	StepStatusPending   StepStatus = "pending"
	StepStatusRunning   StepStatus = "running"
	StepStatusCompleted StepStatus = "completed"
	StepStatusFailed    StepStatus = "failed"
)

// WorkflowStep is one entry in the ordered step sequence of a workflow.
type WorkflowStep struct {
	Name   string     `json:"name"   validate:"required"`
	Status StepStatus `json:"status" validate:"required"`
}

// WorkflowProgress is the live view of one assessment workflow's processing.
// ProgressPercent is monotonically non-decreasing while the status is
// running; stale lower values are rejected by the reconciler.
type WorkflowProgress struct {
	ID              string         `json:"id"               validate:"required"`
	Status          WorkflowStatus `json:"status"           validate:"required"`
	ProgressPercent float64        `json:"progress_percent" validate:"min=0,max=100"`
	CurrentStepName string         `json:"current_step_name,omitempty"`
	Steps           []WorkflowStep `json:"steps,omitempty"`
	Error           string         `json:"error,omitempty"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// AgentState represents the status of one named backend worker.
type AgentState string

const (
	AgentStateStarted   AgentState = "started"
	AgentStateCompleted AgentState = "completed"
	AgentStateFailed    AgentState = "failed"
)

// AgentStatus is the latest reported state of one agent contributing to a
// workflow. Entries are keyed by agent name and overwritten in place; no
// history is retained.
type AgentStatus struct {
	AgentName    string     `json:"agent_name" validate:"required"`
	Status       AgentState `json:"status"     validate:"required"`
	ErrorMessage string     `json:"error_message,omitempty"`
	Summary      string     `json:"summary,omitempty"`
}
