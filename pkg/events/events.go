// Package events defines the typed messages flowing through the assessor
// toolkit: in-process notification events and the push-channel wire protocol.
package events

import (
	"time"

	"github.com/driftlab/assessor/pkg/models"
	"github.com/google/uuid"
)

type EventType string

// Topic is the in-process notification topic consumed by toast/bell renderers.
const Topic = "assessor.notifications"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Workflow outcome notifications.
	WorkflowCompletedEvent EventType = "workflow.completed"
	WorkflowFailedEvent    EventType = "workflow.failed"

	// Per-agent notifications.
	AgentCompletedEvent EventType = "agent.completed"
	AgentFailedEvent    EventType = "agent.failed"

	// Draft lifecycle notifications.
	DraftSavedEvent EventType = "draft.saved"
)

type BaseEvent struct {
	ID         string    `json:"id"`
	Type       EventType `json:"type"`
	Timestamp  time.Time `json:"timestamp"`
	WorkflowID string    `json:"workflow_id,omitempty"`
}

// NewBaseEvent stamps a fresh event envelope for the given workflow.
func NewBaseEvent(eventType EventType, workflowID string) BaseEvent {
	return BaseEvent{
		ID:         uuid.New().String(),
		Type:       eventType,
		Timestamp:  time.Now().UTC(),
		WorkflowID: workflowID,
	}
}

type WorkflowCompleted struct {
	BaseEvent

	Progress models.WorkflowProgress `json:"progress"`
}

func (w WorkflowCompleted) GetType() EventType {
	return WorkflowCompletedEvent
}

type WorkflowFailed struct {
	BaseEvent

	Progress models.WorkflowProgress `json:"progress"`
	Error    string                  `json:"error"`
}

func (w WorkflowFailed) GetType() EventType {
	return WorkflowFailedEvent
}

type AgentCompleted struct {
	BaseEvent

	Agent models.AgentStatus `json:"agent"`
}

func (a AgentCompleted) GetType() EventType {
	return AgentCompletedEvent
}

type AgentFailed struct {
	BaseEvent

	Agent models.AgentStatus `json:"agent"`
}

func (a AgentFailed) GetType() EventType {
	return AgentFailedEvent
}

// DraftSaved announces a successful draft write, local or remote. Consumers
// use it for unobtrusive "saved" indicators, never for control flow.
type DraftSaved struct {
	BaseEvent

	FormID       string `json:"form_id"`
	AssessmentID string `json:"assessment_id,omitempty"`
	Remote       bool   `json:"remote"`
}

func (d DraftSaved) GetType() EventType {
	return DraftSavedEvent
}
