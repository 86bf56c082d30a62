package events

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/driftlab/assessor/pkg/models"
)

// StreamMessageType identifies messages on the backend push channel.
type StreamMessageType string

const (
	StreamSubscribe        StreamMessageType = "subscribe"
	StreamWorkflowProgress StreamMessageType = "workflow_progress"
	StreamAgentStatus      StreamMessageType = "agent_status"
	StreamStepCompleted    StreamMessageType = "step_completed"
	StreamNotification     StreamMessageType = "notification"
	StreamAlert            StreamMessageType = "alert"
	StreamError            StreamMessageType = "error"
)

// ErrUnknownStreamMessage indicates a push-channel message with an
// unrecognized type field.
var ErrUnknownStreamMessage = errors.New("unknown stream message type")

// StreamDecodeError wraps a malformed push-channel payload. Malformed
// messages surface as typed errors instead of propagating zero values.
type StreamDecodeError struct {
	Type StreamMessageType
	Err  error
}

func (e *StreamDecodeError) Error() string {
	return fmt.Sprintf("decoding %s stream message: %v", e.Type, e.Err)
}

func (e *StreamDecodeError) Unwrap() error {
	return e.Err
}

// StreamEnvelope is the outer frame of every push-channel message.
type StreamEnvelope struct {
	Type StreamMessageType `json:"type"`
	Data json.RawMessage   `json:"data"`
}

// SubscribeMessage is sent by the client immediately after connecting to
// scope the stream to one workflow or assessment.
type SubscribeMessage struct {
	Type StreamMessageType `json:"type"`
	Data SubscribeScope    `json:"data"`
}

type SubscribeScope struct {
	WorkflowID   string `json:"workflow_id,omitempty"`
	AssessmentID string `json:"assessment_id,omitempty"`
}

// NewSubscribeMessage builds the subscription frame for a workflow id.
func NewSubscribeMessage(scope SubscribeScope) SubscribeMessage {
	return SubscribeMessage{Type: StreamSubscribe, Data: scope}
}

// WorkflowProgressMessage reports overall workflow progress.
type WorkflowProgressMessage struct {
	WorkflowID      string                `json:"workflow_id"`
	Status          models.WorkflowStatus `json:"status"`
	ProgressPercent float64               `json:"progress_percent"`
	CurrentStep     string                `json:"current_step,omitempty"`
	Steps           []models.WorkflowStep `json:"steps,omitempty"`
	Error           string                `json:"error,omitempty"`
}

// AgentStatusMessage reports the latest state of one named agent.
type AgentStatusMessage struct {
	WorkflowID   string            `json:"workflow_id"`
	AgentName    string            `json:"agent_name"`
	Status       models.AgentState `json:"status"`
	ErrorMessage string            `json:"error_message,omitempty"`
	Summary      string            `json:"summary,omitempty"`
}

// StepCompletedMessage is the specific signal that a named step finished.
// Its percentage is applied even when numerically lower than the stored
// value, since it supersedes coarser progress reports.
type StepCompletedMessage struct {
	WorkflowID      string  `json:"workflow_id"`
	StepName        string  `json:"step_name"`
	ProgressPercent float64 `json:"progress_percent"`
}

// NotificationMessage carries a user-facing informational notice.
type NotificationMessage struct {
	WorkflowID string `json:"workflow_id,omitempty"`
	Title      string `json:"title"`
	Body       string `json:"body,omitempty"`
	Level      string `json:"level,omitempty"`
}

// AlertMessage carries an operator-facing warning pushed by the backend.
type AlertMessage struct {
	WorkflowID string `json:"workflow_id,omitempty"`
	Message    string `json:"message"`
	Severity   string `json:"severity,omitempty"`
}

// ErrorMessage reports a server-side error on the stream itself.
type ErrorMessage struct {
	WorkflowID string `json:"workflow_id,omitempty"`
	Message    string `json:"message"`
}

// DecodeStreamMessage parses one raw push-channel frame into its typed
// message. Unknown types and malformed payloads return typed errors.
func DecodeStreamMessage(raw []byte) (any, error) {
	var envelope StreamEnvelope

	err := json.Unmarshal(raw, &envelope)
	if err != nil {
		return nil, &StreamDecodeError{Type: "envelope", Err: err}
	}

	var message any

	switch envelope.Type {
	case StreamWorkflowProgress:
		message = &WorkflowProgressMessage{}
	case StreamAgentStatus:
		message = &AgentStatusMessage{}
	case StreamStepCompleted:
		message = &StepCompletedMessage{}
	case StreamNotification:
		message = &NotificationMessage{}
	case StreamAlert:
		message = &AlertMessage{}
	case StreamError:
		message = &ErrorMessage{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStreamMessage, envelope.Type)
	}

	err = json.Unmarshal(envelope.Data, message)
	if err != nil {
		return nil, &StreamDecodeError{Type: envelope.Type, Err: err}
	}

	return message, nil
}

// EncodeStreamMessage frames a typed payload for the push channel. Used by
// the mock backend and by tests feeding the reconciler.
func EncodeStreamMessage(messageType StreamMessageType, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", messageType, err)
	}

	return json.Marshal(StreamEnvelope{Type: messageType, Data: data})
}
