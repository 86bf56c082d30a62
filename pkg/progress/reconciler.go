// Package progress merges workflow updates arriving from the push channel
// and the polling fallback into one coherent on-screen state per workflow.
package progress

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/driftlab/assessor/pkg/eventbus"
	"github.com/driftlab/assessor/pkg/events"
	"github.com/driftlab/assessor/pkg/models"
)

// Callbacks fire exactly once when the workflow reaches a terminal status.
type Callbacks struct {
	OnCompleted func(models.WorkflowProgress)
	OnFailed    func(models.WorkflowProgress)
}

// Reconciler folds messages for one workflow id into a single
// WorkflowProgress plus per-agent status map. Message application is
// serialized; the monotonic percent tie-break is the only defense against
// out-of-order delivery across the two transports (at-least-once,
// last-write-wins — not exactly-once).
type Reconciler struct {
	id        string
	callbacks Callbacks
	bus       eventbus.EventBus
	logger    *slog.Logger

	mu       sync.Mutex
	progress models.WorkflowProgress
	agents   map[string]models.AgentStatus
	terminal bool
}

// NewReconciler creates a reconciler for one workflow id. A caller wanting
// updates for a new run must create a new reconciler; a closed one never
// reopens.
func NewReconciler(workflowID string, callbacks Callbacks, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		id:        workflowID,
		callbacks: callbacks,
		logger:    logger,
		agents:    make(map[string]models.AgentStatus),
		progress: models.WorkflowProgress{
			ID:     workflowID,
			Status: models.WorkflowStatusPending,
		},
	}
}

// WithBus attaches the notification bus for completion/failure toasts.
func (r *Reconciler) WithBus(bus eventbus.EventBus) *Reconciler {
	r.bus = bus

	return r
}

// WorkflowID returns the id this reconciler is scoped to.
func (r *Reconciler) WorkflowID() string {
	return r.id
}

// Terminal reports whether the workflow reached completed or failed.
func (r *Reconciler) Terminal() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.terminal
}

// Snapshot returns the current merged view: the workflow progress and the
// agent statuses sorted by name.
func (r *Reconciler) Snapshot() (models.WorkflowProgress, []models.AgentStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()

	agents := make([]models.AgentStatus, 0, len(r.agents))
	for _, agent := range r.agents {
		agents = append(agents, agent)
	}

	sort.Slice(agents, func(i, j int) bool {
		return agents[i].AgentName < agents[j].AgentName
	})

	return r.progress, agents
}

// Apply folds one decoded push-channel message into the view. Messages for
// other workflow ids and messages arriving after a terminal status are
// ignored.
func (r *Reconciler) Apply(ctx context.Context, message any) {
	switch msg := message.(type) {
	case *events.WorkflowProgressMessage:
		r.applyProgress(ctx, msg)
	case *events.AgentStatusMessage:
		r.applyAgent(ctx, msg)
	case *events.StepCompletedMessage:
		r.applyStepCompleted(msg)
	case *events.NotificationMessage:
		r.logger.Info("backend notification", "title", msg.Title, "body", msg.Body, "level", msg.Level)
	case *events.AlertMessage:
		r.logger.Warn("backend alert", "message", msg.Message, "severity", msg.Severity)
	case *events.ErrorMessage:
		r.logger.Error("push channel error message", "message", msg.Message)
	default:
		r.logger.Debug("ignoring unhandled stream message", "type", message)
	}
}

// ApplyPoll folds a polled status snapshot into the view under the same
// tie-break rules as pushed progress messages.
func (r *Reconciler) ApplyPoll(ctx context.Context, snapshot *models.WorkflowProgress) {
	if snapshot == nil {
		return
	}

	r.applyProgress(ctx, &events.WorkflowProgressMessage{
		WorkflowID:      snapshot.ID,
		Status:          snapshot.Status,
		ProgressPercent: snapshot.ProgressPercent,
		CurrentStep:     snapshot.CurrentStepName,
		Steps:           snapshot.Steps,
		Error:           snapshot.Error,
	})
}

func (r *Reconciler) applyProgress(ctx context.Context, msg *events.WorkflowProgressMessage) {
	if msg.WorkflowID != r.id {
		return
	}

	r.mu.Lock()

	if r.terminal {
		r.mu.Unlock()

		return
	}

	if msg.Status == models.WorkflowStatusRunning || msg.Status.IsTerminal() {
		r.progress.Status = msg.Status
	}

	// A lower percentage is a stale, out-of-order update; applying it
	// would visually regress the bar.
	if msg.ProgressPercent >= r.progress.ProgressPercent {
		r.progress.ProgressPercent = msg.ProgressPercent
	}

	if msg.CurrentStep != "" {
		r.progress.CurrentStepName = msg.CurrentStep
	}

	if len(msg.Steps) > 0 {
		r.progress.Steps = msg.Steps
	}

	if msg.Error != "" {
		r.progress.Error = msg.Error
	}

	if msg.Status.IsTerminal() {
		r.closeTerminalLocked(ctx, msg.Status)

		return
	}

	r.mu.Unlock()
}

func (r *Reconciler) applyStepCompleted(msg *events.StepCompletedMessage) {
	if msg.WorkflowID != r.id {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.terminal {
		return
	}

	found := false

	for i := range r.progress.Steps {
		if r.progress.Steps[i].Name == msg.StepName {
			r.progress.Steps[i].Status = models.StepStatusCompleted
			found = true

			break
		}
	}

	if !found {
		r.progress.Steps = append(r.progress.Steps, models.WorkflowStep{
			Name:   msg.StepName,
			Status: models.StepStatusCompleted,
		})
	}

	// A named step completing is a more specific signal than a bare
	// percentage, so its value applies even when numerically lower.
	if msg.ProgressPercent > 0 {
		r.progress.ProgressPercent = msg.ProgressPercent
	}
}

func (r *Reconciler) applyAgent(ctx context.Context, msg *events.AgentStatusMessage) {
	if msg.WorkflowID != r.id {
		return
	}

	r.mu.Lock()

	if r.terminal {
		r.mu.Unlock()

		return
	}

	agent := models.AgentStatus{
		AgentName:    msg.AgentName,
		Status:       msg.Status,
		ErrorMessage: msg.ErrorMessage,
		Summary:      msg.Summary,
	}

	// Overwritten in place; no history retained.
	r.agents[msg.AgentName] = agent

	r.mu.Unlock()

	switch msg.Status {
	case models.AgentStateCompleted:
		r.publish(ctx, events.AgentCompleted{
			BaseEvent: events.NewBaseEvent(events.AgentCompletedEvent, r.id),
			Agent:     agent,
		})
	case models.AgentStateFailed:
		r.publish(ctx, events.AgentFailed{
			BaseEvent: events.NewBaseEvent(events.AgentFailedEvent, r.id),
			Agent:     agent,
		})
	}
}

// closeTerminalLocked finishes the workflow. Caller holds r.mu; the lock
// is released before callbacks fire.
func (r *Reconciler) closeTerminalLocked(ctx context.Context, status models.WorkflowStatus) {
	r.terminal = true
	r.progress.Status = status

	if status == models.WorkflowStatusCompleted {
		r.progress.ProgressPercent = 100
	}

	final := r.progress

	r.mu.Unlock()

	if status == models.WorkflowStatusCompleted {
		r.publish(ctx, events.WorkflowCompleted{
			BaseEvent: events.NewBaseEvent(events.WorkflowCompletedEvent, r.id),
			Progress:  final,
		})

		if r.callbacks.OnCompleted != nil {
			r.callbacks.OnCompleted(final)
		}

		return
	}

	r.publish(ctx, events.WorkflowFailed{
		BaseEvent: events.NewBaseEvent(events.WorkflowFailedEvent, r.id),
		Progress:  final,
		Error:     final.Error,
	})

	if r.callbacks.OnFailed != nil {
		r.callbacks.OnFailed(final)
	}
}

func (r *Reconciler) publish(ctx context.Context, event eventbus.Event) {
	if r.bus == nil {
		return
	}

	err := r.bus.Publish(ctx, r.id, event)
	if err != nil {
		r.logger.Debug("failed to publish notification event", "error", err)
	}
}
