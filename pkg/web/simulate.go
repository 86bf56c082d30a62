package web

import (
	"time"

	"github.com/driftlab/assessor/pkg/events"
	"github.com/driftlab/assessor/pkg/models"
	"github.com/driftlab/assessor/pkg/web/push"
)

// simulationSteps is the canned workflow the mock backend walks through
// after a submission.
var simulationSteps = []string{
	"collect_inventory",
	"analyze_workloads",
	"score_maturity",
	"generate_recommendations",
}

var simulationAgents = []string{"inventory-agent", "analysis-agent", "recommendation-agent"}

// simulateWorkflow walks the canned steps, updating the store (for the
// polling endpoint) and publishing push frames, then lands on completed.
func simulateWorkflow(store *Store, hub *push.Hub, workflowID string, tick time.Duration) {
	steps := make([]models.WorkflowStep, 0, len(simulationSteps))
	for _, name := range simulationSteps {
		steps = append(steps, models.WorkflowStep{Name: name, Status: models.StepStatusPending})
	}

	store.PutWorkflow(&models.WorkflowProgress{
		ID:        workflowID,
		Status:    models.WorkflowStatusRunning,
		Steps:     steps,
		UpdatedAt: time.Now().UTC(),
	})

	for _, agent := range simulationAgents {
		hub.Publish(workflowID, events.StreamAgentStatus, events.AgentStatusMessage{
			WorkflowID: workflowID,
			AgentName:  agent,
			Status:     models.AgentStateStarted,
		})
	}

	total := len(simulationSteps)

	for i, stepName := range simulationSteps {
		time.Sleep(tick)

		percent := float64(i+1) / float64(total) * 100

		store.UpdateWorkflow(workflowID, func(progress *models.WorkflowProgress) {
			progress.ProgressPercent = percent
			progress.CurrentStepName = stepName
			progress.Steps[i].Status = models.StepStatusCompleted
		})

		hub.Publish(workflowID, events.StreamWorkflowProgress, events.WorkflowProgressMessage{
			WorkflowID:      workflowID,
			Status:          models.WorkflowStatusRunning,
			ProgressPercent: percent,
			CurrentStep:     stepName,
		})

		hub.Publish(workflowID, events.StreamStepCompleted, events.StepCompletedMessage{
			WorkflowID:      workflowID,
			StepName:        stepName,
			ProgressPercent: percent,
		})
	}

	for _, agent := range simulationAgents {
		hub.Publish(workflowID, events.StreamAgentStatus, events.AgentStatusMessage{
			WorkflowID: workflowID,
			AgentName:  agent,
			Status:     models.AgentStateCompleted,
			Summary:    "finished without findings",
		})
	}

	store.UpdateWorkflow(workflowID, func(progress *models.WorkflowProgress) {
		progress.Status = models.WorkflowStatusCompleted
		progress.ProgressPercent = 100
	})

	hub.Publish(workflowID, events.StreamWorkflowProgress, events.WorkflowProgressMessage{
		WorkflowID:      workflowID,
		Status:          models.WorkflowStatusCompleted,
		ProgressPercent: 100,
	})

	hub.Publish(workflowID, events.StreamNotification, events.NotificationMessage{
		WorkflowID: workflowID,
		Title:      "Assessment complete",
		Body:       "Recommendations are ready to view.",
		Level:      "info",
	})
}
