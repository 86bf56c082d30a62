package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	cli "github.com/urfave/cli/v3"

	"github.com/driftlab/assessor/pkg/api"
	"github.com/driftlab/assessor/pkg/channels/gochannel"
	"github.com/driftlab/assessor/pkg/eventbus"
	"github.com/driftlab/assessor/pkg/events"
	"github.com/driftlab/assessor/pkg/log"
	"github.com/driftlab/assessor/pkg/models"
	"github.com/driftlab/assessor/pkg/progress"
)

func watchCommand() *cli.Command {
	return &cli.Command{
		Name:      "watch",
		Usage:     "Follow a running assessment workflow",
		ArgsUsage: "<workflow-id>",
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))
			logger := log.WithModule("watch")

			workflowID := command.Args().First()
			if workflowID == "" {
				return fmt.Errorf("workflow id is required")
			}

			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			creds := newAuthStore(command)
			client := newClient(command, creds)

			pub, sub, err := gochannel.CreateChannel(watermill.NewSlogLogger(logger))
			if err != nil {
				return err
			}

			bus := eventbus.NewWatermillEventBus(pub, sub)
			defer func() {
				_ = bus.Close()
			}()

			registerAgentHandlers(bus)

			err = bus.Subscribe(ctx)
			if err != nil {
				return err
			}

			return followWorkflow(ctx, command, client, bus, workflowID)
		},
	}
}

func streamURL(command *cli.Command) string {
	return resolveStreamURL(command.String("stream-url"), command.String("api-url"))
}

// resolveStreamURL picks the push-channel endpoint: an explicit value wins,
// otherwise it is derived from the API base URL. The dev backend serves
// its push channel on a second listener, so the stock api-url maps to
// that port instead of the REST one.
func resolveStreamURL(explicit, apiURL string) string {
	if explicit != "" {
		return explicit
	}

	if apiURL == defaultAPIURL {
		return defaultStreamURL
	}

	base := strings.Replace(apiURL, "https://", "wss://", 1)
	base = strings.Replace(base, "http://", "ws://", 1)

	return strings.TrimRight(base, "/") + "/ws"
}

// registerAgentHandlers prints per-agent outcomes as notification events
// arrive. Must run before the bus subscription starts.
func registerAgentHandlers(bus eventbus.EventBus) {
	_ = bus.Handle(events.AgentCompletedEvent, func(ctx context.Context, event any) error {
		if completed, ok := event.(*events.AgentCompleted); ok {
			fmt.Printf("Agent %s finished.\n", completed.Agent.AgentName)
		}

		return nil
	})

	_ = bus.Handle(events.AgentFailedEvent, func(ctx context.Context, event any) error {
		if failed, ok := event.(*events.AgentFailed); ok {
			fmt.Printf("Agent %s failed: %s\n", failed.Agent.AgentName, failed.Agent.ErrorMessage)
		}

		return nil
	})
}

// followWorkflow tracks one workflow to completion, printing progress as
// it changes and the outcome once the workflow lands terminal.
func followWorkflow(
	ctx context.Context,
	command *cli.Command,
	client *api.Client,
	bus eventbus.EventBus,
	workflowID string,
) error {
	logger := log.WithModule("watch")
	done := make(chan models.WorkflowProgress, 1)

	tracker := progress.NewTracker(
		workflowID,
		streamURL(command),
		client,
		progress.Callbacks{
			OnCompleted: func(final models.WorkflowProgress) {
				done <- final
			},
			OnFailed: func(final models.WorkflowProgress) {
				done <- final
			},
		},
		bus,
		progress.DefaultPollInterval,
		logger,
	)

	tracker.Start(ctx)
	defer tracker.Stop()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	lastPercent := -1.0

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case final := <-done:
			if final.Status == models.WorkflowStatusCompleted {
				fmt.Println("Workflow completed.")

				return nil
			}

			return fmt.Errorf("workflow failed: %s", final.Error)

		case <-ticker.C:
			snapshot, _ := tracker.Snapshot()
			if snapshot.ProgressPercent != lastPercent {
				lastPercent = snapshot.ProgressPercent

				step := snapshot.CurrentStepName
				if step == "" {
					step = "starting"
				}

				fmt.Printf("  %3.0f%%  %s\n", snapshot.ProgressPercent, step)
			}
		}
	}
}
