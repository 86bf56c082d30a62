package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	cli "github.com/urfave/cli/v3"

	"github.com/driftlab/assessor/pkg/channels/gochannel"
	"github.com/driftlab/assessor/pkg/draft"
	"github.com/driftlab/assessor/pkg/eventbus"
	"github.com/driftlab/assessor/pkg/localstore"
	"github.com/driftlab/assessor/pkg/log"
	"github.com/driftlab/assessor/pkg/wizard"
)

func submitCommand() *cli.Command {
	return &cli.Command{
		Name:  "submit",
		Usage: "Submit the most recent saved draft without re-running the wizard",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "watch",
				Usage: "Follow workflow progress after an accepted submission",
				Value: true,
			},
		},
		Action: runSubmit,
	}
}

func runSubmit(ctx context.Context, command *cli.Command) error {
	log.Setup(command.String("log-level"))
	logger := log.WithModule("submit")

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	creds := newAuthStore(command)
	client := newClient(command, creds)

	local, err := localstore.NewDraftStore(command.String("state-url"))
	if err != nil {
		return err
	}

	defer func() {
		_ = local.Close(ctx)
	}()

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

	manager := draft.NewManager(wizard.NewFormID(), wizard.StepCount(), client, local, logger).
		WithBus(bus)
	session := wizard.NewSession(manager, draft.NewGuard(0, 0), client, logger)

	restored, err := session.Restore(ctx)
	if err != nil {
		return err
	}

	if !restored {
		return fmt.Errorf("no saved draft found, run 'assessor intake' first")
	}

	outcome, err := session.Submit(ctx)
	if err != nil {
		return err
	}

	switch {
	case outcome.Accepted:
		fmt.Printf("Assessment accepted: %s (workflow %s)\n",
			outcome.AssessmentID, outcome.WorkflowID)

		if command.Bool("watch") && outcome.WorkflowID != "" {
			return followWorkflow(ctx, command, client, bus, outcome.WorkflowID)
		}

		return nil

	case outcome.Duplicate:
		fmt.Printf("An assessment for this company already exists: %s\n", outcome.ExistingID)
		fmt.Println("Your draft was kept; edit the answers or view the existing assessment.")

		return nil

	case outcome.Throttled:
		return fmt.Errorf("submission throttled, retry in %s", outcome.RetryIn.Round(time.Second))

	default:
		fmt.Println("The saved draft has validation findings:")

		for _, finding := range outcome.FieldErrors {
			fmt.Printf("  - %s\n", finding)
		}

		return fmt.Errorf("draft is incomplete, run 'assessor intake --resume' to finish it")
	}
}
