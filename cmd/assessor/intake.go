package main

import (
	"context"
	"encoding/json"
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
	"github.com/driftlab/assessor/pkg/events"
	"github.com/driftlab/assessor/pkg/localstore"
	"github.com/driftlab/assessor/pkg/log"
	"github.com/driftlab/assessor/pkg/models"
	"github.com/driftlab/assessor/pkg/wizard"
)

const defaultAutosaveInterval = 30 * time.Second

func intakeCommand() *cli.Command {
	return &cli.Command{
		Name:  "intake",
		Usage: "Run the intake wizard from a prepared answers file",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "answers",
				Usage:    "Path to a JSON file of field answers",
				Required: true,
			},
			&cli.BoolFlag{
				Name:  "resume",
				Usage: "Restore a previously saved draft before applying answers",
			},
			&cli.DurationFlag{
				Name:  "autosave",
				Usage: "Autosave interval (0 disables)",
				Value: defaultAutosaveInterval,
			},
			&cli.BoolFlag{
				Name:  "watch",
				Usage: "Follow workflow progress after an accepted submission",
				Value: true,
			},
		},
		Action: runIntake,
	}
}

func runIntake(ctx context.Context, command *cli.Command) error {
	log.Setup(command.String("log-level"))
	logger := log.WithModule("intake")

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	answers, err := loadAnswers(command.String("answers"))
	if err != nil {
		return err
	}

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

	_ = bus.Handle(events.DraftSavedEvent, func(ctx context.Context, event any) error {
		saved, ok := event.(*events.DraftSaved)
		if ok {
			logger.Debug("draft saved", "form_id", saved.FormID, "remote", saved.Remote)
		}

		return nil
	})

	registerAgentHandlers(bus)

	err = bus.Subscribe(ctx)
	if err != nil {
		return err
	}

	manager := draft.NewManager(wizard.NewFormID(), wizard.StepCount(), client, local, logger).
		WithBus(bus)
	guard := draft.NewGuard(0, 0)
	session := wizard.NewSession(manager, guard, client, logger)

	if command.Bool("resume") {
		restored, err := session.Restore(ctx)
		if err != nil {
			return err
		}

		if restored {
			fmt.Printf("Resumed draft at step %d (%s).\n",
				session.StepIndex()+1, session.CurrentStep().Title)
		}
	}

	if interval := command.Duration("autosave"); interval > 0 {
		cancel := session.StartAutoSave(ctx, interval)
		defer cancel()
	}

	for name, value := range answers {
		session.Answer(name, value)
	}

	// Walk the remaining steps; the first dirty step stops the run with
	// its findings so the answers file can be corrected.
	for session.StepIndex() < wizard.StepCount()-1 {
		step := session.CurrentStep()

		findings := session.Next()
		if len(findings) > 0 {
			result := session.Save(ctx)
			if result.Saved {
				fmt.Printf("Progress saved (%s).\n", result.Location)
			}

			fmt.Printf("Step %q is incomplete:\n", step.Title)

			for _, finding := range findings {
				fmt.Printf("  - %s\n", finding)
			}

			return fmt.Errorf("intake stopped at step %q", step.Name)
		}

		fmt.Printf("Step %q complete.\n", step.Title)
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
		fmt.Println("The form has validation findings:")

		for _, finding := range outcome.FieldErrors {
			fmt.Printf("  - %s\n", finding)
		}

		return fmt.Errorf("intake form is incomplete")
	}
}

// loadAnswers reads a flat JSON object of answers: strings become text
// fields, arrays of strings become multi-select sets.
func loadAnswers(path string) (models.FieldMap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read answers file: %w", err)
	}

	var raw map[string]any

	err = json.Unmarshal(data, &raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse answers file: %w", err)
	}

	answers := make(models.FieldMap, len(raw))

	for name, value := range raw {
		switch typed := value.(type) {
		case string:
			answers[name] = models.TextValue(typed)
		case []any:
			options := make([]string, 0, len(typed))

			for _, option := range typed {
				text, ok := option.(string)
				if !ok {
					return nil, fmt.Errorf("answer %q: options must be strings", name)
				}

				options = append(options, text)
			}

			answers[name] = models.SetValue(options...)
		default:
			return nil, fmt.Errorf("answer %q: unsupported value type %T", name, value)
		}
	}

	return answers, nil
}
