package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	cli "github.com/urfave/cli/v3"

	"github.com/driftlab/assessor/pkg/localstore"
	"github.com/driftlab/assessor/pkg/log"
	"github.com/driftlab/assessor/pkg/models"
)

func draftsCommand() *cli.Command {
	return &cli.Command{
		Name:  "drafts",
		Usage: "Inspect and manage saved intake drafts",
		Commands: []*cli.Command{
			draftsListCommand(),
			draftsShowCommand(),
			draftsDeleteCommand(),
		},
	}
}

func draftsListCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List saved drafts",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "remote",
				Usage: "List the backend's saved drafts instead of local ones",
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			var (
				summaries []models.DraftSummary
				err       error
			)

			if command.Bool("remote") {
				creds := newAuthStore(command)
				summaries, err = newClient(command, creds).ListSaved(ctx)
			} else {
				var store localstore.DraftStore

				store, err = localstore.NewDraftStore(command.String("state-url"))
				if err != nil {
					return err
				}

				defer func() {
					_ = store.Close(ctx)
				}()

				summaries, err = store.List(ctx)
			}

			if err != nil {
				return err
			}

			if len(summaries) == 0 {
				fmt.Println("No saved drafts.")

				return nil
			}

			for _, summary := range summaries {
				fmt.Printf("%s  step %d  saved %s\n",
					summary.FormID, summary.StepIndex, summary.SavedAt.Format("2006-01-02 15:04:05"))
			}

			return nil
		},
	}
}

func draftsShowCommand() *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "Print one draft's saved answers",
		ArgsUsage: "<form-id>",
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			formID := command.Args().First()
			if formID == "" {
				return fmt.Errorf("form id is required")
			}

			store, err := localstore.NewDraftStore(command.String("state-url"))
			if err != nil {
				return err
			}

			defer func() {
				_ = store.Close(ctx)
			}()

			record, err := store.Get(ctx, formID)
			if err != nil {
				return err
			}

			encoder := json.NewEncoder(os.Stdout)
			encoder.SetIndent("", "  ")

			return encoder.Encode(record)
		},
	}
}

func draftsDeleteCommand() *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "Delete a saved draft",
		ArgsUsage: "<form-id>",
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			formID := command.Args().First()
			if formID == "" {
				return fmt.Errorf("form id is required")
			}

			store, err := localstore.NewDraftStore(command.String("state-url"))
			if err != nil {
				return err
			}

			defer func() {
				_ = store.Close(ctx)
			}()

			err = store.Delete(ctx, formID)
			if err != nil {
				return err
			}

			fmt.Println("Draft deleted.")

			return nil
		},
	}
}
