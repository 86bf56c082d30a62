package main

import (
	"context"
	"fmt"

	cli "github.com/urfave/cli/v3"

	"github.com/driftlab/assessor/pkg/log"
)

func loginCommand() *cli.Command {
	return &cli.Command{
		Name:  "login",
		Usage: "Authenticate against the assessment backend",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "email",
				Usage:    "Account email",
				Required: true,
				Sources:  cli.EnvVars("ASSESSOR_EMAIL"),
			},
			&cli.StringFlag{
				Name:     "password",
				Usage:    "Account password",
				Required: true,
				Sources:  cli.EnvVars("ASSESSOR_PASSWORD"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			creds := newAuthStore(command)
			client := newClient(command, creds)

			result, err := client.Login(ctx, command.String("email"), command.String("password"))
			if err != nil {
				return err
			}

			err = creds.SetToken(result.Token)
			if err != nil {
				return err
			}

			if result.User != nil {
				err = creds.SetUser(result.User)
				if err != nil {
					return err
				}
			}

			fmt.Println("Logged in.")

			return nil
		},
	}
}

func logoutCommand() *cli.Command {
	return &cli.Command{
		Name:  "logout",
		Usage: "Discard the stored session token",
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			err := newAuthStore(command).ClearAuth()
			if err != nil {
				return err
			}

			fmt.Println("Logged out.")

			return nil
		},
	}
}

func whoamiCommand() *cli.Command {
	return &cli.Command{
		Name:  "whoami",
		Usage: "Show the authenticated account",
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			creds := newAuthStore(command)

			// Picks up tokens written by earlier client versions and
			// migrates them into the canonical location.
			token, err := creds.TokenFromAnySource()
			if err != nil {
				return err
			}

			if token == "" {
				fmt.Println("Not logged in.")

				return nil
			}

			if user := creds.User(); user != nil {
				fmt.Printf("Logged in as %s (%s)\n", user.Name, user.Email)

				return nil
			}

			fmt.Println("Logged in (no account record stored).")

			return nil
		},
	}
}
