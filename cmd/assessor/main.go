package main

import (
	"context"
	"os"
	"path/filepath"

	cli "github.com/urfave/cli/v3"

	"github.com/driftlab/assessor/pkg/api"
	"github.com/driftlab/assessor/pkg/authstore"
	"github.com/driftlab/assessor/pkg/localstore"
	"github.com/driftlab/assessor/pkg/log"
	"github.com/driftlab/assessor/pkg/otelhelper"
)

const (
	defaultAPIURL = "http://localhost:9090"

	// The dev backend's push channel lives on its own listener.
	defaultStreamURL = "ws://localhost:9091/ws"
)

func main() {
	cmd := &cli.Command{
		Name:                  "assessor",
		Usage:                 "Run AI infrastructure assessments from the terminal",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "api-url",
				Usage:   "Base URL of the assessment backend",
				Value:   defaultAPIURL,
				Sources: cli.EnvVars("ASSESSOR_API_URL"),
			},
			&cli.StringFlag{
				Name:    "stream-url",
				Usage:   "Push channel endpoint (derived from api-url when empty)",
				Sources: cli.EnvVars("ASSESSOR_STREAM_URL"),
			},
			&cli.StringFlag{
				Name:    "state-url",
				Usage:   "Local state location (file://<dir> or redis://<addr>)",
				Value:   defaultStateURL(),
				Sources: cli.EnvVars("ASSESSOR_STATE_URL"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Commands: []*cli.Command{
			loginCommand(),
			logoutCommand(),
			whoamiCommand(),
			draftsCommand(),
			intakeCommand(),
			submitCommand(),
			watchCommand(),
		},
	}

	err := cmd.Run(context.Background(), os.Args)
	if err != nil {
		log.WithModule("assessor").Error("command failed", "error", err)
		os.Exit(1)
	}
}

// defaultStateURL places local state under the user's home directory,
// falling back to the working directory when home is unknown.
func defaultStateURL() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "file://.assessor"
	}

	return "file://" + filepath.Join(home, ".assessor")
}

// newAuthStore builds the credential store for the configured state
// location. Credentials are always file-backed, even with a redis draft
// store, so a token never lands in a shared instance.
func newAuthStore(command *cli.Command) *authstore.Store {
	stateURL := command.String("state-url")
	if localstore.Provider(stateURL) == "redis" {
		home, err := os.UserHomeDir()
		if err != nil {
			return authstore.New(".assessor")
		}

		return authstore.New(filepath.Join(home, ".assessor"))
	}

	return authstore.New(stateURL)
}

// newClient wires an API client against the configured backend with the
// stored credentials. Forced logouts print a re-auth instruction.
func newClient(command *cli.Command, creds *authstore.Store) *api.Client {
	logger := log.WithModule("api")

	client := api.NewClient(command.String("api-url"), creds, logger).
		WithLogoutHandler(func() {
			logger.Warn("session expired, run 'assessor login' to re-authenticate")
		})

	if os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") != "" {
		tracer, err := otelhelper.NewTracer(context.Background(), "assessor-cli")
		if err != nil {
			logger.Warn("tracing disabled, exporter setup failed", "error", err)
		} else {
			client.WithTracer(tracer)
		}
	}

	return client
}
