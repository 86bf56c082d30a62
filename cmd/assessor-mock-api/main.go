package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	cli "github.com/urfave/cli/v3"

	"github.com/driftlab/assessor/pkg/log"
	"github.com/driftlab/assessor/pkg/web"
	"github.com/driftlab/assessor/pkg/web/push"
)

const (
	defaultPort     = 9090
	defaultPushPort = 9091
	defaultTick     = 2 * time.Second
)

func main() {
	cmd := &cli.Command{
		Name:                  "assessor-mock-api",
		Usage:                 "Run the mock assessment backend for local development",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port for the REST API",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.IntFlag{
				Name:    "push-port",
				Usage:   "Port for the websocket push channel",
				Value:   defaultPushPort,
				Sources: cli.EnvVars("PUSH_PORT"),
			},
			&cli.DurationFlag{
				Name:    "tick",
				Usage:   "Delay between simulated workflow steps",
				Value:   defaultTick,
				Sources: cli.EnvVars("SIMULATION_TICK"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))
			logger := log.WithModule("mock-api")

			logger.InfoContext(ctx, "Initializing mock assessment backend")

			store := web.NewStore()
			hub := push.NewHub(log.WithModule("push"))
			handlers := web.NewAPIHandlers(store, hub, logger, command.Duration("tick"))

			pushMux := http.NewServeMux()
			pushMux.Handle("/ws", hub)

			pushAddr := fmt.Sprintf(":%d", command.Int("push-port"))

			go func() {
				logger.InfoContext(ctx, "Push channel listening", "addr", pushAddr)

				err := http.ListenAndServe(pushAddr, pushMux)
				if err != nil {
					logger.ErrorContext(ctx, "Push channel stopped", "error", err)
				}
			}()

			addr := fmt.Sprintf(":%d", command.Int("port"))

			logger.InfoContext(ctx, "REST API listening", "addr", addr)

			return handlers.App().Listen(addr)
		},
	}

	err := cmd.Run(context.Background(), os.Args)
	if err != nil {
		log.WithModule("mock-api").Error("server failed", "error", err)
		os.Exit(1)
	}
}
