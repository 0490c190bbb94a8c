// Package main runs the HTTP server exposing spec.md §6's run-initiation,
// approval-resume, replay, ledger-read, and WebSocket-subscribe endpoints,
// grounded on cmd/operion-api/main.go's urfave/cli/v3 entry-point shape.
package main

import (
	"context"
	"os"

	cli "github.com/urfave/cli/v3"

	"github.com/flowmesh/engine/internal/bootstrap"
	"github.com/flowmesh/engine/internal/log"
	"github.com/flowmesh/engine/internal/web"
)

const defaultPort = "9091"

func main() {
	logger := log.WithModule("engine-api")

	cmd := &cli.Command{
		Name:                  "engine-api",
		Usage:                 "Serve run-initiation, approval-resume, and ledger-read endpoints",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for run/ledger/approval persistence",
				Required: false,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus provider (kafka, memory)",
				Value:   "memory",
				Sources: cli.EnvVars("EVENT_BUS_PROVIDER"),
			},
			&cli.StringFlag{
				Name:    "queue",
				Usage:   "Job queue provider (redis, memory)",
				Value:   "memory",
				Sources: cli.EnvVars("QUEUE_PROVIDER"),
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis connection URL for the job queue",
				Sources: cli.EnvVars("REDIS_URL"),
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
			logger.InfoContext(ctx, "initializing engine API")

			cfg := bootstrap.Config{
				EventBusProvider: command.String("event-bus"),
				QueueProvider:    command.String("queue"),
				DatabaseURL:      command.String("database-url"),
				RedisURL:         command.String("redis-url"),
				RedisQueueName:   "engine",
			}

			st, err := bootstrap.NewStore(ctx, cfg, logger)
			if err != nil {
				return err
			}

			bus, err := bootstrap.NewEventBus(cfg, logger)
			if err != nil {
				return err
			}
			defer func() {
				if err := bus.Close(); err != nil {
					logger.ErrorContext(ctx, "failed to close event bus", "error", err)
				}
			}()

			q, err := bootstrap.NewQueue(cfg)
			if err != nil {
				return err
			}
			defer func() {
				if err := q.Close(); err != nil {
					logger.ErrorContext(ctx, "failed to close queue", "error", err)
				}
			}()

			app := web.NewApp(st, q, bus, web.NoAuth{}, logger)
			return app.Listen(":" + command.String("port"))
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		logger.Error("engine-api exited with error", "error", err)
		os.Exit(1)
	}
}
