// Package main runs the worker that drains the job queue and drives node
// execution (spec.md §4.1), grounded on cmd/operion-worker/main.go's
// urfave/cli/v3 entry-point shape.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"

	"github.com/flowmesh/engine/internal/bootstrap"
	"github.com/flowmesh/engine/internal/engine"
	"github.com/flowmesh/engine/internal/log"
)

func main() {
	cmd := &cli.Command{
		Name:                  "engine-worker",
		EnableShellCompletion: true,
		Usage:                 "Start workers draining the job queue and executing workflow nodes",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "worker-id",
				Aliases: []string{"id"},
				Usage:   "Custom worker id (auto-generated if not provided)",
				Sources: cli.EnvVars("WORKER_ID"),
			},
			&cli.IntFlag{
				Name:    "concurrency",
				Usage:   "Number of goroutines draining the queue concurrently",
				Value:   4,
				Sources: cli.EnvVars("WORKER_CONCURRENCY"),
			},
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "Database connection URL for run/ledger/approval persistence",
				Sources: cli.EnvVars("DATABASE_URL"),
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
				Name:    "llm-base-url",
				Usage:   "OpenAI-chat-completions-compatible base URL for agent/guardrails/cognitive nodes",
				Sources: cli.EnvVars("LLM_BASE_URL"),
			},
			&cli.StringFlag{
				Name:    "llm-api-key",
				Usage:   "API key for the configured LLM backend",
				Sources: cli.EnvVars("LLM_API_KEY"),
			},
			&cli.StringFlag{
				Name:    "tool-registry",
				Usage:   "Path to the static tool registry YAML file",
				Sources: cli.EnvVars("TOOL_REGISTRY_PATH"),
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

			workerID := command.String("worker-id")
			if workerID == "" {
				workerID = "worker-" + uuid.New().String()[:8]
			}
			logger := log.WithModule("engine-worker").With("worker_id", workerID)
			logger.InfoContext(ctx, "initializing engine worker")

			cfg := bootstrap.Config{
				EventBusProvider: command.String("event-bus"),
				QueueProvider:    command.String("queue"),
				DatabaseURL:      command.String("database-url"),
				RedisURL:         command.String("redis-url"),
				RedisQueueName:   "engine",
				LLMBaseURL:       command.String("llm-base-url"),
				LLMAPIKey:        command.String("llm-api-key"),
				ToolRegistryPath: command.String("tool-registry"),
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

			registry, err := bootstrap.NewToolRegistry(cfg)
			if err != nil {
				return err
			}
			llmClient := bootstrap.NewLLMClient(cfg)
			handlers := bootstrap.NewNodeRegistry(llmClient, registry)

			eng := engine.New(st, q, bus, handlers, logger)

			runCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			concurrency := int(command.Int("concurrency"))
			if concurrency <= 0 {
				concurrency = 1
			}

			var wg sync.WaitGroup
			for i := 0; i < concurrency; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					if err := eng.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
						logger.ErrorContext(runCtx, "engine loop exited with error", "error", err)
					}
				}()
			}

			wg.Wait()
			return nil
		},
	}

	logger := log.WithModule("engine-worker")
	if err := cmd.Run(context.Background(), os.Args); err != nil {
		logger.Error("engine-worker exited with error", "error", err)
		os.Exit(1)
	}
}
