// Command worker runs the Temporal worker hosting the processing workflow and
// its activities, and can start workflow executions.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.temporal.io/sdk/client"
	sdkworker "go.temporal.io/sdk/worker"

	"github.com/ahrav/go-callback/internal/config"
	"github.com/ahrav/go-callback/internal/processing"
	"github.com/ahrav/go-callback/internal/worker"
	"github.com/ahrav/go-callback/internal/workflow"
	"github.com/ahrav/go-callback/pkg/events"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

type rootFlags struct {
	hostPort  string
	namespace string
	taskQueue string
	logLevel  string
	logFormat string
}

func (f *rootFlags) load() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(map[string]any{
		"temporal.host_port":  f.hostPort,
		"temporal.namespace":  f.namespace,
		"temporal.task_queue": f.taskQueue,
		"log.level":           f.logLevel,
		"log.format":          f.logFormat,
	})
	if err != nil {
		return nil, nil, err
	}
	return cfg, config.NewLogger(cfg.Log, os.Stderr), nil
}

func newRootCmd() *cobra.Command {
	f := &rootFlags{}
	root := &cobra.Command{
		Use:          "worker",
		Short:        "Run the callback processing worker",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWorker(cmd.Context(), f)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&f.hostPort, "temporal-address", "", "Temporal frontend host:port")
	pf.StringVar(&f.namespace, "namespace", "", "Temporal namespace")
	pf.StringVar(&f.taskQueue, "task-queue", "", "Temporal task queue")
	pf.StringVar(&f.logLevel, "log-level", "", "log level (debug|info|warn|error)")
	pf.StringVar(&f.logFormat, "log-format", "", "log format (text|json)")

	root.AddCommand(newStartCmd(f))
	return root
}

func runWorker(ctx context.Context, f *rootFlags) error {
	cfg, logger, err := f.load()
	if err != nil {
		return err
	}

	c, err := worker.InitializeTemporalClient(cfg.Temporal, logger)
	if err != nil {
		return err
	}
	defer c.Close()

	pub, closePublisher, err := worker.InitializePublisher(ctx, cfg.Publisher, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := closePublisher(); err != nil {
			logger.Warn("failed to close publisher", "error", err)
		}
	}()

	w := sdkworker.New(c, cfg.Temporal.TaskQueue, sdkworker.Options{})
	worker.RegisterAll(w, worker.Dependencies{
		Publisher:         pub,
		EventSink:         events.NewLogEventSink(logger),
		ProcessingOptions: []processing.ActivitiesOption{processing.WithSimulatedLatency()},
	})

	logger.Info("worker starting",
		"task_queue", cfg.Temporal.TaskQueue,
		"namespace", cfg.Temporal.Namespace,
		"publisher", cfg.Publisher.Kind)

	interrupt := make(chan any)
	go func() {
		<-ctx.Done()
		close(interrupt)
	}()
	return w.Run(interrupt)
}

func newStartCmd(f *rootFlags) *cobra.Command {
	var (
		workflowID string
		items      []string
	)
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start a processing workflow execution",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := f.load()
			if err != nil {
				return err
			}

			c, err := worker.InitializeTemporalClient(cfg.Temporal, logger)
			if err != nil {
				return err
			}
			defer c.Close()

			req := workflow.ProcessingRequest{
				CallbackTimeout: cfg.Suspension.CallbackTimeout,
				PublishTimeout:  cfg.Suspension.PublishTimeout,
			}
			for _, it := range items {
				raw, err := json.Marshal(it)
				if err != nil {
					return err
				}
				req.InputData.Items = append(req.InputData.Items, raw)
			}
			if workflowID == "" {
				workflowID = "processing-" + uuid.NewString()
			}

			run, err := c.ExecuteWorkflow(cmd.Context(), client.StartWorkflowOptions{
				ID:        workflowID,
				TaskQueue: cfg.Temporal.TaskQueue,
			}, workflow.ProcessingWorkflow, req)
			if err != nil {
				return fmt.Errorf("failed to start workflow: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Started workflow %s (run %s)\n", run.GetID(), run.GetRunID())
			return nil
		},
	}
	cmd.Flags().StringVar(&workflowID, "workflow-id", "", "workflow id; callback tokens embed it")
	cmd.Flags().StringSliceVar(&items, "item", nil, "input item (repeatable)")
	return cmd
}
