// Command resume delivers a success or failure outcome for a callback token,
// waking the workflow step that is suspended on it.
//
//	resume <callbackToken> [success|failure] [payloadOrMessage]
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.temporal.io/sdk/client"

	"github.com/ahrav/go-callback/internal/config"
	"github.com/ahrav/go-callback/internal/controlplane"
	"github.com/ahrav/go-callback/internal/invoker"
	"github.com/ahrav/go-callback/internal/resume"
	"github.com/ahrav/go-callback/internal/worker"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

type flags struct {
	controlPlane string
	baseURL      string
	authToken    string
	hostPort     string
	namespace    string
	output       string
	logLevel     string
}

func (f flags) overrides() map[string]any {
	return map[string]any{
		"resume.control_plane": f.controlPlane,
		"resume.base_url":      f.baseURL,
		"resume.auth_token":    f.authToken,
		"resume.output":        f.output,
		"temporal.host_port":   f.hostPort,
		"temporal.namespace":   f.namespace,
		"log.level":            f.logLevel,
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	exitCode := invoker.ExitOK
	var f flags

	cmd := &cobra.Command{
		Use:           "resume <callbackToken> [success|failure] [payloadOrMessage]",
		Short:         "Resume a workflow step suspended on a callback token",
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(f.overrides())
			if err != nil {
				return err
			}
			logger := config.NewLogger(cfg.Log, stderr)

			plane, closeFn, err := newControlPlane(cfg, logger)
			if err != nil {
				return err
			}
			defer closeFn()

			var opts []invoker.Option
			if cfg.Resume.Output == config.OutputJSON {
				opts = append(opts, invoker.WithJSONOutput())
			}
			d := resume.NewDispatcher(plane, resume.WithLogger(logger))
			exitCode = invoker.New(d, cmd.Name(), stdout, stderr, opts...).Run(cmd.Context(), args)
			return nil
		},
	}
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	fs := cmd.Flags()
	fs.StringVar(&f.controlPlane, "control-plane", "", "control plane to deliver through (temporal|http)")
	fs.StringVar(&f.baseURL, "base-url", "", "base URL of the HTTP control plane")
	fs.StringVar(&f.authToken, "auth-token", "", "bearer token for the HTTP control plane")
	fs.StringVar(&f.hostPort, "temporal-address", "", "Temporal frontend host:port")
	fs.StringVar(&f.namespace, "namespace", "", "Temporal namespace")
	fs.StringVar(&f.output, "output", "", "output format (text|json)")
	fs.StringVar(&f.logLevel, "log-level", "", "log level (debug|info|warn|error)")

	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return invoker.ExitFailure
	}
	return exitCode
}

func newControlPlane(cfg *config.Config, logger *slog.Logger) (resume.ControlPlane, func(), error) {
	switch cfg.Resume.ControlPlane {
	case config.ControlPlaneHTTP:
		return controlplane.NewHTTP(cfg.Resume.BaseURL,
			controlplane.WithHTTPTimeout(cfg.Resume.Timeout),
			controlplane.WithBearerToken(cfg.Resume.AuthToken),
		), func() {}, nil
	default:
		// Lazy so a malformed token is rejected before any connection is made.
		c, err := client.NewLazyClient(worker.TemporalClientOptions(cfg.Temporal, logger))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create temporal client: %w", err)
		}
		plane := controlplane.NewTemporal(c,
			controlplane.WithTemporalLogger(logger),
			controlplane.WithUpdateTimeout(cfg.Resume.Timeout),
		)
		return plane, c.Close, nil
	}
}
