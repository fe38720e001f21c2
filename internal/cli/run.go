package cli

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"shiftsync/internal/config"
)

func newRunCmd(g *globalOptions) *cobra.Command {
	var (
		format string
		dryRun bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one sync and exit",
		Long: `Run logs into the portal, scrapes the current month's schedule and
syncs every shift to the configured calendar, then prints what happened.

A failed login or missing schedule is reported as "no shifts" rather than
an error; the browser profile keeps the session for the next attempt.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			outFormat, err := parseFormat(format)
			if err != nil {
				return err
			}
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			if dryRun {
				cfg.Calendar.Backend = config.BackendDryRun
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return runOnce(ctx, cmd, cfg, outFormat)
		},
	}

	cmd.Flags().StringVar(&format, "format", "text", "Output format: text or json")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Log shifts instead of writing them to the calendar")
	return cmd
}

func runOnce(ctx context.Context, cmd *cobra.Command, cfg *config.Config, format OutputFormat) error {
	runner, err := newRunner(ctx, cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	rep := runner.Run(ctx)
	return WriteReport(cmd.OutOrStdout(), rep, format)
}
