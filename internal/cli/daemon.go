package cli

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	appLog "shiftsync/internal/log"
	"shiftsync/internal/pipeline"
	"shiftsync/internal/web"
)

func newDaemonCmd(g *globalOptions) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Sync on a schedule and serve a status API",
		Long: `Daemon runs a sync immediately, then again on schedule.cron (or every
schedule.interval_hours). A run that is still going when the next one is
due causes that tick to be skipped.

If listen is set, a small HTTP API reports the last run and accepts manual
triggers:

  GET  /health
  GET  /api/status
  GET  /api/shifts
  GET  /api/shifts/{id}
  POST /api/sync`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			if listen != "" {
				cfg.Listen = listen
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			runner, err := newRunner(ctx, cfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			coord := pipeline.NewCoordinator(ctx, runner)

			logger := cronLogger{}
			sched := cron.New(cron.WithChain(
				cron.Recover(logger),
				cron.SkipIfStillRunning(logger),
			))
			spec := cfg.CronSpec()
			if _, err := sched.AddFunc(spec, func() { coord.RunOnce() }); err != nil {
				return fmt.Errorf("invalid schedule %q: %w", spec, err)
			}

			serverErr := make(chan error, 1)
			if cfg.Listen != "" {
				go func() { serverErr <- web.Serve(ctx, cfg, coord) }()
			}

			appLog.Info("daemon started", "schedule", spec, "listen", cfg.Listen)
			coord.Trigger()
			sched.Start()

			select {
			case <-ctx.Done():
				appLog.Info("signal received, shutting down")
			case err := <-serverErr:
				if err != nil {
					appLog.Error("HTTP server stopped", err)
				}
				stop()
			}

			<-sched.Stop().Done()
			coord.Wait()
			appLog.Info("daemon exiting")
			return nil
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "HTTP listen address (overrides config if set)")
	return cmd
}

// cronLogger routes cron's internal logging through appLog.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	appLog.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	appLog.Error("cron: "+msg, err, keysAndValues...)
}
