// Package cli implements the shiftsync command line.
package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"shiftsync/internal/config"
	appLog "shiftsync/internal/log"
)

const (
	ExitSuccess = 0
	ExitError   = 1
)

// Version is set at build time with -ldflags.
var Version = "0.1.0-dev"

// globalOptions holds the persistent flags shared by all subcommands.
type globalOptions struct {
	configPath string
	verbose    bool
}

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:   "shiftsync",
		Short: "Sync shifts from the ESS scheduling portal into a calendar",
		Long: `shiftsync logs into the employee self-service portal with a headless
browser, reads the monthly schedule, and creates one calendar event per
shift. Events are identified by a hash of their summary and times, so
running it repeatedly never creates duplicates.`,
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "config.yaml", "Path to config file")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")

	cmd.AddCommand(
		newRunCmd(opts),
		newDaemonCmd(opts),
		newParseCmd(opts),
		newProbeCmd(opts),
		newVersionCmd(),
	)
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "shiftsync %s\n", Version)
		},
	}
}

// loadConfig reads the config file, overlays the environment once, and
// installs the logger.
func (o *globalOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config %s: %w", o.configPath, err)
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	level := cfg.Log.Level
	if o.verbose {
		level = string(appLog.LevelDebug)
	}
	appLog.Setup(appLog.Options{File: cfg.Log.File, Level: level})

	appLog.Debug("effective config",
		"config_path", o.configPath,
		"portal_url", cfg.Portal.URL,
		"headless", cfg.Browser.Headless,
		"profile_dir", cfg.Browser.ProfileDir,
		"backend", cfg.Calendar.Backend,
		"calendar_id", cfg.Calendar.CalendarID,
		"timezone", cfg.Calendar.Timezone,
		"schedule", cfg.CronSpec(),
	)
	return cfg, nil
}

// resolveLocationOrLocal loads the named zone, falling back to time.Local.
func resolveLocationOrLocal(name string) *time.Location {
	if name == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		appLog.Error("failed to load timezone; falling back to local", err, "name", name)
		return time.Local
	}
	return loc
}

// Execute runs the CLI
func Execute() {
	err := NewRootCmd().Execute()
	_ = appLog.Close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(ExitError)
	}
}
