package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"shiftsync/internal/config"
	"shiftsync/internal/gcal"
	"shiftsync/internal/ics"
	appLog "shiftsync/internal/log"
	"shiftsync/internal/pipeline"
	"shiftsync/internal/portal"
	"shiftsync/internal/scraper"
)

// newSink builds the calendar sink selected by calendar.backend. out
// receives the Google authorization URL if a login is needed.
func newSink(ctx context.Context, cfg *config.Config, out io.Writer) (pipeline.Sink, error) {
	c := cfg.Calendar
	switch c.Backend {
	case config.BackendDryRun:
		appLog.Info("dry run: shifts will be logged, not synced")
		return pipeline.DryRunSink{}, nil
	case config.BackendICS:
		store, err := ics.Open(c.ICSPath, c.ReminderMinutes)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.BackendGoogle:
		client, err := gcal.New(ctx, gcal.Options{
			CalendarID:      c.CalendarID,
			Timezone:        c.Timezone,
			ColorID:         c.ColorID,
			ReminderMinutes: c.ReminderMinutes,
			CredentialsFile: c.CredentialsFile,
			TokenFile:       c.TokenFile,
			Out:             out,
		})
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unknown calendar backend %q", c.Backend)
	}
}

func browserOptions(cfg *config.Config) portal.BrowserOptions {
	return portal.BrowserOptions{
		Headless:      cfg.Browser.Headless,
		ProfileDir:    cfg.Browser.ProfileDir,
		ExecPath:      cfg.Browser.ExecPath,
		ActionTimeout: time.Duration(cfg.Browser.ActionTimeoutSec) * time.Second,
	}
}

func newParser(cfg *config.Config) *scraper.Parser {
	return scraper.New(resolveLocationOrLocal(cfg.Calendar.Timezone))
}

// newRunner wires a Runner from cfg.
func newRunner(ctx context.Context, cfg *config.Config, out io.Writer) (*pipeline.Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	sink, err := newSink(ctx, cfg, out)
	if err != nil {
		return nil, fmt.Errorf("initializing %s calendar: %w", cfg.Calendar.Backend, err)
	}
	return &pipeline.Runner{
		Launch:     pipeline.ChromiumLauncher(browserOptions(cfg)),
		NavOpts:    portal.OptionsFromConfig(cfg),
		Parser:     newParser(cfg),
		Sink:       sink,
		DebugDir:   cfg.Browser.DebugDir,
		RunTimeout: time.Duration(cfg.Browser.RunTimeoutMinutes) * time.Minute,
	}, nil
}
