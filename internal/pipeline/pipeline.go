// Package pipeline runs one sync: open the portal in a browser, reach the
// schedule, parse it, and hand every shift to a calendar sink.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	appLog "shiftsync/internal/log"
	"shiftsync/internal/model"
	"shiftsync/internal/portal"
	"shiftsync/internal/scraper"
)

// Sink receives shifts together with their deterministic id. Failures are
// reported in the result, never returned, so one bad record cannot stop
// the rest of the batch.
type Sink interface {
	Sync(ctx context.Context, shift model.ShiftRecord, id string) model.SyncResult
}

// flusher is implemented by sinks that buffer writes.
type flusher interface {
	Flush() error
}

// Session is a browser page owned by one run.
type Session interface {
	portal.Page
	Close() error
}

// LaunchFunc starts a browser session.
type LaunchFunc func(ctx context.Context) (Session, error)

// ChromiumLauncher launches Chromium with opts for every run.
func ChromiumLauncher(opts portal.BrowserOptions) LaunchFunc {
	return func(ctx context.Context) (Session, error) {
		appLog.Info("launching browser", "headless", opts.Headless, "profile", opts.ProfileDir)
		b, err := portal.Launch(ctx, opts)
		if err != nil {
			return nil, err
		}
		return b, nil
	}
}

// Runner wires the stages of one run together.
type Runner struct {
	Launch  LaunchFunc
	NavOpts portal.Options
	Parser  *scraper.Parser
	Sink    Sink

	// DebugDir receives page dumps when navigation fails. Empty disables them.
	DebugDir string
	// RunTimeout bounds the browser part of a run. Zero means no extra bound
	// beyond the per-action timeouts.
	RunTimeout time.Duration
}

// Report summarizes one run.
type Report struct {
	StartedAt  time.Time           `json:"started_at"`
	FinishedAt time.Time           `json:"finished_at"`
	Month      time.Time           `json:"month,omitempty"`
	Shifts     []model.ShiftRecord `json:"shifts"`
	Results    []model.SyncResult  `json:"results"`
	Created    int                 `json:"created"`
	Duplicates int                 `json:"duplicates"`
	Errors     int                 `json:"errors"`

	// Err explains why no shifts were found, if scraping failed.
	Err string `json:"error,omitempty"`
}

// AddResults appends results and updates the per-status counts.
func (r *Report) AddResults(results []model.SyncResult) {
	for _, sr := range results {
		switch sr.Status {
		case model.StatusCreated:
			r.Created++
		case model.StatusDuplicate:
			r.Duplicates++
		default:
			r.Errors++
		}
	}
	r.Results = append(r.Results, results...)
}

// Scrape opens a browser, navigates to the schedule and parses it. The
// browser is closed before Scrape returns, on every path.
func (r *Runner) Scrape(ctx context.Context) (scraper.Result, error) {
	if r.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.RunTimeout)
		defer cancel()
	}

	sess, err := r.Launch(ctx)
	if err != nil {
		return scraper.Result{}, fmt.Errorf("pipeline: launch browser: %w", err)
	}
	defer func() {
		if err := sess.Close(); err != nil {
			appLog.Error("browser close failed", err)
		}
	}()

	state, err := portal.NewNavigator(sess, r.NavOpts).Navigate(ctx)
	if err != nil {
		r.dump(ctx, sess, "navigation")
		return scraper.Result{}, fmt.Errorf("pipeline: navigation stopped at %s: %w", state, err)
	}

	appLog.Info("parsing calendar HTML")
	html, err := sess.HTML(ctx)
	if err != nil {
		return scraper.Result{}, fmt.Errorf("pipeline: reading schedule page: %w", err)
	}
	res, err := r.Parser.Parse(strings.NewReader(html))
	if err != nil {
		r.dump(ctx, sess, "parse")
		return scraper.Result{}, err
	}
	appLog.Info("scraped shifts", "count", len(res.Shifts))
	return res, nil
}

// Run performs one full sync. A failed scrape is reported as zero shifts
// rather than an error; the next scheduled run will simply try again.
func (r *Runner) Run(ctx context.Context) Report {
	rep := Report{StartedAt: time.Now()}

	res, err := r.Scrape(ctx)
	if err != nil {
		appLog.Error("scrape failed; no shifts this run", err)
		rep.Err = err.Error()
		rep.FinishedAt = time.Now()
		return rep
	}
	rep.Month = res.Month
	rep.Shifts = res.Shifts

	rep.AddResults(Sync(ctx, r.Sink, res.Shifts))

	appLog.Info("sync completed",
		"shifts", len(rep.Shifts),
		"created", rep.Created,
		"duplicates", rep.Duplicates,
		"errors", rep.Errors,
	)
	rep.FinishedAt = time.Now()
	return rep
}

// Sync hands each shift to sink in order and flushes the sink afterwards.
func Sync(ctx context.Context, sink Sink, shifts []model.ShiftRecord) []model.SyncResult {
	results := make([]model.SyncResult, 0, len(shifts))
	for _, s := range shifts {
		results = append(results, sink.Sync(ctx, s, s.ID()))
	}
	if f, ok := sink.(flusher); ok {
		if err := f.Flush(); err != nil {
			appLog.Error("sink flush failed", err)
			for i := range results {
				if results[i].Status == model.StatusCreated {
					results[i].Status = model.StatusError
					results[i].Message = err.Error()
				}
			}
		}
	}
	return results
}

func (r *Runner) dump(ctx context.Context, p portal.Page, prefix string) {
	if r.DebugDir == "" {
		return
	}
	paths, err := portal.DumpDebug(ctx, p, r.DebugDir, prefix)
	if err != nil {
		appLog.Error("debug dump failed", err, "dir", r.DebugDir)
	}
	if len(paths) > 0 {
		appLog.Info("debug dump written", "files", strings.Join(paths, ","))
	}
}

// DryRunSink logs shifts instead of syncing them.
type DryRunSink struct{}

func (DryRunSink) Sync(_ context.Context, shift model.ShiftRecord, id string) model.SyncResult {
	appLog.Info("dry run: would sync shift",
		"id", id,
		"summary", shift.Summary,
		"location", shift.Location,
		"start", shift.Start.Format(time.RFC3339),
		"end", shift.End.Format(time.RFC3339),
	)
	return model.SyncResult{Shift: shift, ID: id, Status: model.StatusCreated, Message: "dry run"}
}
