package portal

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"

	"shiftsync/internal/config"
	appLog "shiftsync/internal/log"
)

var (
	// ErrLoadFailed means the entry page could not be loaded even after a reload.
	ErrLoadFailed = errors.New("portal: entry page failed to load")
	// ErrLoginRejected means the login form was still shown after submitting it.
	ErrLoginRejected = errors.New("portal: login form still shown after submit")
	// ErrScheduleNotFound means no schedule link was found and the current page is not the schedule.
	ErrScheduleNotFound = errors.New("portal: schedule view not reachable")
	// ErrCalendarMissing means the schedule view never rendered its calendar grid.
	ErrCalendarMissing = errors.New("portal: calendar grid did not appear")
)

const (
	// recheckTimeout bounds the post-login check for a lingering login form.
	recheckTimeout = time.Second
	// detectTimeout bounds each probe of the entry state after the first load.
	detectTimeout = time.Second
)

// Options configures a Navigator.
type Options struct {
	URL      string
	VenueID  string
	Username string
	Password string

	Selectors config.SelectorsConfig

	// ProbeTimeout bounds each "is this gate shown?" check.
	ProbeTimeout time.Duration
	// ActionTimeout bounds network-idle waits after form submits and clicks.
	ActionTimeout time.Duration
	// CalendarWait bounds the wait for the calendar grid marker.
	CalendarWait time.Duration
	// RetryDelay is the pause before reloading a failed entry page.
	RetryDelay time.Duration
}

// OptionsFromConfig builds navigator options from the application config.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		URL:           cfg.Portal.URL,
		VenueID:       cfg.Portal.VenueID,
		Username:      cfg.Portal.Username,
		Password:      cfg.Portal.Password,
		Selectors:     cfg.Portal.Selectors,
		ProbeTimeout:  time.Duration(cfg.Browser.ProbeTimeoutSec) * time.Second,
		ActionTimeout: time.Duration(cfg.Browser.ActionTimeoutSec) * time.Second,
		CalendarWait:  time.Duration(cfg.Browser.CalendarWaitSec) * time.Second,
		RetryDelay:    time.Second,
	}
}

// Navigator moves a Page from the portal entry URL to the rendered schedule.
type Navigator struct {
	page Page
	opts Options
}

// NewNavigator returns a Navigator driving page.
func NewNavigator(page Page, opts Options) *Navigator {
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = 5 * time.Second
	}
	if opts.ActionTimeout <= 0 {
		opts.ActionTimeout = 20 * time.Second
	}
	if opts.CalendarWait <= 0 {
		opts.CalendarWait = 10 * time.Second
	}
	if len(opts.Selectors.ScheduleLinks) == 0 {
		opts.Selectors = config.DefaultSelectors()
	}
	return &Navigator{page: page, opts: opts}
}

// transition is one edge of the login state machine.
type transition struct {
	from, to State
	name     string
	run      func(context.Context) error
}

// Navigate drives the page to the schedule view and returns the state it
// reached. On failure the returned state is the last one reached and the
// error says which step could not complete.
func (n *Navigator) Navigate(ctx context.Context) (State, error) {
	if err := n.open(ctx); err != nil {
		return StateNoVenue, err
	}

	steps := []transition{
		{StateNoVenue, StateVenueSet, "venue", n.venueGate},
		{StateVenueSet, StateAuthenticated, "login", n.loginGate},
		{StateAuthenticated, StateOnSchedule, "schedule", n.locateSchedule},
	}

	state := DetectState(ctx, n.page, n.opts.Selectors, min(detectTimeout, n.opts.ProbeTimeout))
	if state == StateAuthenticated {
		// Nothing recognised; every gate probes for itself.
		state = StateNoVenue
	}
	appLog.Debug("portal entry state", "state", state)

	for _, st := range steps {
		if state != st.from {
			continue
		}
		if err := st.run(ctx); err != nil {
			appLog.Error("portal navigation step failed", err, "step", st.name, "state", state)
			return state, err
		}
		appLog.Debug("portal state", "from", st.from, "to", st.to)
		state = st.to
	}
	return state, nil
}

// open loads the entry page, reloading once if the first load fails.
func (n *Navigator) open(ctx context.Context) error {
	appLog.Info("navigating to portal", "url", n.opts.URL)

	attempt := 0
	err := retry.Do(
		func() error {
			attempt++
			if attempt == 1 {
				return n.page.Navigate(ctx, n.opts.URL)
			}
			return n.page.Reload(ctx)
		},
		retry.Attempts(2),
		retry.Context(ctx),
		retry.Delay(n.opts.RetryDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(_ uint, err error) {
			appLog.Warn("initial load failed, reloading", "err", err)
		}),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrLoadFailed, err)
	}
	return nil
}

func (n *Navigator) venueGate(ctx context.Context) error {
	sel := n.opts.Selectors
	if !n.page.Visible(ctx, sel.VenueInput, n.opts.ProbeTimeout) {
		appLog.Debug("venue gate not shown; session already scoped")
		return nil
	}

	appLog.Info("entering venue id")
	if err := n.page.Fill(ctx, sel.VenueInput, n.opts.VenueID); err != nil {
		return fmt.Errorf("portal: fill venue: %w", err)
	}
	if err := n.page.Click(ctx, sel.VenueSubmit); err != nil {
		return fmt.Errorf("portal: submit venue: %w", err)
	}
	if err := n.page.WaitNetworkIdle(ctx, n.opts.ActionTimeout); err != nil {
		return fmt.Errorf("portal: after venue submit: %w", err)
	}
	return nil
}

func (n *Navigator) loginGate(ctx context.Context) error {
	sel := n.opts.Selectors
	if !n.page.Visible(ctx, sel.UsernameInput, n.opts.ProbeTimeout) {
		appLog.Debug("login form not shown; session already authenticated")
		return nil
	}

	appLog.Info("logging in", "username", n.opts.Username)
	if err := n.page.Fill(ctx, sel.UsernameInput, n.opts.Username); err != nil {
		return fmt.Errorf("portal: fill username: %w", err)
	}
	if err := n.page.Fill(ctx, sel.PasswordInput, n.opts.Password); err != nil {
		return fmt.Errorf("portal: fill password: %w", err)
	}
	if err := n.page.Click(ctx, sel.LoginButton); err != nil {
		return fmt.Errorf("portal: submit login: %w", err)
	}
	if err := n.page.WaitNetworkIdle(ctx, n.opts.ActionTimeout); err != nil {
		return fmt.Errorf("portal: after login submit: %w", err)
	}
	if n.page.Visible(ctx, sel.UsernameInput, recheckTimeout) {
		return ErrLoginRejected
	}
	return nil
}

func (n *Navigator) locateSchedule(ctx context.Context) error {
	sel := n.opts.Selectors
	appLog.Info("locating schedule")

	found := false
	for _, label := range sel.ScheduleLinks {
		count, err := n.page.LinkCount(ctx, label)
		if err != nil {
			appLog.Warn("schedule link lookup failed", "label", label, "err", err)
			continue
		}
		if count == 0 {
			continue
		}
		if err := n.page.ClickLink(ctx, label); err != nil {
			return fmt.Errorf("portal: click %q: %w", label, err)
		}
		found = true
		break
	}

	if !found {
		title, err := n.page.Title(ctx)
		if err != nil || !strings.Contains(strings.ToLower(title), "schedule") {
			appLog.Warn("could not auto-navigate to schedule", "title", title)
			return ErrScheduleNotFound
		}
	}

	if err := n.page.WaitNetworkIdle(ctx, n.opts.ActionTimeout); err != nil {
		return fmt.Errorf("portal: after schedule navigation: %w", err)
	}
	if err := n.page.WaitVisible(ctx, sel.CalendarMarker, n.opts.CalendarWait); err != nil {
		return fmt.Errorf("%w: %w", ErrCalendarMissing, err)
	}
	return nil
}
