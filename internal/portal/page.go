// Package portal drives a browser session to the portal's schedule view.
//
// Login is a short sequence of optional gates. Whether a gate applies is
// decided by looking at the page (is the venue field there? the login
// form?) rather than by remembering what happened in earlier runs, so a
// persisted browser profile that is already logged in simply skips ahead.
package portal

import (
	"context"
	"time"

	"shiftsync/internal/config"
)

// Page is the subset of browser behaviour the navigator needs. *Browser
// implements it with chromedp; tests use an in-memory fake.
type Page interface {
	Navigate(ctx context.Context, url string) error
	Reload(ctx context.Context) error

	// Visible reports whether sel becomes visible within timeout.
	Visible(ctx context.Context, sel string, timeout time.Duration) bool
	// WaitVisible is Visible that reports why it failed.
	WaitVisible(ctx context.Context, sel string, timeout time.Duration) error

	Fill(ctx context.Context, sel, value string) error
	Click(ctx context.Context, sel string) error

	// LinkCount returns how many links contain text, without waiting.
	LinkCount(ctx context.Context, text string) (int, error)
	ClickLink(ctx context.Context, text string) error

	// WaitNetworkIdle blocks until no requests have been in flight for a
	// short quiet window, or timeout elapses. After Click or ClickLink it
	// first waits for the network activity the click started.
	WaitNetworkIdle(ctx context.Context, timeout time.Duration) error

	Title(ctx context.Context) (string, error)
	HTML(ctx context.Context) (string, error)
}

// State is where a session stands on the way to the schedule view.
type State int

const (
	// StateNoVenue: the session is not yet scoped to a venue.
	StateNoVenue State = iota
	// StateVenueSet: venue accepted, credentials not yet.
	StateVenueSet
	// StateAuthenticated: logged in, somewhere other than the schedule.
	StateAuthenticated
	// StateOnSchedule: the calendar grid is rendered.
	StateOnSchedule
)

func (s State) String() string {
	switch s {
	case StateNoVenue:
		return "no-venue"
	case StateVenueSet:
		return "venue-set"
	case StateAuthenticated:
		return "authenticated"
	case StateOnSchedule:
		return "on-schedule"
	default:
		return "unknown"
	}
}

// DetectState infers the session state from what the page currently shows.
// Each probe waits at most timeout, so an absent element costs that long.
func DetectState(ctx context.Context, p Page, sel config.SelectorsConfig, timeout time.Duration) State {
	switch {
	case p.Visible(ctx, sel.CalendarMarker, timeout):
		return StateOnSchedule
	case p.Visible(ctx, sel.UsernameInput, timeout):
		return StateVenueSet
	case p.Visible(ctx, sel.VenueInput, timeout):
		return StateNoVenue
	default:
		return StateAuthenticated
	}
}
