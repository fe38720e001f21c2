// Package gcal syncs shifts into a Google Calendar.
package gcal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"golang.org/x/time/rate"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	appLog "shiftsync/internal/log"
	"shiftsync/internal/model"
)

// DefaultRequestsPerSecond keeps a month of inserts well under the
// Calendar API per-user quota.
const DefaultRequestsPerSecond = 5

// naiveLayout sends wall-clock times; the event's TimeZone gives them meaning.
const naiveLayout = "2006-01-02T15:04:05"

// Options configures the Google Calendar client.
type Options struct {
	CalendarID      string
	Timezone        string
	ColorID         string
	ReminderMinutes int

	// RequestsPerSecond paces event inserts. Zero means DefaultRequestsPerSecond.
	RequestsPerSecond float64

	CredentialsFile string
	TokenFile       string

	// Out receives the authorization URL when no usable token exists.
	// Nil means os.Stdout.
	Out io.Writer
}

// Client inserts shift events. It never retries; a failed insert is
// reported in the SyncResult and the caller decides what to do.
type Client struct {
	svc     *calendar.Service
	opts    Options
	limiter *rate.Limiter
}

// New authorizes against Google (see authorize) and returns a Client.
func New(ctx context.Context, opts Options) (*Client, error) {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	httpClient, err := authorize(ctx, opts)
	if err != nil {
		return nil, err
	}
	svc, err := calendar.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("gcal: creating service: %w", err)
	}
	appLog.Info("google calendar service authenticated", "calendar_id", opts.CalendarID)
	return NewWithService(svc, opts), nil
}

// NewWithService wraps an existing calendar service.
func NewWithService(svc *calendar.Service, opts Options) *Client {
	if opts.CalendarID == "" {
		opts.CalendarID = "primary"
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = DefaultRequestsPerSecond
	}
	return &Client{
		svc:     svc,
		opts:    opts,
		limiter: rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1),
	}
}

// Sync inserts shift under id. An existing event with the same id is
// reported as a duplicate, which is how repeated runs stay idempotent.
func (c *Client) Sync(ctx context.Context, shift model.ShiftRecord, id string) model.SyncResult {
	res := model.SyncResult{Shift: shift, ID: id}

	if err := c.limiter.Wait(ctx); err != nil {
		res.Status = model.StatusError
		res.Message = err.Error()
		return res
	}

	_, err := c.svc.Events.Insert(c.opts.CalendarID, c.event(shift, id)).Context(ctx).Do()
	if err == nil {
		appLog.Info("added event", "summary", shift.Summary, "start", shift.Start.Format(naiveLayout))
		res.Status = model.StatusCreated
		return res
	}

	if isDuplicate(err) {
		res.Status = model.StatusDuplicate
		return res
	}

	appLog.Error("failed to add event", err, "summary", shift.Summary, "id", id)
	res.Status = model.StatusError
	res.Message = err.Error()
	return res
}

func (c *Client) event(shift model.ShiftRecord, id string) *calendar.Event {
	ev := &calendar.Event{
		Id:          id,
		Summary:     shift.Summary,
		Location:    shift.Location,
		Description: shift.Description,
		ColorId:     c.opts.ColorID,
		Start: &calendar.EventDateTime{
			DateTime: shift.Start.Format(naiveLayout),
			TimeZone: c.opts.Timezone,
		},
		End: &calendar.EventDateTime{
			DateTime: shift.End.Format(naiveLayout),
			TimeZone: c.opts.Timezone,
		},
		Reminders: &calendar.EventReminders{
			UseDefault: false,
			// UseDefault=false would be dropped as a zero value otherwise.
			ForceSendFields: []string{"UseDefault"},
		},
	}
	if c.opts.ReminderMinutes > 0 {
		ev.Reminders.Overrides = []*calendar.EventReminder{
			{Method: "popup", Minutes: int64(c.opts.ReminderMinutes)},
		}
	}
	return ev
}

func isDuplicate(err error) bool {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code == http.StatusConflict
	}
	return false
}
