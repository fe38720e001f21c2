package scraper

import (
	"fmt"
	"strings"
	"time"
)

// resolveTimeRange parses text like "11:00 pm - 7:00 am" against date.
//
// The portal never renders a date rollover, so an end at or before the
// start belongs to the next day. Rollover is decided on the wall clock;
// the zone of date is applied only once the range is settled.
func resolveTimeRange(text string, date time.Time) (start, end time.Time, err error) {
	m := timeRangePattern.FindStringSubmatch(text)
	if m == nil {
		return time.Time{}, time.Time{}, fmt.Errorf("no time range in %q", text)
	}

	wallStart, err := clockOn(date, m[1])
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	wallEnd, err := clockOn(date, m[2])
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if !wallEnd.After(wallStart) {
		wallEnd = wallEnd.AddDate(0, 0, 1)
	}

	loc := date.Location()
	start = inZone(wallStart, loc)
	end = inZone(wallEnd, loc)
	if !end.After(start) {
		// Start fell into a skipped DST hour and was pushed forward.
		end = start.Add(wallEnd.Sub(wallStart))
	}
	return start, end, nil
}

// clockOn places a 12-hour clock reading such as "7:00 am" on date's
// calendar day, as a zone-free wall clock in UTC.
func clockOn(date time.Time, clock string) (time.Time, error) {
	norm := strings.ToUpper(strings.Join(strings.Fields(clock), ""))
	t, err := time.Parse("3:04PM", norm)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad clock time %q: %w", clock, err)
	}
	return time.Date(date.Year(), date.Month(), date.Day(), t.Hour(), t.Minute(), 0, 0, time.UTC), nil
}

func inZone(wall time.Time, loc *time.Location) time.Time {
	return time.Date(wall.Year(), wall.Month(), wall.Day(), wall.Hour(), wall.Minute(), 0, 0, loc)
}
