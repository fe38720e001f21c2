package scraper

import (
	"fmt"
	"time"
)

// monthContext is the month currently displayed by the page. It turns the
// bare day numbers in the grid into dates and lives for one parse.
type monthContext struct {
	Year  int
	Month time.Month
	Loc   *time.Location
}

// parseMonthHeader parses a title such as "March 2025".
func parseMonthHeader(text string, loc *time.Location) (monthContext, error) {
	t, err := time.Parse("January 2006", text)
	if err != nil {
		return monthContext{}, err
	}
	return monthContext{Year: t.Year(), Month: t.Month(), Loc: loc}, nil
}

// First returns midnight on the first of the month.
func (m monthContext) First() time.Time {
	return time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, m.Loc)
}

// Date returns midnight on the given day, rejecting days the month does not
// have instead of letting time.Date roll them into the next month.
func (m monthContext) Date(day int) (time.Time, error) {
	if day < 1 || day > m.days() {
		return time.Time{}, fmt.Errorf("day %d out of range for %s %d", day, m.Month, m.Year)
	}
	return time.Date(m.Year, m.Month, day, 0, 0, 0, 0, m.Loc), nil
}

func (m monthContext) days() int {
	return time.Date(m.Year, m.Month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
