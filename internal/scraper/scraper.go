// Package scraper turns the rendered HTML of the portal's monthly schedule
// view into shift records.
//
// The page contract, as observed on the portal:
//
//	<span class="MonthTitle">March 2025</span>
//	<td class="calendar_day_box [other_month_box]">
//	  5
//	  <div class="day_details">
//	    <a href="javascript:showDetails('1001')">7:00 am - 3:00 pm</a>
//	  </div>
//	</td>
//	...
//	<div id="1001evt">Front Desk</div>
//	<div id="1001fac">Main Lobby</div>
//
// Cells marked other_month_box are layout padding for the adjacent months
// and never produce shifts.
package scraper

import (
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	appLog "shiftsync/internal/log"
	"shiftsync/internal/model"
)

// Selectors and class names used by the portal's calendar grid.
const (
	monthTitleSelector = "span.MonthTitle"
	dayCellSelector    = "td.calendar_day_box"
	otherMonthClass    = "other_month_box"
	detailsSelector    = "div.day_details"
)

// DefaultProvenance is appended to every shift description.
const DefaultProvenance = "Scraped from ESS."

// ErrMonthHeader is returned when the page has no parseable month title.
var ErrMonthHeader = errors.New("scraper: month header not found or unparseable")

var (
	leadingDayPattern = regexp.MustCompile(`^(\d{1,2})`)
	// showDetails('1001') or any call-like reference carrying a numeric id.
	eventIDPattern   = regexp.MustCompile(`\(\s*['"]?(\d+)['"]?\s*\)`)
	timeRangePattern = regexp.MustCompile(`(?i)(\d{1,2}:\d{2}\s*[ap]m)\s*-\s*(\d{1,2}:\d{2}\s*[ap]m)`)
)

// DayError describes a day cell whose shift could not be extracted.
type DayError struct {
	Day    int
	Reason string
}

func (e DayError) Error() string {
	return fmt.Sprintf("day %d: %s", e.Day, e.Reason)
}

// Result is the outcome of parsing one month view.
type Result struct {
	// Month is the first day of the displayed month.
	Month   time.Time
	Shifts  []model.ShiftRecord
	Skipped []DayError
}

// Parser extracts shifts from schedule pages.
type Parser struct {
	// Location is the zone the portal's wall-clock times are placed in.
	// Nil means time.Local.
	Location *time.Location

	// Provenance is the second line of every description. Empty means
	// DefaultProvenance.
	Provenance string
}

// New returns a Parser placing shift times in loc.
func New(loc *time.Location) *Parser {
	return &Parser{Location: loc}
}

// Parse reads one rendered schedule page.
//
// A missing or malformed month header yields an empty Result and an error
// wrapping ErrMonthHeader. Problems inside individual day cells never fail
// the page: the cell is logged, recorded in Result.Skipped, and parsing
// continues with the next cell.
func (p *Parser) Parse(r io.Reader) (Result, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return Result{}, fmt.Errorf("scraper: parsing HTML: %w", err)
	}
	return p.ParseDocument(doc)
}

// ParseDocument is Parse for an already loaded document.
func (p *Parser) ParseDocument(doc *goquery.Document) (Result, error) {
	title := doc.Find(monthTitleSelector).First()
	if title.Length() == 0 {
		appLog.Error("month header missing", ErrMonthHeader)
		return Result{}, ErrMonthHeader
	}

	raw := cleanText(title.Text())
	month, err := parseMonthHeader(raw, p.location())
	if err != nil {
		appLog.Error("failed to parse month header", err, "text", raw)
		return Result{}, fmt.Errorf("%w: %q", ErrMonthHeader, raw)
	}

	details := buildDetailIndex(doc)

	res := Result{Month: month.First()}
	doc.Find(dayCellSelector).Each(func(_ int, cell *goquery.Selection) {
		if cell.HasClass(otherMonthClass) {
			return
		}
		shift, ok, derr := p.parseCell(cell, month, details)
		if derr != nil {
			appLog.Warn("skipping day cell", "day", derr.Day, "reason", derr.Reason)
			res.Skipped = append(res.Skipped, *derr)
			return
		}
		if ok {
			res.Shifts = append(res.Shifts, shift)
		}
	})

	appLog.Info("calendar parsed",
		"month", month.First().Format("January 2006"),
		"shifts", len(res.Shifts),
		"skipped", len(res.Skipped),
	)
	return res, nil
}

// parseCell extracts the shift from one day cell. ok is false for cells that
// legitimately carry no shift; derr is set when a shift was present but
// could not be resolved.
func (p *Parser) parseCell(cell *goquery.Selection, month monthContext, details detailIndex) (shift model.ShiftRecord, ok bool, derr *DayError) {
	day := 0
	defer func() {
		if r := recover(); r != nil {
			ok = false
			derr = &DayError{Day: day, Reason: fmt.Sprintf("panic: %v", r)}
		}
	}()

	// The day number is the cell's own text, not the shift link's.
	bare := cell.Clone()
	bare.Find(detailsSelector).Remove()
	m := leadingDayPattern.FindStringSubmatch(cleanText(bare.Text()))
	if m == nil {
		return shift, false, nil
	}
	day, _ = strconv.Atoi(m[1])

	links := cell.Find(detailsSelector).First().Find("a")
	if links.Length() == 0 {
		return shift, false, nil
	}
	if links.Length() > 1 {
		appLog.Debug("day cell has more than one shift link; using the first", "day", day, "links", links.Length())
	}
	link := links.First()

	id := eventID(link)
	if id == "" {
		return shift, false, nil
	}

	displayed := cleanText(link.Text())
	date, err := month.Date(day)
	if err != nil {
		return shift, false, &DayError{Day: day, Reason: err.Error()}
	}
	start, end, err := resolveTimeRange(displayed, date)
	if err != nil {
		return shift, false, &DayError{Day: day, Reason: err.Error()}
	}

	d := details.lookup(id)
	return model.ShiftRecord{
		Summary:          d.Name,
		Location:         d.Location,
		Description:      fmt.Sprintf("Shift: %s\n%s", displayed, p.provenance()),
		Start:            start,
		End:              end,
		DisplayTimeRange: displayed,
	}, true, nil
}

func (p *Parser) location() *time.Location {
	if p.Location == nil {
		return time.Local
	}
	return p.Location
}

func (p *Parser) provenance() string {
	if p.Provenance == "" {
		return DefaultProvenance
	}
	return p.Provenance
}

// eventID pulls the numeric id out of the link's action reference.
func eventID(link *goquery.Selection) string {
	for _, attr := range []string{"href", "onclick"} {
		v, ok := link.Attr(attr)
		if !ok {
			continue
		}
		if m := eventIDPattern.FindStringSubmatch(v); m != nil {
			return m[1]
		}
	}
	return ""
}

// cleanText trims and collapses internal whitespace.
func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
