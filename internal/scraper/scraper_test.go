package scraper

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shiftsync/internal/model"
)

// cell renders one calendar_day_box. An empty id means no shift link.
func cell(classes, day, id, timeText string) string {
	var b strings.Builder
	fmt.Fprintf(&b, `<td class="calendar_day_box %s"><div class="day_number">%s</div>`, classes, day)
	if id != "" {
		fmt.Fprintf(&b, `<div class="day_details"><a href="javascript:showDetails('%s')">%s</a></div>`, id, timeText)
	}
	b.WriteString("</td>")
	return b.String()
}

func fragment(id, suffix, text string) string {
	return fmt.Sprintf(`<div id="%s%s">%s</div>`, id, suffix, text)
}

func page(title string, cells []string, fragments ...string) string {
	return fmt.Sprintf(`<html><head><title>My Schedule</title></head><body>
<span class="MonthTitle">%s</span>
<table><tr>%s</tr></table>
<div style="display:none">%s</div>
</body></html>`, title, strings.Join(cells, "\n"), strings.Join(fragments, "\n"))
}

func parse(t *testing.T, html string) (Result, error) {
	t.Helper()
	return New(time.UTC).Parse(strings.NewReader(html))
}

func TestParseSingleShift(t *testing.T) {
	html := page("March 2025",
		[]string{
			cell("", "4", "", ""),
			cell("", "5", "1001", "7:00 am - 3:00 pm"),
		},
		fragment("1001", "evt", "Front Desk"),
		fragment("1001", "fac", "Main Lobby"),
	)

	res, err := parse(t, html)
	require.NoError(t, err)
	require.Len(t, res.Shifts, 1)

	got := res.Shifts[0]
	assert.Equal(t, "Front Desk", got.Summary)
	assert.Equal(t, "Main Lobby", got.Location)
	assert.Equal(t, time.Date(2025, 3, 5, 7, 0, 0, 0, time.UTC), got.Start)
	assert.Equal(t, time.Date(2025, 3, 5, 15, 0, 0, 0, time.UTC), got.End)
	assert.Equal(t, "7:00 am - 3:00 pm", got.DisplayTimeRange)
	assert.Equal(t, "Shift: 7:00 am - 3:00 pm\n"+DefaultProvenance, got.Description)
	assert.Equal(t, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), res.Month)
	assert.Empty(t, res.Skipped)
}

func TestParseOvernightShift(t *testing.T) {
	html := page("March 2025",
		[]string{cell("", "31", "7", "11:00 pm - 12:30 am")},
		fragment("7", "evt", "Night Audit"),
		fragment("7", "fac", "Hotel"),
	)

	res, err := parse(t, html)
	require.NoError(t, err)
	require.Len(t, res.Shifts, 1)

	got := res.Shifts[0]
	assert.Equal(t, time.Date(2025, 3, 31, 23, 0, 0, 0, time.UTC), got.Start)
	assert.Equal(t, time.Date(2025, 4, 1, 0, 30, 0, 0, time.UTC), got.End)
	assert.True(t, got.End.After(got.Start))
}

func TestParseExcludesAdjacentMonthCells(t *testing.T) {
	html := page("March 2025",
		[]string{
			cell("other_month_box", "28", "900", "9:00 am - 5:00 pm"),
			cell("", "3", "901", "9:00 am - 5:00 pm"),
			cell("other_month_box", "1", "902", "9:00 am - 5:00 pm"),
		},
		fragment("900", "evt", "Leaked"),
		fragment("901", "evt", "Real"),
		fragment("902", "evt", "Leaked"),
	)

	res, err := parse(t, html)
	require.NoError(t, err)
	require.Len(t, res.Shifts, 1)
	assert.Equal(t, "Real", res.Shifts[0].Summary)
	assert.Equal(t, 3, res.Shifts[0].Start.Day())
}

func TestParseFallbackPlaceholders(t *testing.T) {
	html := page("March 2025",
		[]string{
			cell("", "1", "10", "8:00 am - 4:00 pm"),
			cell("", "2", "11", "8:00 am - 4:00 pm"),
			cell("", "3", "12", "8:00 am - 4:00 pm"),
		},
		fragment("11", "evt", "Concessions"),
		fragment("12", "fac", "Gate B"),
		fragment("12", "evt", "   "),
	)

	res, err := parse(t, html)
	require.NoError(t, err)
	require.Len(t, res.Shifts, 3)

	assert.Equal(t, model.UnknownEvent, res.Shifts[0].Summary)
	assert.Equal(t, model.UnknownLocation, res.Shifts[0].Location)
	assert.Equal(t, "Concessions", res.Shifts[1].Summary)
	assert.Equal(t, model.UnknownLocation, res.Shifts[1].Location)
	assert.Equal(t, model.UnknownEvent, res.Shifts[2].Summary)
	assert.Equal(t, "Gate B", res.Shifts[2].Location)
}

func TestParseFaultIsolation(t *testing.T) {
	html := page("March 2025",
		[]string{
			cell("", "1", "1", "7:00 am - 3:00 pm"),
			cell("", "x", "2", "7:00 am - 3:00 pm"),  // no day number
			cell("", "3", "3", "all day"),            // no time range
			cell("", "4", "4", "7:00 am - 3:00 pm"),
			cell("", "32", "5", "7:00 am - 3:00 pm"), // no such day
			cell("", "6", "6", "13:00 pm - 3:00 pm"), // bad clock
			`<td class="calendar_day_box">7<div class="day_details"><a href="#">7:00 am - 3:00 pm</a></div></td>`,
			cell("", "8", "8", "7:00 AM - 3:00 PM"),
			cell("", "", "", ""),
		},
	)

	res, err := parse(t, html)
	require.NoError(t, err)
	require.Len(t, res.Shifts, 3)

	days := []int{}
	for _, s := range res.Shifts {
		days = append(days, s.Start.Day())
	}
	assert.Equal(t, []int{1, 4, 8}, days)

	skipped := map[int]bool{}
	for _, s := range res.Skipped {
		skipped[s.Day] = true
	}
	assert.Equal(t, map[int]bool{3: true, 32: true, 6: true}, skipped)
}

func TestParseOnlyFirstLinkPerCell(t *testing.T) {
	html := page("March 2025",
		[]string{`<td class="calendar_day_box">9<div class="day_details">
			<a href="javascript:showDetails('1')">9:00 am - 1:00 pm</a>
			<a href="javascript:showDetails('2')">2:00 pm - 6:00 pm</a>
		</div></td>`},
		fragment("1", "evt", "Morning"),
		fragment("2", "evt", "Afternoon"),
	)

	res, err := parse(t, html)
	require.NoError(t, err)
	require.Len(t, res.Shifts, 1)
	assert.Equal(t, "Morning", res.Shifts[0].Summary)
}

func TestParseOnclickReference(t *testing.T) {
	html := page("February 2024",
		[]string{`<td class="calendar_day_box">29<div class="day_details"><a href="#" onclick="showDetails('55'); return false;">6:30pm-11:45pm</a></div></td>`},
		fragment("55", "evt", "Leap Gala"),
		fragment("55", "fac", "Ballroom"),
	)

	res, err := parse(t, html)
	require.NoError(t, err)
	require.Len(t, res.Shifts, 1)
	assert.Equal(t, time.Date(2024, 2, 29, 18, 30, 0, 0, time.UTC), res.Shifts[0].Start)
	assert.Equal(t, time.Date(2024, 2, 29, 23, 45, 0, 0, time.UTC), res.Shifts[0].End)
}

func TestParseMonthHeaderFailures(t *testing.T) {
	tests := []struct {
		name string
		html string
	}{
		{"malformed title", page("13th Month 2025", []string{cell("", "5", "1", "7:00 am - 3:00 pm")})},
		{"missing title", `<html><body><table><tr>` + cell("", "5", "1", "7:00 am - 3:00 pm") + `</tr></table></body></html>`},
		{"empty document", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := parse(t, tt.html)
			require.ErrorIs(t, err, ErrMonthHeader)
			assert.Empty(t, res.Shifts)
		})
	}
}

func TestParseUsesLocation(t *testing.T) {
	denver, err := time.LoadLocation("America/Denver")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	html := page("March 2025", []string{cell("", "5", "1", "7:00 am - 3:00 pm")})

	res, err := New(denver).Parse(strings.NewReader(html))
	require.NoError(t, err)
	require.Len(t, res.Shifts, 1)
	assert.Equal(t, denver, res.Shifts[0].Start.Location())
	assert.Equal(t, 7, res.Shifts[0].Start.Hour())
}
