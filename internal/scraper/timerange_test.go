package scraper

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveTimeRange(t *testing.T) {
	day := time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC)
	at := func(d, h, m int) time.Time { return time.Date(2025, 3, d, h, m, 0, 0, time.UTC) }

	tests := []struct {
		name      string
		text      string
		wantStart time.Time
		wantEnd   time.Time
	}{
		{"day shift", "7:00 am - 3:00 pm", at(5, 7, 0), at(5, 15, 0)},
		{"no spaces upper", "7:00AM-3:00PM", at(5, 7, 0), at(5, 15, 0)},
		{"padded hour", "07:15 am - 11:45 am", at(5, 7, 15), at(5, 11, 45)},
		{"noon and midnight", "12:00 pm - 12:00 am", at(5, 12, 0), at(6, 0, 0)},
		{"overnight", "11:00 pm - 12:30 am", at(5, 23, 0), at(6, 0, 30)},
		{"overnight into morning", "10:00 pm - 6:00 am", at(5, 22, 0), at(6, 6, 0)},
		{"equal times roll a full day", "8:00 am - 8:00 am", at(5, 8, 0), at(6, 8, 0)},
		{"surrounding text", "Shift 9:00 am - 5:00 pm (break)", at(5, 9, 0), at(5, 17, 0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end, err := resolveTimeRange(tt.text, day)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStart, start)
			assert.Equal(t, tt.wantEnd, end)
			assert.True(t, end.After(start))
		})
	}
}

func TestResolveTimeRangeAcrossDST(t *testing.T) {
	denver, err := time.LoadLocation("America/Denver")
	require.NoError(t, err)

	// 2025-03-09 02:00 does not exist in Denver.
	springForward := time.Date(2025, 3, 9, 0, 0, 0, 0, denver)
	start, end, err := resolveTimeRange("2:30 am - 3:00 am", springForward)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Minute, end.Sub(start))
	assert.Equal(t, 9, end.Day())

	eve := time.Date(2025, 3, 8, 0, 0, 0, 0, denver)
	start, end, err = resolveTimeRange("10:00 pm - 6:00 am", eve)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 8, 22, 0, 0, 0, denver), start)
	assert.Equal(t, time.Date(2025, 3, 9, 6, 0, 0, 0, denver), end)
	assert.Equal(t, 7*time.Hour, end.Sub(start))
}

func TestResolveTimeRangeErrors(t *testing.T) {
	day := time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC)
	for _, text := range []string{"", "OFF", "7:00 - 3:00", "7 am - 3 pm", "13:00 pm - 2:00 pm"} {
		t.Run(text, func(t *testing.T) {
			_, _, err := resolveTimeRange(text, day)
			assert.Error(t, err)
		})
	}
}

func TestMonthContext(t *testing.T) {
	m, err := parseMonthHeader("February 2024", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, 2024, m.Year)
	assert.Equal(t, time.February, m.Month)

	d, err := m.Date(29)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), d)

	_, err = m.Date(30)
	assert.Error(t, err)
	_, err = m.Date(0)
	assert.Error(t, err)

	_, err = parseMonthHeader("Feb 2024", time.UTC)
	assert.Error(t, err)
	_, err = parseMonthHeader("13th Month 2025", time.UTC)
	assert.Error(t, err)
}
