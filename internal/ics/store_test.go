package ics

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shiftsync/internal/model"
)

func shift(day int, summary string) model.ShiftRecord {
	return model.ShiftRecord{
		Summary:     summary,
		Location:    "Main Lobby",
		Description: "Shift: 7:00 am - 3:00 pm",
		Start:       time.Date(2025, 3, day, 7, 0, 0, 0, time.UTC),
		End:         time.Date(2025, 3, day, 15, 0, 0, 0, time.UTC),
	}
}

func TestStoreCreatesAndPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shifts.ics")

	s, err := Open(path, 60)
	require.NoError(t, err)
	a, b := shift(5, "Front Desk"), shift(6, "Box Office")

	assert.Equal(t, model.StatusCreated, s.Sync(context.Background(), a, a.ID()).Status)
	assert.Equal(t, model.StatusCreated, s.Sync(context.Background(), b, b.ID()).Status)
	assert.Equal(t, model.StatusDuplicate, s.Sync(context.Background(), a, a.ID()).Status)
	require.NoError(t, s.Flush())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	cal, err := ical.ParseCalendar(bytes.NewReader(data))
	require.NoError(t, err)
	require.Len(t, cal.Events(), 2)

	ev := cal.Events()[0]
	assert.Equal(t, a.ID(), ev.Id())
	assert.Equal(t, "Front Desk", ev.GetProperty(ical.ComponentPropertySummary).Value)
	start, err := ev.GetStartAt()
	require.NoError(t, err)
	assert.True(t, a.Start.Equal(start))
	assert.Len(t, ev.Alarms(), 1)
}

func TestStoreReopenDetectsDuplicates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shifts.ics")
	a := shift(5, "Front Desk")

	s, err := Open(path, 0)
	require.NoError(t, err)
	s.Sync(context.Background(), a, a.ID())
	require.NoError(t, s.Flush())

	s2, err := Open(path, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, s2.Len())
	assert.Equal(t, model.StatusDuplicate, s2.Sync(context.Background(), a, a.ID()).Status)

	c := shift(7, "Front Desk")
	assert.Equal(t, model.StatusCreated, s2.Sync(context.Background(), c, c.ID()).Status)
	assert.Equal(t, 2, s2.Len())
}

func TestStoreFlushWithoutChangesWritesNothing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shifts.ics")
	s, err := Open(path, 0)
	require.NoError(t, err)
	require.NoError(t, s.Flush())

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestOpenRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shifts.ics")
	require.NoError(t, os.WriteFile(path, []byte("SUMMARY:not a calendar\r\n"), 0o600))

	_, err := Open(path, 0)
	assert.Error(t, err)
}
