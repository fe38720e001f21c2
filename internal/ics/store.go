// Package ics keeps synced shifts in a local iCalendar file, for people
// who subscribe to a file instead of using a calendar service.
package ics

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"sync"
	"time"

	ical "github.com/arran4/golang-ical"

	"shiftsync/internal/config"
	appLog "shiftsync/internal/log"
	"shiftsync/internal/model"
)

const productID = "-//shiftsync//portal shifts//EN"

// Store is an .ics file treated as a calendar sink. Event UIDs are the
// deterministic shift ids, so an id already in the file is a duplicate.
type Store struct {
	path     string
	reminder int

	mu    sync.Mutex
	cal   *ical.Calendar
	uids  map[string]struct{}
	dirty bool
}

// Open loads path if it exists, or starts an empty calendar. Events added
// through Sync are written out by Flush. reminderMinutes > 0 adds a display
// alarm that long before each shift.
func Open(path string, reminderMinutes int) (*Store, error) {
	if path == "" {
		return nil, errors.New("ics: path is empty")
	}
	s := &Store{
		path:     path,
		reminder: reminderMinutes,
		uids:     make(map[string]struct{}),
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		s.cal = newCalendar()
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("ics: reading %s: %w", path, err)
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(data))
	if err != nil {
		appLog.Error("ics parse failed", err, "path", path)
		return nil, fmt.Errorf("ics: parsing %s: %w", path, err)
	}
	for _, ev := range cal.Events() {
		if uid := ev.Id(); uid != "" {
			s.uids[uid] = struct{}{}
		}
	}
	s.cal = cal
	appLog.Info("ics store loaded", "path", path, "event_count", len(s.uids))
	return s, nil
}

func newCalendar() *ical.Calendar {
	cal := ical.NewCalendar()
	cal.SetProductId(productID)
	cal.SetMethod(ical.MethodPublish)
	return cal
}

// Sync adds shift as a VEVENT unless id is already present.
func (s *Store) Sync(_ context.Context, shift model.ShiftRecord, id string) model.SyncResult {
	res := model.SyncResult{Shift: shift, ID: id}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.uids[id]; ok {
		res.Status = model.StatusDuplicate
		return res
	}

	ev := s.cal.AddEvent(id)
	ev.SetDtStampTime(time.Now().UTC())
	ev.SetSummary(shift.Summary)
	ev.SetLocation(shift.Location)
	ev.SetDescription(shift.Description)
	ev.SetStartAt(shift.Start)
	ev.SetEndAt(shift.End)
	if s.reminder > 0 {
		alarm := ev.AddAlarm()
		alarm.SetAction(ical.ActionDisplay)
		alarm.SetTrigger("-PT" + strconv.Itoa(s.reminder) + "M")
	}

	s.uids[id] = struct{}{}
	s.dirty = true
	res.Status = model.StatusCreated
	return res
}

// Len returns the number of events in the calendar.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.uids)
}

// Flush writes the calendar to disk if anything was added.
func (s *Store) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.dirty {
		return nil
	}
	if err := config.WriteFileAtomic(s.path, []byte(s.cal.Serialize())); err != nil {
		return fmt.Errorf("ics: writing %s: %w", s.path, err)
	}
	s.dirty = false
	appLog.Info("ics store written", "path", s.path, "event_count", len(s.uids))
	return nil
}
