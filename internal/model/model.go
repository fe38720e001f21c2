package model

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Placeholders used when a shift's detail fragments cannot be resolved.
// A partially resolved shift is still worth syncing.
const (
	UnknownEvent    = "Unknown Event"
	UnknownLocation = "Unknown Location"
)

// wallClockLayout renders a time without zone information, so identifiers
// depend only on the wall clock shown by the portal.
const wallClockLayout = "2006-01-02T15:04:05"

// ShiftRecord is one shift extracted from the portal's schedule page.
// Records are never mutated after the parser creates them.
type ShiftRecord struct {
	Summary     string `json:"summary"`
	Location    string `json:"location"`
	Description string `json:"description"`

	// Start / End carry the wall clock shown by the portal, placed in the
	// configured calendar timezone. End is always after Start.
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`

	// DisplayTimeRange is the time range exactly as the portal rendered it,
	// e.g. "11:00 pm - 7:00 am".
	DisplayTimeRange string `json:"display_time_range"`
}

// ID returns the deterministic identifier used to deduplicate this shift
// in calendar sinks.
func (s ShiftRecord) ID() string {
	return EventID(s.Summary, s.Start, s.End)
}

// EventID derives a stable identifier from summary, start and end.
//
// The result is lowercase hex, which is a valid Google Calendar event id
// (base32hex alphabet, 5-1024 chars) and a valid iCalendar UID.
func EventID(summary string, start, end time.Time) string {
	sum := sha256.Sum256([]byte(summary + start.Format(wallClockLayout) + end.Format(wallClockLayout)))
	return hex.EncodeToString(sum[:])
}

// SyncStatus is the outcome of handing one shift to a calendar sink.
type SyncStatus string

const (
	StatusCreated   SyncStatus = "created"
	StatusDuplicate SyncStatus = "duplicate"
	StatusError     SyncStatus = "error"
)

// SyncResult records what a sink did with one shift.
type SyncResult struct {
	Shift   ShiftRecord `json:"shift"`
	ID      string      `json:"id"`
	Status  SyncStatus  `json:"status"`
	Message string      `json:"message,omitempty"`
}
