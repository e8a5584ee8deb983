package model

import (
	"strings"
	"time"
)

// Task is a unit of work from the task source. Notes doubles as the only
// persistence for the sync marker.
type Task struct {
	ID        string
	Title     string
	Notes     string
	Due       *time.Time // date only; time-of-day is meaningless
	Completed bool
}

// MatchesKeyword reports whether the title contains keyword, ignoring case.
// An empty keyword matches every task.
func (t Task) MatchesKeyword(keyword string) bool {
	return strings.Contains(strings.ToLower(t.Title), strings.ToLower(keyword))
}

// PlaceholderPrefix marks locally synthesized events that were never
// stored in the calendar.
const PlaceholderPrefix = "placeholder_"

// Event is a calendar event as seen by the reconciler.
type Event struct {
	ID          string
	Title       string
	Description string
	URL         string
	Start       time.Time
	End         time.Time
	// Undated is set for events created from a task without a due date.
	Undated bool
}

// IsPlaceholder reports whether the event id carries the placeholder prefix.
func (e Event) IsPlaceholder() bool {
	return IsPlaceholderID(e.ID)
}

// IsPlaceholderID reports whether id carries the placeholder prefix.
func IsPlaceholderID(id string) bool {
	return strings.HasPrefix(id, PlaceholderPrefix)
}

// Date returns the date the event represents for comparison purposes:
// nil for undated events, the start time otherwise.
func (e Event) Date() *time.Time {
	if e.Undated || e.Start.IsZero() {
		return nil
	}
	start := e.Start
	return &start
}

// EventSpec describes an event to be created.
type EventSpec struct {
	TaskID      string
	Title       string
	Description string
	Start       time.Time
	End         time.Time
	Undated     bool
	ColorID     string
}
