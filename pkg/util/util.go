package util

import (
	"fmt"
	"strings"
	"time"

	"github.com/harrisonrobin/taskcal/pkg/marker"
	"github.com/harrisonrobin/taskcal/pkg/model"
)

const (
	// AnchorHour is the UTC hour a date-only due date is pinned to.
	AnchorHour = 9
	// EventDuration is the length of every event created from a task.
	EventDuration = time.Hour

	dateLayout = "2006-01-02"
)

// AnchorTime pins the calendar date of due to 09:00 UTC. Only the
// year/month/day of due as written are used; its zone is ignored.
func AnchorTime(due time.Time) time.Time {
	y, m, d := due.Date()
	return time.Date(y, m, d, AnchorHour, 0, 0, 0, time.UTC)
}

// SameDate reports whether a task's due date and an event's start denote
// the same calendar date. Both absent counts as equal, exactly one absent
// never does.
func SameDate(due, eventStart *time.Time) bool {
	if due == nil && eventStart == nil {
		return true
	}
	if due == nil || eventStart == nil {
		return false
	}
	ay, am, ad := AnchorTime(*due).Date()
	ey, em, ed := eventStart.UTC().Date()
	return ay == ey && am == em && ad == ed
}

// ParseDueDate parses a due date from the task source. Google Tasks sends
// RFC3339 timestamps whose time portion is always midnight UTC; plain
// YYYY-MM-DD is accepted too. An empty string means no due date.
func ParseDueDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		return &d, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return nil, fmt.Errorf("invalid due date %q: %w", s, err)
	}
	return &t, nil
}

// EventTimes derives start and end for a task's event: the anchored due
// date, or now when the task has no due date.
func EventTimes(due *time.Time, now time.Time) (time.Time, time.Time) {
	var start time.Time
	if due != nil {
		start = AnchorTime(*due)
	} else {
		start = now.UTC().Truncate(time.Second)
	}
	return start, start.Add(EventDuration)
}

// BuildEventSpec converts a task into the event that should represent it.
// The description carries a back reference to the task and its notes
// without the sync marker.
func BuildEventSpec(task model.Task, now time.Time, colorID string) model.EventSpec {
	start, end := EventTimes(task.Due, now)

	var desc strings.Builder
	desc.WriteString(fmt.Sprintf("Synced from task: %s\n", task.Title))
	desc.WriteString(fmt.Sprintf("Task ID: %s\n", task.ID))
	if notes := strings.TrimSpace(marker.Strip(task.Notes)); notes != "" {
		desc.WriteString("\nNotes:\n")
		desc.WriteString(notes)
		desc.WriteString("\n")
	}

	return model.EventSpec{
		TaskID:      task.ID,
		Title:       task.Title,
		Description: desc.String(),
		Start:       start,
		End:         end,
		Undated:     task.Due == nil,
		ColorID:     colorID,
	}
}
