// Package marker stores the calendar event id of a synced task inside the
// task's free-text notes as a [CAL_EVENT:<id>] token.
package marker

import (
	"fmt"
	"regexp"
)

var markerRegex = regexp.MustCompile(`\[CAL_EVENT:([^\]\s]+)\]`)

// Format renders the marker token for eventID.
func Format(eventID string) string {
	return fmt.Sprintf("[CAL_EVENT:%s]", eventID)
}

// Extract returns the event id of the first marker in notes.
func Extract(notes string) (string, bool) {
	matches := markerRegex.FindStringSubmatch(notes)
	if len(matches) > 1 {
		return matches[1], true
	}
	return "", false
}

// Insert appends a marker for eventID on its own line. Notes that already
// carry a marker get it replaced instead, so there is never more than one.
func Insert(notes, eventID string) string {
	if markerRegex.MatchString(notes) {
		return Replace(notes, eventID)
	}
	if notes == "" {
		return Format(eventID)
	}
	return notes + "\n" + Format(eventID)
}

// Replace swaps the first marker in notes for one pointing at eventID,
// leaving every other byte untouched. Without a marker it behaves like Insert.
func Replace(notes, eventID string) string {
	loc := markerRegex.FindStringIndex(notes)
	if loc == nil {
		return Insert(notes, eventID)
	}
	return notes[:loc[0]] + Format(eventID) + notes[loc[1]:]
}

// Strip removes the first marker together with the newline Insert put in
// front of it.
func Strip(notes string) string {
	loc := markerRegex.FindStringIndex(notes)
	if loc == nil {
		return notes
	}
	start := loc[0]
	if start > 0 && notes[start-1] == '\n' {
		start--
	}
	return notes[:start] + notes[loc[1]:]
}

// Store persists the task-to-event link. NotesStore keeps it in the notes
// field; another implementation could keep it elsewhere without the
// reconciler noticing.
type Store interface {
	Read(notes string) (eventID string, ok bool)
	Insert(notes, eventID string) string
	Replace(notes, eventID string) string
}

type NotesStore struct{}

func (NotesStore) Read(notes string) (string, bool) {
	return Extract(notes)
}

func (NotesStore) Insert(notes, eventID string) string {
	return Insert(notes, eventID)
}

func (NotesStore) Replace(notes, eventID string) string {
	return Replace(notes, eventID)
}
