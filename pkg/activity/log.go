// Package activity keeps a bounded, in-memory record of what the sync
// engine did, newest entries last. Oldest entries are evicted first.
package activity

import (
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

const DefaultCapacity = 200

type Level string

const (
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

type Entry struct {
	ID      string    `json:"id"`
	Time    time.Time `json:"time"`
	Level   Level     `json:"level"`
	Message string    `json:"message"`
	TaskID  string    `json:"taskId,omitempty"`
	Action  string    `json:"action,omitempty"`
}

type Log struct {
	mu       sync.Mutex
	entries  []Entry
	next     int // ring write position once full
	full     bool
	capacity int
	now      func() time.Time
}

func New(capacity int) *Log {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Log{
		entries:  make([]Entry, 0, capacity),
		capacity: capacity,
		now:      time.Now,
	}
}

// Add records e, filling in ID and Time when unset.
func (l *Log) Add(e Entry) Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	if e.ID == "" {
		e.ID = ulid.Make().String()
	}
	if e.Time.IsZero() {
		e.Time = l.now()
	}
	if e.Level == "" {
		e.Level = LevelInfo
	}

	if !l.full {
		l.entries = append(l.entries, e)
		if len(l.entries) == l.capacity {
			l.full = true
		}
		return e
	}
	l.entries[l.next] = e
	l.next = (l.next + 1) % l.capacity
	return e
}

func (l *Log) Info(msg string) Entry {
	return l.Add(Entry{Level: LevelInfo, Message: msg})
}

func (l *Log) Warn(msg string) Entry {
	return l.Add(Entry{Level: LevelWarn, Message: msg})
}

func (l *Log) Error(msg string) Entry {
	return l.Add(Entry{Level: LevelError, Message: msg})
}

// List returns up to limit of the most recent entries in chronological
// order. A limit <= 0 returns everything retained.
func (l *Log) List(limit int) []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := len(l.entries)
	ordered := make([]Entry, 0, n)
	ordered = append(ordered, l.entries[l.next:]...)
	ordered = append(ordered, l.entries[:l.next]...)

	if limit > 0 && limit < n {
		ordered = ordered[n-limit:]
	}
	return ordered
}

func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func (l *Log) Capacity() int {
	return l.capacity
}

func (l *Log) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = l.entries[:0]
	l.next = 0
	l.full = false
}
