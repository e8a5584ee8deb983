// Package fake provides in-memory task source and calendar implementations
// for tests.
package fake

import (
	"context"
	"fmt"
	"sync"

	"github.com/harrisonrobin/taskcal/pkg/model"
	"github.com/harrisonrobin/taskcal/pkg/syncerr"
)

// Calendar is an in-memory calendar. Ids are handed out as evt-1, evt-2...
type Calendar struct {
	mu     sync.Mutex
	events map[string]model.Event
	seq    int

	CreateErr error
	GetErr    map[string]error
	DeleteErr map[string]error

	Creates []model.EventSpec
	Deletes []string
	Gets    []string
}

func NewCalendar() *Calendar {
	return &Calendar{
		events:    make(map[string]model.Event),
		GetErr:    make(map[string]error),
		DeleteErr: make(map[string]error),
	}
}

// Put stores ev as if it had been created earlier.
func (c *Calendar) Put(ev model.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events[ev.ID] = ev
}

func (c *Calendar) Event(id string) (model.Event, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ev, ok := c.events[id]
	return ev, ok
}

func (c *Calendar) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

// Mutations counts creates and deletes issued so far.
func (c *Calendar) Mutations() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.Creates) + len(c.Deletes)
}

func (c *Calendar) GetEvent(_ context.Context, eventID string) (*model.Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Gets = append(c.Gets, eventID)
	if err := c.GetErr[eventID]; err != nil {
		return nil, err
	}
	ev, ok := c.events[eventID]
	if !ok {
		return nil, nil
	}
	return &ev, nil
}

func (c *Calendar) CreateEvent(_ context.Context, spec model.EventSpec) (*model.Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Creates = append(c.Creates, spec)
	if c.CreateErr != nil {
		return nil, c.CreateErr
	}
	c.seq++
	ev := model.Event{
		ID:          fmt.Sprintf("evt-%d", c.seq),
		Title:       spec.Title,
		Description: spec.Description,
		URL:         fmt.Sprintf("https://calendar.example/evt-%d", c.seq),
		Start:       spec.Start,
		End:         spec.End,
		Undated:     spec.Undated,
	}
	c.events[ev.ID] = ev
	return &ev, nil
}

func (c *Calendar) DeleteEvent(_ context.Context, eventID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Deletes = append(c.Deletes, eventID)
	if err := c.DeleteErr[eventID]; err != nil {
		return err
	}
	delete(c.events, eventID)
	return nil
}

// Tasks is an in-memory task source.
type Tasks struct {
	mu    sync.Mutex
	tasks map[string]model.Task
	order []string

	SearchErr error
	UpdateErr map[string]error
	Updates   []string
}

func NewTasks(tasks ...model.Task) *Tasks {
	t := &Tasks{
		tasks:     make(map[string]model.Task),
		UpdateErr: make(map[string]error),
	}
	for _, task := range tasks {
		t.Put(task)
	}
	return t
}

func (t *Tasks) Put(task model.Task) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.tasks[task.ID]; !ok {
		t.order = append(t.order, task.ID)
	}
	t.tasks[task.ID] = task
}

func (t *Tasks) Task(id string) model.Task {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.tasks[id]
}

func (t *Tasks) Search(_ context.Context, keyword string) ([]model.Task, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.SearchErr != nil {
		return nil, t.SearchErr
	}
	var out []model.Task
	for _, id := range t.order {
		task := t.tasks[id]
		if task.Completed || !task.MatchesKeyword(keyword) {
			continue
		}
		out = append(out, task)
	}
	return out, nil
}

func (t *Tasks) UpdateNotes(_ context.Context, taskID, notes string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Updates = append(t.Updates, taskID)
	if err := t.UpdateErr[taskID]; err != nil {
		return err
	}
	task, ok := t.tasks[taskID]
	if !ok {
		return syncerr.UpstreamError("tasks.update", "task not found", fmt.Errorf("no task %s", taskID))
	}
	task.Notes = notes
	t.tasks[taskID] = task
	return nil
}
