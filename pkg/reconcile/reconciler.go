// Package reconcile decides, for a single task, whether its calendar event
// must be created, recreated, replaced, or left alone, and carries that
// decision out.
package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/harrisonrobin/taskcal/pkg/marker"
	"github.com/harrisonrobin/taskcal/pkg/model"
	"github.com/harrisonrobin/taskcal/pkg/syncerr"
	"github.com/harrisonrobin/taskcal/pkg/util"
)

// Calendar is the subset of the calendar adapter the reconciler drives.
type Calendar interface {
	// GetEvent returns nil, nil when the event does not exist.
	GetEvent(ctx context.Context, eventID string) (*model.Event, error)
	CreateEvent(ctx context.Context, spec model.EventSpec) (*model.Event, error)
	// DeleteEvent succeeds for events that are already gone.
	DeleteEvent(ctx context.Context, eventID string) error
}

// NotesWriter persists rewritten task notes.
type NotesWriter interface {
	UpdateNotes(ctx context.Context, taskID, notes string) error
}

// ColorPicker chooses the event color for a keyword.
type ColorPicker interface {
	ColorID(keyword string) string
}

type Reconciler struct {
	calendar Calendar
	notes    NotesWriter
	store    marker.Store
	colors   ColorPicker
	fallback bool
	now      func() time.Time
	log      zerolog.Logger
}

type Option func(*Reconciler)

// WithFallback substitutes a placeholder event when the calendar rejects a
// create with a config or upstream error.
func WithFallback(enabled bool) Option {
	return func(r *Reconciler) { r.fallback = enabled }
}

func WithStore(s marker.Store) Option {
	return func(r *Reconciler) { r.store = s }
}

func WithColors(c ColorPicker) Option {
	return func(r *Reconciler) { r.colors = c }
}

func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) { r.now = now }
}

func WithLogger(l zerolog.Logger) Option {
	return func(r *Reconciler) { r.log = l }
}

func New(cal Calendar, notes NotesWriter, opts ...Option) *Reconciler {
	r := &Reconciler{
		calendar: cal,
		notes:    notes,
		store:    marker.NotesStore{},
		now:      time.Now,
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Reconcile brings the calendar representation of task in line with its
// current due date. The calendar is always mutated before the task notes,
// so an interruption leaves an orphaned event rather than a marker that
// points nowhere.
func (r *Reconciler) Reconcile(ctx context.Context, task model.Task, keyword string) (Result, error) {
	log := r.log.With().Str("task_id", task.ID).Logger()

	eventID, ok := r.store.Read(task.Notes)
	if !ok {
		log.Debug().Msg("no marker, creating event")
		return r.create(ctx, task, keyword, ActionCreated, false)
	}
	if model.IsPlaceholderID(eventID) {
		log.Debug().Str("event_id", eventID).Msg("marker points at placeholder, creating event")
		return r.create(ctx, task, keyword, ActionCreated, true)
	}

	existing, err := r.calendar.GetEvent(ctx, eventID)
	if err != nil {
		return Result{}, fmt.Errorf("look up event %s: %w", eventID, err)
	}
	if existing == nil {
		log.Debug().Str("event_id", eventID).Msg("event gone, recreating")
		return r.create(ctx, task, keyword, ActionRecreated, true)
	}

	if !util.SameDate(task.Due, existing.Date()) {
		log.Debug().Str("event_id", eventID).Msg("due date changed, replacing event")
		if err := r.calendar.DeleteEvent(ctx, existing.ID); err != nil {
			return Result{}, fmt.Errorf("delete outdated event %s: %w", existing.ID, err)
		}
		res, err := r.create(ctx, task, keyword, ActionUpdated, true)
		if err != nil {
			return Result{}, err
		}
		res.Note = joinNote(fmt.Sprintf("replaced event %s", existing.ID), res.Note)
		return res, nil
	}

	log.Debug().Str("event_id", eventID).Msg("event up to date")
	return eventResult(ActionSkipped, task, existing), nil
}

func (r *Reconciler) create(ctx context.Context, task model.Task, keyword string, action Action, replace bool) (Result, error) {
	colorID := ""
	if r.colors != nil {
		colorID = r.colors.ColorID(keyword)
	}
	spec := util.BuildEventSpec(task, r.now(), colorID)

	ev, err := r.calendar.CreateEvent(ctx, spec)
	if err != nil {
		if !r.fallback || !(syncerr.IsConfig(err) || syncerr.IsUpstream(err)) {
			return Result{}, fmt.Errorf("create event: %w", err)
		}
		r.log.Warn().Err(err).Str("task_id", task.ID).Msg("calendar unavailable, using placeholder event")
		res := eventResult(action, task, placeholderEvent(spec))
		res.Placeholder = true
		res.Note = "placeholder event, calendar unavailable: " + syncerr.Message(err)
		return res, nil
	}

	res := eventResult(action, task, ev)

	var notes string
	if replace {
		notes = r.store.Replace(task.Notes, ev.ID)
	} else {
		notes = r.store.Insert(task.Notes, ev.ID)
	}
	if err := r.notes.UpdateNotes(ctx, task.ID, notes); err != nil {
		r.log.Warn().Err(err).Str("task_id", task.ID).Str("event_id", ev.ID).Msg("event created but marker write failed")
		res.Note = "event created but marker write failed: " + syncerr.Message(err)
		return res, nil
	}
	res.MarkerWritten = true
	return res, nil
}

func placeholderEvent(spec model.EventSpec) *model.Event {
	return &model.Event{
		ID:          model.PlaceholderPrefix + ulid.Make().String(),
		Title:       spec.Title,
		Description: spec.Description,
		Start:       spec.Start,
		End:         spec.End,
		Undated:     spec.Undated,
	}
}

func joinNote(a, b string) string {
	if b == "" {
		return a
	}
	return a + "; " + b
}
