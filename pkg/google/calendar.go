package google

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/api/calendar/v3"

	"github.com/harrisonrobin/taskcal/pkg/model"
	"github.com/harrisonrobin/taskcal/pkg/syncerr"
)

const (
	// PropTaskID back-references the task an event was created for.
	PropTaskID = "taskcal_task_id"
	// PropUndated is "true" on events created from a task without a due date.
	PropUndated = "taskcal_undated"

	statusCancelled = "cancelled"
)

// CalendarClient is a Google Calendar API client.
type CalendarClient struct {
	srv        *calendar.Service
	calendarID string
	timeout    time.Duration
	log        zerolog.Logger
}

// NewCalendarClient creates a new Google Calendar client. A zero timeout
// leaves calls bounded only by the caller's context.
func NewCalendarClient(srv *calendar.Service, calendarID string, timeout time.Duration, log zerolog.Logger) *CalendarClient {
	return &CalendarClient{srv: srv, calendarID: calendarID, timeout: timeout, log: log}
}

func (c *CalendarClient) CalendarID() string {
	return c.calendarID
}

func (c *CalendarClient) callCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

func (c *CalendarClient) ready(op string) error {
	if c == nil || c.srv == nil {
		return syncerr.ConfigError(op, "calendar service not configured", nil)
	}
	return nil
}

// GetEvent fetches an event by id. Missing and cancelled events yield
// nil, nil.
func (c *CalendarClient) GetEvent(ctx context.Context, eventID string) (*model.Event, error) {
	const op = "calendar.get"
	if err := c.ready(op); err != nil {
		return nil, err
	}
	ctx, cancel := c.callCtx(ctx)
	defer cancel()

	ev, err := c.srv.Events.Get(c.calendarID, eventID).Context(ctx).Do()
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, Classify(op, err)
	}
	if ev.Status == statusCancelled {
		return nil, nil
	}
	return toModel(ev)
}

// CreateEvent inserts a new event described by spec.
func (c *CalendarClient) CreateEvent(ctx context.Context, spec model.EventSpec) (*model.Event, error) {
	const op = "calendar.create"
	if err := c.ready(op); err != nil {
		return nil, err
	}
	ctx, cancel := c.callCtx(ctx)
	defer cancel()

	created, err := c.srv.Events.Insert(c.calendarID, toAPI(spec)).Context(ctx).Do()
	if err != nil {
		return nil, Classify(op, err)
	}
	c.log.Debug().Str("event_id", created.Id).Str("task_id", spec.TaskID).Msg("event created")
	return toModel(created)
}

// DeleteEvent deletes an event from the calendar. Deleting an event that
// is already gone succeeds.
func (c *CalendarClient) DeleteEvent(ctx context.Context, eventID string) error {
	const op = "calendar.delete"
	if err := c.ready(op); err != nil {
		return err
	}
	ctx, cancel := c.callCtx(ctx)
	defer cancel()

	if err := c.srv.Events.Delete(c.calendarID, eventID).Context(ctx).Do(); err != nil {
		if IsNotFound(err) {
			return nil
		}
		return Classify(op, err)
	}
	c.log.Debug().Str("event_id", eventID).Msg("event deleted")
	return nil
}

func toAPI(spec model.EventSpec) *calendar.Event {
	private := map[string]string{PropTaskID: spec.TaskID}
	if spec.Undated {
		private[PropUndated] = "true"
	}
	return &calendar.Event{
		Summary:     spec.Title,
		Description: spec.Description,
		ColorId:     spec.ColorID,
		Start: &calendar.EventDateTime{
			DateTime: spec.Start.UTC().Format(time.RFC3339),
			TimeZone: "UTC",
		},
		End: &calendar.EventDateTime{
			DateTime: spec.End.UTC().Format(time.RFC3339),
			TimeZone: "UTC",
		},
		ExtendedProperties: &calendar.EventExtendedProperties{Private: private},
	}
}

func toModel(ev *calendar.Event) (*model.Event, error) {
	start, err := parseEventTime(ev.Start)
	if err != nil {
		return nil, fmt.Errorf("event %s start: %w", ev.Id, err)
	}
	end, err := parseEventTime(ev.End)
	if err != nil {
		return nil, fmt.Errorf("event %s end: %w", ev.Id, err)
	}
	out := &model.Event{
		ID:          ev.Id,
		Title:       ev.Summary,
		Description: ev.Description,
		URL:         ev.HtmlLink,
		Start:       start,
		End:         end,
	}
	if ev.ExtendedProperties != nil {
		out.Undated = ev.ExtendedProperties.Private[PropUndated] == "true"
	}
	return out, nil
}

// parseEventTime reads a timed or all-day event boundary.
func parseEventTime(dt *calendar.EventDateTime) (time.Time, error) {
	if dt == nil {
		return time.Time{}, nil
	}
	if dt.DateTime != "" {
		return time.Parse(time.RFC3339, dt.DateTime)
	}
	if dt.Date != "" {
		return time.Parse("2006-01-02", dt.Date)
	}
	return time.Time{}, nil
}
