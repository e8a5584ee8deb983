package reconcile

import (
	"fmt"
	"time"

	"github.com/harrisonrobin/taskcal/pkg/model"
	"github.com/harrisonrobin/taskcal/pkg/syncerr"
)

// Action is the outcome kind of reconciling one task.
type Action int

const (
	ActionCreated Action = iota + 1
	ActionRecreated
	ActionUpdated
	ActionSkipped
	ActionError
)

func (a Action) String() string {
	switch a {
	case ActionCreated:
		return "created"
	case ActionRecreated:
		return "recreated"
	case ActionUpdated:
		return "updated"
	case ActionSkipped:
		return "skipped"
	case ActionError:
		return "error"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

func (a Action) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Action) UnmarshalText(b []byte) error {
	for _, candidate := range []Action{ActionCreated, ActionRecreated, ActionUpdated, ActionSkipped, ActionError} {
		if candidate.String() == string(b) {
			*a = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown action %q", string(b))
}

// Mutated reports whether the action changed the calendar.
func (a Action) Mutated() bool {
	return a == ActionCreated || a == ActionRecreated || a == ActionUpdated
}

// Result is the uniform outcome record for one task, whatever the action.
type Result struct {
	Action    Action    `json:"action"`
	TaskID    string    `json:"taskId"`
	TaskTitle string    `json:"taskTitle"`
	EventID   string    `json:"eventId,omitempty"`
	EventURL  string    `json:"eventUrl,omitempty"`
	Start     time.Time `json:"startTime,omitzero"`
	End       time.Time `json:"endTime,omitzero"`
	Note      string    `json:"note,omitempty"`
	// Placeholder is set when the event was synthesized locally because
	// the calendar could not be reached. No marker is written for it.
	Placeholder bool `json:"placeholder,omitempty"`
	// MarkerWritten is set when this reconciliation rewrote the task notes.
	MarkerWritten bool   `json:"markerWritten"`
	Error         string `json:"error,omitempty"`
	ErrorKind     string `json:"errorKind,omitempty"`
}

func eventResult(action Action, task model.Task, ev *model.Event) Result {
	return Result{
		Action:    action,
		TaskID:    task.ID,
		TaskTitle: task.Title,
		EventID:   ev.ID,
		EventURL:  ev.URL,
		Start:     ev.Start,
		End:       ev.End,
	}
}

// ErrorResult turns a failed reconciliation into an error outcome.
func ErrorResult(task model.Task, err error) Result {
	return Result{
		Action:    ActionError,
		TaskID:    task.ID,
		TaskTitle: task.Title,
		Error:     err.Error(),
		ErrorKind: syncerr.KindOf(err).String(),
	}
}
