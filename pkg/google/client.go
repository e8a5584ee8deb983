// Package google adapts the Google Calendar API to the reconciler's
// calendar contract.
package google

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/harrisonrobin/taskcal/pkg/syncerr"
)

// PrimaryCalendar is accepted as a calendar id without a lookup.
const PrimaryCalendar = "primary"

// NewClient creates a new Google Calendar client for the calendar whose
// name or id is calendarName. opts carry the authenticated HTTP client.
func NewClient(ctx context.Context, calendarName string, timeout time.Duration, log zerolog.Logger, opts ...option.ClientOption) (*CalendarClient, error) {
	srv, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, syncerr.ConfigError("calendar.init", "unable to create calendar service", err)
	}

	if calendarName == "" || calendarName == PrimaryCalendar {
		return NewCalendarClient(srv, PrimaryCalendar, timeout, log), nil
	}

	calendarID, err := resolveCalendar(ctx, srv, calendarName)
	if err != nil {
		return nil, err
	}
	log.Debug().Str("calendar", calendarName).Str("calendar_id", calendarID).Msg("calendar resolved")
	return NewCalendarClient(srv, calendarID, timeout, log), nil
}

func resolveCalendar(ctx context.Context, srv *calendar.Service, name string) (string, error) {
	const op = "calendar.resolve"
	var calendarID string
	err := srv.CalendarList.List().Pages(ctx, func(list *calendar.CalendarList) error {
		for _, item := range list.Items {
			if item.Summary == name || item.Id == name {
				calendarID = item.Id
				return errFound
			}
		}
		return nil
	})
	if err != nil && !errors.Is(err, errFound) {
		return "", Classify(op, err)
	}
	if calendarID == "" {
		return "", syncerr.ConfigError(op, fmt.Sprintf("calendar %q not found", name), nil)
	}
	return calendarID, nil
}

// errFound stops paging once the calendar is located.
var errFound = errors.New("found")
