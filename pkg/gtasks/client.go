// Package gtasks adapts the Google Tasks API to the task source contract
// used by the sync orchestrator.
package gtasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/api/option"
	"google.golang.org/api/tasks/v1"

	"github.com/harrisonrobin/taskcal/pkg/google"
	"github.com/harrisonrobin/taskcal/pkg/model"
	"github.com/harrisonrobin/taskcal/pkg/syncerr"
	"github.com/harrisonrobin/taskcal/pkg/util"
)

// DefaultList is the Tasks API alias for the user's default list.
const DefaultList = "@default"

const statusCompleted = "completed"

type Client struct {
	srv     *tasks.Service
	listID  string
	timeout time.Duration
	log     zerolog.Logger
}

// NewClient creates a Google Tasks client for the list whose title or id
// is listName. An empty name selects the default list.
func NewClient(ctx context.Context, listName string, timeout time.Duration, log zerolog.Logger, opts ...option.ClientOption) (*Client, error) {
	srv, err := tasks.NewService(ctx, opts...)
	if err != nil {
		return nil, syncerr.ConfigError("tasks.init", "unable to create tasks service", err)
	}
	c := &Client{srv: srv, listID: DefaultList, timeout: timeout, log: log}
	if listName == "" || listName == DefaultList {
		return c, nil
	}
	listID, err := c.resolveList(ctx, listName)
	if err != nil {
		return nil, err
	}
	c.listID = listID
	return c, nil
}

func (c *Client) ListID() string {
	return c.listID
}

func (c *Client) resolveList(ctx context.Context, name string) (string, error) {
	const op = "tasks.resolve"
	ctx, cancel := c.callCtx(ctx)
	defer cancel()

	var listID string
	err := c.srv.Tasklists.List().MaxResults(100).Pages(ctx, func(page *tasks.TaskLists) error {
		for _, l := range page.Items {
			if l.Title == name || l.Id == name {
				listID = l.Id
				return errFound
			}
		}
		return nil
	})
	if err != nil && !errors.Is(err, errFound) {
		return "", google.Classify(op, err)
	}
	if listID == "" {
		return "", syncerr.ConfigError(op, fmt.Sprintf("task list %q not found", name), nil)
	}
	return listID, nil
}

var errFound = errors.New("found")

func (c *Client) callCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

func (c *Client) ready(op string) error {
	if c == nil || c.srv == nil {
		return syncerr.ConfigError(op, "tasks service not configured", nil)
	}
	return nil
}

// Search returns the incomplete tasks whose title contains keyword,
// ignoring case, across all pages of the list.
func (c *Client) Search(ctx context.Context, keyword string) ([]model.Task, error) {
	const op = "tasks.search"
	if err := c.ready(op); err != nil {
		return nil, err
	}
	ctx, cancel := c.callCtx(ctx)
	defer cancel()

	var out []model.Task
	var bad int
	err := c.srv.Tasks.List(c.listID).
		ShowCompleted(false).
		ShowHidden(false).
		MaxResults(100).
		Pages(ctx, func(page *tasks.Tasks) error {
			for _, item := range page.Items {
				if item.Deleted || item.Status == statusCompleted {
					continue
				}
				task, err := toModel(item)
				if err != nil {
					bad++
					c.log.Warn().Err(err).Str("task_id", item.Id).Msg("skipping task with unreadable due date")
					continue
				}
				if task.MatchesKeyword(keyword) {
					out = append(out, task)
				}
			}
			return nil
		})
	if err != nil {
		return nil, google.Classify(op, err)
	}
	c.log.Debug().Int("matched", len(out)).Int("skipped", bad).Str("keyword", keyword).Msg("tasks searched")
	return out, nil
}

// UpdateNotes replaces the notes of a task. Empty notes are sent too.
func (c *Client) UpdateNotes(ctx context.Context, taskID, notes string) error {
	const op = "tasks.update"
	if err := c.ready(op); err != nil {
		return err
	}
	ctx, cancel := c.callCtx(ctx)
	defer cancel()

	patch := &tasks.Task{Notes: notes, ForceSendFields: []string{"Notes"}}
	if _, err := c.srv.Tasks.Patch(c.listID, taskID, patch).Context(ctx).Do(); err != nil {
		return google.Classify(op, err)
	}
	return nil
}

func toModel(item *tasks.Task) (model.Task, error) {
	due, err := util.ParseDueDate(item.Due)
	if err != nil {
		return model.Task{}, err
	}
	return model.Task{
		ID:        item.Id,
		Title:     item.Title,
		Notes:     item.Notes,
		Due:       due,
		Completed: item.Status == statusCompleted,
	}, nil
}
