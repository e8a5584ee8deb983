// Package syncer runs reconciliation passes over every task matching a
// keyword, keeping cumulative statistics and an activity trail.
package syncer

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/panics"

	"github.com/harrisonrobin/taskcal/pkg/activity"
	"github.com/harrisonrobin/taskcal/pkg/model"
	"github.com/harrisonrobin/taskcal/pkg/reconcile"
	"github.com/harrisonrobin/taskcal/pkg/syncerr"
)

// ErrRunInProgress is returned when a run is requested while another one
// is still executing. Requests are rejected, never queued.
var ErrRunInProgress = syncerr.New(syncerr.Busy, "sync.run", "a sync run is already in progress", nil)

type TaskSource interface {
	Search(ctx context.Context, keyword string) ([]model.Task, error)
}

type Reconciler interface {
	Reconcile(ctx context.Context, task model.Task, keyword string) (reconcile.Result, error)
}

// Recorder receives run and outcome observations, typically metrics.
type Recorder interface {
	ObserveReconcile(action string)
	ObserveRun(result string, d time.Duration)
}

type Counts struct {
	Found        int `json:"found"`
	Created      int `json:"created"`
	Recreated    int `json:"recreated"`
	Updated      int `json:"updated"`
	Skipped      int `json:"skipped"`
	Errors       int `json:"errors"`
	Placeholders int `json:"placeholders"`
}

// add tallies one outcome. Placeholder events only count as placeholders.
func (c *Counts) add(res reconcile.Result) {
	if res.Placeholder {
		c.Placeholders++
		return
	}
	switch res.Action {
	case reconcile.ActionCreated:
		c.Created++
	case reconcile.ActionRecreated:
		c.Recreated++
	case reconcile.ActionUpdated:
		c.Updated++
	case reconcile.ActionSkipped:
		c.Skipped++
	case reconcile.ActionError:
		c.Errors++
	}
}

type RunResult struct {
	ID         string             `json:"id"`
	Keyword    string             `json:"keyword"`
	StartedAt  time.Time          `json:"startedAt"`
	FinishedAt time.Time          `json:"finishedAt"`
	Counts     Counts             `json:"counts"`
	Results    []reconcile.Result `json:"results"`
}

// Stats accumulate across runs until ResetStats.
type Stats struct {
	TotalScans      int        `json:"totalScans"`
	TasksFound      int        `json:"tasksFound"`
	EventsCreated   int        `json:"eventsCreated"`
	EventsRecreated int        `json:"eventsRecreated"`
	EventsUpdated   int        `json:"eventsUpdated"`
	EventsSkipped   int        `json:"eventsSkipped"`
	Errors          int        `json:"errors"`
	Placeholders    int        `json:"placeholders"`
	LastRun         *time.Time `json:"lastRun"`
}

type Orchestrator struct {
	tasks    TaskSource
	rec      Reconciler
	activity *activity.Log
	recorder Recorder
	log      zerolog.Logger
	now      func() time.Time

	running atomic.Bool

	mu    sync.Mutex
	stats Stats
}

type Option func(*Orchestrator)

func WithActivity(l *activity.Log) Option {
	return func(o *Orchestrator) { o.activity = l }
}

func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) { o.recorder = r }
}

func WithLogger(l zerolog.Logger) Option {
	return func(o *Orchestrator) { o.log = l }
}

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

func New(tasks TaskSource, rec Reconciler, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		tasks: tasks,
		rec:   rec,
		log:   zerolog.Nop(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.activity == nil {
		o.activity = activity.New(activity.DefaultCapacity)
	}
	return o
}

// Activity returns the log every run writes to.
func (o *Orchestrator) Activity() *activity.Log {
	return o.activity
}

// Running reports whether a run is executing right now.
func (o *Orchestrator) Running() bool {
	return o.running.Load()
}

// Run reconciles every task matching keyword. Only one run executes at a
// time; a concurrent call gets ErrRunInProgress. Cancelling ctx does not
// abort a run that has started.
func (o *Orchestrator) Run(ctx context.Context, keyword string) (*RunResult, error) {
	if !o.running.CompareAndSwap(false, true) {
		o.observeRun("busy", 0)
		return nil, ErrRunInProgress
	}
	defer o.running.Store(false)

	ctx = context.WithoutCancel(ctx)
	run := &RunResult{
		ID:        ulid.Make().String(),
		Keyword:   keyword,
		StartedAt: o.now(),
		Results:   []reconcile.Result{},
	}
	log := o.log.With().Str("run_id", run.ID).Str("keyword", keyword).Logger()
	log.Info().Msg("sync run started")

	tasks, err := o.tasks.Search(ctx, keyword)
	if err != nil {
		log.Error().Err(err).Msg("fetching tasks failed")
		o.activity.Add(activity.Entry{
			Level:   activity.LevelError,
			Message: fmt.Sprintf("sync aborted, could not fetch tasks: %s", syncerr.Message(err)),
		})
		o.observeRun("failed", o.now().Sub(run.StartedAt))
		return nil, fmt.Errorf("fetch tasks: %w", err)
	}

	run.Counts.Found = len(tasks)
	for _, task := range tasks {
		res := o.reconcileOne(ctx, task, keyword)
		run.Counts.add(res)
		run.Results = append(run.Results, res)
		o.record(res)
		if o.recorder != nil {
			o.recorder.ObserveReconcile(metricAction(res))
		}
	}
	run.FinishedAt = o.now()

	o.mu.Lock()
	o.stats.TotalScans++
	o.stats.TasksFound += run.Counts.Found
	o.stats.EventsCreated += run.Counts.Created
	o.stats.EventsRecreated += run.Counts.Recreated
	o.stats.EventsUpdated += run.Counts.Updated
	o.stats.EventsSkipped += run.Counts.Skipped
	o.stats.Errors += run.Counts.Errors
	o.stats.Placeholders += run.Counts.Placeholders
	finished := run.FinishedAt
	o.stats.LastRun = &finished
	o.mu.Unlock()

	o.activity.Info(fmt.Sprintf("sync finished: %d found, %d created, %d recreated, %d updated, %d skipped, %d errors",
		run.Counts.Found, run.Counts.Created, run.Counts.Recreated, run.Counts.Updated, run.Counts.Skipped, run.Counts.Errors))
	log.Info().
		Int("found", run.Counts.Found).
		Int("created", run.Counts.Created).
		Int("recreated", run.Counts.Recreated).
		Int("updated", run.Counts.Updated).
		Int("skipped", run.Counts.Skipped).
		Int("errors", run.Counts.Errors).
		Int("placeholders", run.Counts.Placeholders).
		Msg("sync run finished")
	o.observeRun("ok", run.FinishedAt.Sub(run.StartedAt))
	return run, nil
}

// reconcileOne isolates a single task: errors and panics become an error
// outcome and never stop the batch.
func (o *Orchestrator) reconcileOne(ctx context.Context, task model.Task, keyword string) reconcile.Result {
	var (
		catcher panics.Catcher
		res     reconcile.Result
		err     error
	)
	catcher.Try(func() {
		res, err = o.rec.Reconcile(ctx, task, keyword)
	})
	if r := catcher.Recovered(); r != nil {
		o.log.Error().Str("task_id", task.ID).Str("panic", fmt.Sprint(r.Value)).Msg("reconcile panicked")
		return reconcile.ErrorResult(task, r.AsError())
	}
	if err != nil {
		o.log.Warn().Err(err).Str("task_id", task.ID).Msg("reconcile failed")
		return reconcile.ErrorResult(task, err)
	}
	return res
}

func (o *Orchestrator) record(res reconcile.Result) {
	e := activity.Entry{
		Level:  activity.LevelInfo,
		TaskID: res.TaskID,
		Action: res.Action.String(),
	}
	switch {
	case res.Action == reconcile.ActionError:
		e.Level = activity.LevelError
		e.Message = fmt.Sprintf("%q: %s", res.TaskTitle, res.Error)
	case res.Placeholder || res.Note != "" && !res.MarkerWritten && res.Action.Mutated():
		e.Level = activity.LevelWarn
		e.Message = fmt.Sprintf("%q %s: %s", res.TaskTitle, res.Action, res.Note)
	default:
		e.Message = fmt.Sprintf("%q %s (event %s)", res.TaskTitle, res.Action, res.EventID)
	}
	o.activity.Add(e)
}

// metricAction labels a placeholder apart from a real calendar write.
func metricAction(res reconcile.Result) string {
	if res.Placeholder {
		return "placeholder"
	}
	return res.Action.String()
}

func (o *Orchestrator) observeRun(result string, d time.Duration) {
	if o.recorder != nil {
		o.recorder.ObserveRun(result, d)
	}
}

func (o *Orchestrator) Stats() Stats {
	o.mu.Lock()
	defer o.mu.Unlock()
	s := o.stats
	if s.LastRun != nil {
		last := *s.LastRun
		s.LastRun = &last
	}
	return s
}

func (o *Orchestrator) ResetStats() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stats = Stats{}
}
