package main

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/api/option"

	"github.com/harrisonrobin/taskcal/pkg/activity"
	"github.com/harrisonrobin/taskcal/pkg/auth"
	"github.com/harrisonrobin/taskcal/pkg/colors"
	"github.com/harrisonrobin/taskcal/pkg/config"
	"github.com/harrisonrobin/taskcal/pkg/google"
	"github.com/harrisonrobin/taskcal/pkg/gtasks"
	"github.com/harrisonrobin/taskcal/pkg/logutils"
	"github.com/harrisonrobin/taskcal/pkg/metrics"
	"github.com/harrisonrobin/taskcal/pkg/reconcile"
	"github.com/harrisonrobin/taskcal/pkg/scheduler"
	"github.com/harrisonrobin/taskcal/pkg/syncer"
	"github.com/harrisonrobin/taskcal/pkg/tools"
)

// Flags are the global command-line flags.
type Flags struct {
	LogLevel  string
	LogFile   string
	ConfigDir string
}

// App is populated in Before and shared by every command.
type App struct {
	flags *Flags
	cfg   *config.Config
	log   zerolog.Logger
}

// overrides are per-command flags that take precedence over env and the
// config file.
type overrides struct {
	calendar string
	taskList string
	keyword  string
}

func (a *App) defaults(o overrides) config.File {
	d := a.cfg.Defaults
	d.Merge(config.File{Calendar: o.calendar, TaskList: o.taskList, Keyword: o.keyword})
	return d
}

// Engine is the wired sync stack.
type Engine struct {
	Syncer    *syncer.Orchestrator
	Scheduler *scheduler.Scheduler
	Service   *tools.Service
	Metrics   *metrics.Metrics
	Colors    *colors.ColorCache
	// SetupErr is why the Google clients could not be created, if they
	// could not.
	SetupErr error
}

// newEngine builds the Google clients and the sync stack on top of them.
// A setup failure does not fail construction: the engine still serves
// status and logs, and sync requests report the failure.
func (a *App) newEngine(ctx context.Context, o overrides, interactive bool) *Engine {
	d := a.defaults(o)
	log := a.log

	colorCache, err := colors.NewColorCache(colors.DefaultPath(a.cfg.Dir))
	if err != nil {
		log.Warn().Err(err).Msg("keyword color cache unavailable, using memory only")
		colorCache, _ = colors.NewColorCache("")
	}

	var (
		cal   *google.CalendarClient
		tasks *gtasks.Client
	)
	httpClient, setupErr := auth.NewHTTPClient(ctx, a.cfg.Dir, interactive, logutils.Component(log, "auth"))
	if setupErr == nil {
		cal, setupErr = google.NewClient(ctx, d.Calendar, a.cfg.RequestTimeout,
			logutils.Component(log, "calendar"), option.WithHTTPClient(httpClient))
	}
	if setupErr == nil {
		tasks, setupErr = gtasks.NewClient(ctx, d.TaskList, a.cfg.RequestTimeout,
			logutils.Component(log, "tasks"), option.WithHTTPClient(httpClient))
	}
	if setupErr != nil {
		log.Warn().Err(setupErr).Msg("google clients unavailable")
	}

	m := metrics.New()
	activityLog := activity.New(a.cfg.LogCapacity)
	rec := reconcile.New(cal, tasks,
		reconcile.WithFallback(a.cfg.FallbackEvents),
		reconcile.WithColors(colorCache),
		reconcile.WithLogger(logutils.Component(log, "reconcile")),
	)
	orch := syncer.New(tasks, rec,
		syncer.WithActivity(activityLog),
		syncer.WithRecorder(m),
		syncer.WithLogger(logutils.Component(log, "syncer")),
	)
	sched := scheduler.New(orch,
		scheduler.WithActivity(activityLog),
		scheduler.WithLogger(logutils.Component(log, "scheduler")),
	)
	svc := tools.NewService(orch, sched, tools.Settings{
		Keyword:        d.Keyword,
		Interval:       a.cfg.Interval,
		Calendar:       d.Calendar,
		TaskList:       d.TaskList,
		FallbackEvents: a.cfg.FallbackEvents,
	}, setupErr)

	return &Engine{
		Syncer:    orch,
		Scheduler: sched,
		Service:   svc,
		Metrics:   m,
		Colors:    colorCache,
		SetupErr:  setupErr,
	}
}

// Close stops automation, waits for an in-flight run and persists the
// keyword colors.
func (e *Engine) Close(log zerolog.Logger) {
	e.Scheduler.Stop()
	done := make(chan struct{})
	go func() {
		e.Scheduler.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Minute):
		log.Warn().Msg("gave up waiting for the running sync to finish")
	}
	if err := e.Colors.Save(); err != nil {
		log.Warn().Err(err).Msg("could not save keyword colors")
	}
}
