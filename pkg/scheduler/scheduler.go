// Package scheduler triggers sync runs on a fixed interval until stopped.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/harrisonrobin/taskcal/pkg/activity"
	"github.com/harrisonrobin/taskcal/pkg/syncer"
	"github.com/harrisonrobin/taskcal/pkg/syncerr"
)

// MinInterval is the shortest accepted automation interval.
const MinInterval = time.Minute

var ErrAlreadyRunning = syncerr.New(syncerr.Busy, "automation.start", "automation is already running", nil)

type Runner interface {
	Run(ctx context.Context, keyword string) (*syncer.RunResult, error)
}

type Status struct {
	Enabled   bool       `json:"enabled"`
	Interval  string     `json:"interval,omitempty"`
	Keyword   string     `json:"keyword,omitempty"`
	NextRun   *time.Time `json:"nextRun,omitempty"`
	StartedAt *time.Time `json:"startedAt,omitempty"`
}

type Scheduler struct {
	runner      Runner
	activity    *activity.Log
	log         zerolog.Logger
	now         func() time.Time
	minInterval time.Duration

	mu        sync.Mutex
	cancel    context.CancelFunc
	done      chan struct{}
	interval  time.Duration
	keyword   string
	startedAt time.Time
	nextRun   time.Time
}

type Option func(*Scheduler)

func WithLogger(l zerolog.Logger) Option {
	return func(s *Scheduler) { s.log = l }
}

func WithActivity(l *activity.Log) Option {
	return func(s *Scheduler) { s.activity = l }
}

// WithMinInterval lowers or raises the interval floor.
func WithMinInterval(d time.Duration) Option {
	return func(s *Scheduler) { s.minInterval = d }
}

func New(runner Runner, opts ...Option) *Scheduler {
	s := &Scheduler{
		runner:      runner,
		log:         zerolog.Nop(),
		now:         time.Now,
		minInterval: MinInterval,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.activity == nil {
		s.activity = activity.New(activity.DefaultCapacity)
	}
	return s
}

// Start begins running keyword syncs every interval. With runNow the
// first run happens immediately instead of after one interval.
func (s *Scheduler) Start(interval time.Duration, keyword string, runNow bool) error {
	if interval < s.minInterval {
		return syncerr.New(syncerr.Invalid, "automation.start",
			fmt.Sprintf("interval must be at least %s", s.minInterval), nil)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	s.interval = interval
	s.keyword = keyword
	s.startedAt = s.now()
	if runNow {
		s.nextRun = s.startedAt
	} else {
		s.nextRun = s.startedAt.Add(interval)
	}

	go s.loop(ctx, s.done, interval, keyword, runNow)

	s.log.Info().Dur("interval", interval).Str("keyword", keyword).Msg("automation started")
	s.activity.Info(fmt.Sprintf("automation started: every %s for %q", interval, keyword))
	return nil
}

// Stop prevents future runs. A run already in progress completes. It
// reports whether automation was running.
func (s *Scheduler) Stop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel == nil {
		return false
	}
	s.cancel()
	s.cancel = nil
	s.log.Info().Msg("automation stopped")
	s.activity.Info("automation stopped")
	return true
}

func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel == nil {
		return Status{}
	}
	started, next := s.startedAt, s.nextRun
	return Status{
		Enabled:   true,
		Interval:  s.interval.String(),
		Keyword:   s.keyword,
		NextRun:   &next,
		StartedAt: &started,
	}
}

// Wait blocks until the most recently started loop has exited, including
// any run it was executing. It returns at once if Start was never called.
func (s *Scheduler) Wait() {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done != nil {
		<-done
	}
}

func (s *Scheduler) loop(ctx context.Context, done chan struct{}, interval time.Duration, keyword string, runNow bool) {
	defer close(done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	if runNow {
		s.tick(ctx, interval, keyword)
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx, interval, keyword)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context, interval time.Duration, keyword string) {
	if ctx.Err() != nil {
		return
	}
	s.mu.Lock()
	if s.cancel != nil {
		s.nextRun = s.now().Add(interval)
	}
	s.mu.Unlock()

	_, err := s.runner.Run(ctx, keyword)
	switch {
	case err == nil:
	case syncerr.IsKind(err, syncerr.Busy):
		s.log.Info().Msg("previous run still active, skipping tick")
		s.activity.Warn("scheduled run skipped, a run is already in progress")
	default:
		// the orchestrator already recorded the failure in the activity log
		s.log.Warn().Err(err).Msg("scheduled run failed")
	}
}
