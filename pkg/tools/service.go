// Package tools exposes the sync engine's control operations to callers:
// a transport-neutral Service and an MCP server built on it.
package tools

import (
	"context"
	"strings"
	"time"

	"github.com/harrisonrobin/taskcal/pkg/activity"
	"github.com/harrisonrobin/taskcal/pkg/scheduler"
	"github.com/harrisonrobin/taskcal/pkg/syncer"
	"github.com/harrisonrobin/taskcal/pkg/syncerr"
)

// DefaultLogLimit is how many activity entries a log request returns when
// it names no limit.
const DefaultLogLimit = 50

type Service struct {
	syncer    *syncer.Orchestrator
	scheduler *scheduler.Scheduler
	activity  *activity.Log
	settings  Settings
	setupErr  error
}

// Settings are the defaults requests fall back on, echoed by Status.
type Settings struct {
	Keyword        string        `json:"keyword"`
	Interval       time.Duration `json:"-"`
	Calendar       string        `json:"calendar"`
	TaskList       string        `json:"taskList,omitempty"`
	FallbackEvents bool          `json:"fallbackEvents"`
}

// NewService wires the control operations. setupErr, when non-nil, is the
// reason the task source or calendar could not be initialised; sync
// requests then fail with it as a config error.
func NewService(o *syncer.Orchestrator, s *scheduler.Scheduler, settings Settings, setupErr error) *Service {
	return &Service{
		syncer:    o,
		scheduler: s,
		activity:  o.Activity(),
		settings:  settings,
		setupErr:  setupErr,
	}
}

type StatusReport struct {
	Running         bool             `json:"running"`
	Configured      bool             `json:"configured"`
	SetupError      string           `json:"setupError,omitempty"`
	Settings        Settings         `json:"settings"`
	DefaultInterval string           `json:"defaultInterval"`
	Automation      scheduler.Status `json:"automation"`
	Stats           syncer.Stats     `json:"stats"`
}

func (s *Service) Status() StatusReport {
	r := StatusReport{
		Running:         s.syncer.Running(),
		Configured:      s.setupErr == nil,
		Settings:        s.settings,
		DefaultInterval: s.settings.Interval.String(),
		Automation:      s.scheduler.Status(),
		Stats:           s.syncer.Stats(),
	}
	if s.setupErr != nil {
		r.SetupError = syncerr.Message(s.setupErr)
	}
	return r
}

func (s *Service) keyword(k string) string {
	if k = strings.TrimSpace(k); k != "" {
		return k
	}
	return s.settings.Keyword
}

// RunSync runs one reconciliation pass for keyword, or the configured
// keyword when empty.
func (s *Service) RunSync(ctx context.Context, keyword string) (*syncer.RunResult, error) {
	if s.setupErr != nil {
		return nil, syncerr.ConfigError("sync.run", "sync is not configured", s.setupErr)
	}
	return s.syncer.Run(ctx, s.keyword(keyword))
}

// StartAutomation parses interval (empty means the configured default)
// and starts the scheduler.
func (s *Service) StartAutomation(interval, keyword string, runNow bool) (scheduler.Status, error) {
	if s.setupErr != nil {
		return scheduler.Status{}, syncerr.ConfigError("automation.start", "sync is not configured", s.setupErr)
	}
	d := s.settings.Interval
	if interval = strings.TrimSpace(interval); interval != "" {
		parsed, err := time.ParseDuration(interval)
		if err != nil {
			return scheduler.Status{}, syncerr.New(syncerr.Invalid, "automation.start", "interval must be a duration such as 15m", err)
		}
		d = parsed
	}
	if err := s.scheduler.Start(d, s.keyword(keyword), runNow); err != nil {
		return scheduler.Status{}, err
	}
	return s.scheduler.Status(), nil
}

// StopAutomation reports whether automation was running.
func (s *Service) StopAutomation() bool {
	return s.scheduler.Stop()
}

func (s *Service) Logs(limit int) []activity.Entry {
	if limit <= 0 {
		limit = DefaultLogLimit
	}
	return s.activity.List(limit)
}

func (s *Service) ResetStats() syncer.Stats {
	s.syncer.ResetStats()
	s.activity.Info("statistics reset")
	return s.syncer.Stats()
}
