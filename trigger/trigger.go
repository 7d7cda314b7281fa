// Package trigger drives the engine on a clock. A Scheduler wraps robfig
// cron with second-level granularity; Worker binds it to the engine's
// reconciliation pass at the configured cadence.
package trigger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/goliatone/go-orchestrator"

	rcron "github.com/robfig/cron/v3"
)

type Option func(*Scheduler)

func WithLocation(loc *time.Location) Option {
	return func(s *Scheduler) {
		s.location = loc
	}
}

func WithErrorHandler(fn func(error)) Option {
	return func(s *Scheduler) {
		if fn != nil {
			s.errorHandler = fn
		}
	}
}

func WithLogger(l orchestrator.Logger) Option {
	return func(s *Scheduler) {
		s.logger = l
	}
}

// Scheduler runs recurring jobs. Overlapping runs of the same job are
// skipped, and panics inside a job are recovered, so a stuck or crashing
// pass cannot take the process down.
type Scheduler struct {
	mu           sync.Mutex
	cron         *rcron.Cron
	location     *time.Location
	errorHandler func(error)
	logger       orchestrator.Logger

	nextID  int64
	handles map[int64]*jobHandle
}

func NewScheduler(opts ...Option) *Scheduler {
	s := &Scheduler{
		location: time.Local,
		handles:  make(map[int64]*jobHandle),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.logger = orchestrator.LoggerWithFields(s.logger, map[string]any{"component": "trigger"})
	if s.errorHandler == nil {
		s.errorHandler = func(err error) {
			s.logger.Error("scheduled job failed: %v", err)
		}
	}

	cronLogger := &cronLoggerAdapter{logger: s.logger}
	s.cron = rcron.New(
		rcron.WithLocation(s.location),
		rcron.WithParser(rcron.NewParser(
			rcron.Second|rcron.Minute|rcron.Hour|rcron.Dom|rcron.Month|rcron.Dow|rcron.Descriptor,
		)),
		rcron.WithChain(
			rcron.Recover(cronLogger),
			rcron.SkipIfStillRunning(cronLogger),
		),
		rcron.WithLogger(cronLogger),
	)
	return s
}

// ScheduleFunc registers fn on the given cron expression. The seconds field
// and @every descriptors are both accepted.
func (s *Scheduler) ScheduleFunc(expression string, fn func(context.Context) error) (Handle, error) {
	if expression == "" {
		return nil, fmt.Errorf("cron expression cannot be empty")
	}
	if fn == nil {
		return nil, fmt.Errorf("job function cannot be nil")
	}

	h := s.newHandle()
	job := rcron.FuncJob(func() {
		if isTerminalStatus(h.Status()) {
			return
		}
		h.setStatus(ScheduleStatusRunning, nil)
		if err := fn(context.Background()); err != nil {
			h.setStatus(ScheduleStatusFailed, err)
			s.errorHandler(err)
			return
		}
		if !isTerminalStatus(h.Status()) {
			h.setStatus(ScheduleStatusIdle, nil)
		}
	})

	entryID, err := s.cron.AddJob(expression, job)
	if err != nil {
		return nil, fmt.Errorf("failed to add job: %w", err)
	}
	h.entryID = int(entryID)
	s.storeHandle(h)
	return h, nil
}

// Start begins firing scheduled jobs.
func (s *Scheduler) Start(_ context.Context) error {
	s.cron.Start()
	return nil
}

// Stop halts scheduling and marks live handles stopped. Jobs already mid-run
// finish; Stop does not wait for them.
func (s *Scheduler) Stop(_ context.Context) error {
	s.cron.Stop()

	s.mu.Lock()
	handles := make([]*jobHandle, 0, len(s.handles))
	for _, h := range s.handles {
		handles = append(handles, h)
	}
	s.handles = make(map[int64]*jobHandle)
	s.mu.Unlock()

	for _, h := range handles {
		if h.entryID > 0 {
			s.cron.Remove(rcron.EntryID(h.entryID))
		}
		if !isTerminalStatus(h.Status()) {
			h.setTerminal(ScheduleStatusStopped, nil)
		}
	}
	return nil
}

func (s *Scheduler) newHandle() *jobHandle {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	return &jobHandle{
		scheduler: s,
		id:        s.nextID,
		status:    ScheduleStatusScheduled,
		done:      make(chan struct{}),
	}
}

func (s *Scheduler) storeHandle(h *jobHandle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handles[h.id] = h
}

func (s *Scheduler) removeHandle(id int64) {
	s.mu.Lock()
	h := s.handles[id]
	delete(s.handles, id)
	s.mu.Unlock()
	if h != nil && h.entryID > 0 {
		s.cron.Remove(rcron.EntryID(h.entryID))
	}
}

// CadenceExpression renders a tick interval as a cron descriptor. Intervals
// under a second are clamped up; the scheduler cannot fire faster than that.
func CadenceExpression(d time.Duration) string {
	if d < time.Second {
		d = time.Second
	}
	return "@every " + d.Truncate(time.Second).String()
}

type cronLoggerAdapter struct {
	logger orchestrator.Logger
}

func (a *cronLoggerAdapter) Info(msg string, kv ...any) {
	a.logger.Debug("%s %v", msg, kv)
}

func (a *cronLoggerAdapter) Error(err error, msg string, kv ...any) {
	a.logger.Error("%s: %v %v", msg, err, kv)
}
