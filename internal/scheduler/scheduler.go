// Package scheduler fires discovery cycles on a cron interval and on demand.
// Every trigger goes through one queue drained by a single goroutine, so
// cycles never overlap.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/MrSnakeDoc/scout/internal/domain"
	"github.com/MrSnakeDoc/scout/internal/logger"
	"github.com/MrSnakeDoc/scout/internal/pipeline"
)

// DefaultInterval separates scheduled cycles.
const DefaultInterval = 12 * time.Hour

// reportSaveTimeout bounds persisting a report after a cycle.
const reportSaveTimeout = 5 * time.Second

// ErrBusy means a cycle is already queued; the trigger was dropped.
var ErrBusy = errors.New("a discovery cycle is already queued")

// Runner executes one cycle.
type Runner interface {
	Run(ctx context.Context, trigger string) (*domain.RunReport, error)
	State() pipeline.State
}

// ReportStore persists run reports across restarts.
type ReportStore interface {
	SaveReport(ctx context.Context, r *domain.RunReport) error
	LastReport(ctx context.Context) (*domain.RunReport, error)
}

// Scheduler owns the trigger queue and the runner goroutine.
type Scheduler struct {
	runner     Runner
	reports    ReportStore
	logger     logger.Logger
	interval   time.Duration
	runOnStart bool

	cron    *cron.Cron
	entryID cron.EntryID
	queue   chan string
	stopCh  chan struct{}
	stop    sync.Once
	done    chan struct{}
	cancel  context.CancelFunc

	running atomic.Bool
	mu      sync.RWMutex
	last    *domain.RunReport
}

// Option customizes a Scheduler.
type Option func(*Scheduler)

// WithReportStore persists every report and restores the last one on Start.
func WithReportStore(rs ReportStore) Option {
	return func(s *Scheduler) { s.reports = rs }
}

// WithRunOnStart queues a cycle as soon as the scheduler starts.
func WithRunOnStart(enabled bool) Option {
	return func(s *Scheduler) { s.runOnStart = enabled }
}

// New creates a scheduler. interval <= 0 uses DefaultInterval.
func New(runner Runner, interval time.Duration, log logger.Logger, opts ...Option) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	s := &Scheduler{
		runner:   runner,
		logger:   log,
		interval: interval,
		cron:     cron.New(cron.WithLogger(cronLogger{log: log})),
		queue:    make(chan string, 1),
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start registers the cron job and launches the runner goroutine.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.reports != nil {
		if last, err := s.reports.LastReport(ctx); err != nil {
			s.logger.Warn("failed to restore last run report", logger.Error(err))
		} else if last != nil {
			s.setLast(last)
		}
	}

	id, err := s.cron.AddFunc("@every "+s.interval.String(), func() {
		if err := s.enqueue(domain.TriggerSchedule); err != nil {
			s.logger.Warn("scheduled cycle skipped", logger.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("cron.AddFunc: %w", err)
	}
	s.entryID = id

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	go s.loop(runCtx)
	s.cron.Start()

	s.logger.Info("🕒 scheduler started",
		logger.Duration("interval", s.interval),
		logger.Bool("run_on_start", s.runOnStart))

	if s.runOnStart {
		_ = s.enqueue(domain.TriggerStartup)
	}
	return nil
}

// Stop halts the cron, cancels an in-flight cycle and waits for the runner
// to exit or ctx to expire. Calling it again only waits.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.stop.Do(func() {
		<-s.cron.Stop().Done()
		close(s.stopCh)
		if s.cancel != nil {
			s.cancel()
		}
	})

	select {
	case <-s.done:
		s.logger.Info("✅ scheduler stopped cleanly")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduler stop: %w", ctx.Err())
	}
}

// Trigger queues a manual cycle. It returns ErrBusy when one is already
// queued behind the running cycle.
func (s *Scheduler) Trigger() error {
	return s.enqueue(domain.TriggerManual)
}

func (s *Scheduler) enqueue(trigger string) error {
	select {
	case s.queue <- trigger:
		s.logger.Info("discovery cycle queued", logger.String("trigger", trigger))
		return nil
	default:
		return ErrBusy
	}
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)
	for {
		select {
		case trigger := <-s.queue:
			s.execute(ctx, trigger)
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (s *Scheduler) execute(ctx context.Context, trigger string) {
	s.running.Store(true)
	defer s.running.Store(false)

	report, err := s.runner.Run(ctx, trigger)
	if err != nil {
		s.logger.Warn("discovery cycle ended with error",
			logger.String("trigger", trigger),
			logger.Error(err))
	}
	if report == nil {
		return
	}
	s.setLast(report)

	if s.reports == nil {
		return
	}
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), reportSaveTimeout)
	defer cancel()
	if err := s.reports.SaveReport(saveCtx, report); err != nil {
		s.logger.Warn("failed to persist run report",
			logger.String("run_id", report.RunID.String()),
			logger.Error(err))
	}
}

func (s *Scheduler) setLast(r *domain.RunReport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = r
}

// Last returns a copy of the most recent report, or nil.
func (s *Scheduler) Last() *domain.RunReport {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return nil
	}
	r := *s.last
	return &r
}

// Running reports whether a cycle is executing.
func (s *Scheduler) Running() bool {
	return s.running.Load()
}

// Queued reports whether a cycle waits behind the running one.
func (s *Scheduler) Queued() bool {
	return len(s.queue) > 0
}

// Next returns the next scheduled fire time, zero before Start.
func (s *Scheduler) Next() time.Time {
	if s.entryID == 0 {
		return time.Time{}
	}
	return s.cron.Entry(s.entryID).Next
}

// Status is a point-in-time view for operators.
type Status struct {
	State    string            `json:"state"`
	Running  bool              `json:"running"`
	Queued   bool              `json:"queued"`
	Interval string            `json:"interval"`
	NextRun  *time.Time        `json:"next_run,omitempty"`
	LastRun  *domain.RunReport `json:"last_run,omitempty"`
}

func (s *Scheduler) Status() Status {
	st := Status{
		State:    s.runner.State().String(),
		Running:  s.Running(),
		Queued:   s.Queued(),
		Interval: s.interval.String(),
		LastRun:  s.Last(),
	}
	if next := s.Next(); !next.IsZero() {
		st.NextRun = &next
	}
	return st
}

// cronLogger routes robfig/cron logs through the service logger.
type cronLogger struct {
	log logger.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.log.Debugf("cron: %s %v", msg, keysAndValues)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.log.Error("cron: "+msg, logger.Error(err))
}
