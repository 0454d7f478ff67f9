package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/MrSnakeDoc/scout/internal/domain"
	"github.com/MrSnakeDoc/scout/internal/logger"
	"github.com/MrSnakeDoc/scout/internal/pipeline"
)

// fakeRunner blocks each Run until release receives, and records triggers.
type fakeRunner struct {
	mu       sync.Mutex
	triggers []string
	active   int
	overlap  bool
	started  chan string
	release  chan struct{}
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{
		started: make(chan string, 8),
		release: make(chan struct{}),
	}
}

func (f *fakeRunner) Run(ctx context.Context, trigger string) (*domain.RunReport, error) {
	f.mu.Lock()
	f.active++
	if f.active > 1 {
		f.overlap = true
	}
	f.triggers = append(f.triggers, trigger)
	f.mu.Unlock()

	f.started <- trigger

	select {
	case <-f.release:
	case <-ctx.Done():
	}

	f.mu.Lock()
	f.active--
	f.mu.Unlock()

	r := domain.NewRunReport(trigger, time.Now())
	r.Reason = domain.ReasonOK
	return r, ctx.Err()
}

func (f *fakeRunner) State() pipeline.State { return pipeline.Idle }

type memoryReports struct {
	mu    sync.Mutex
	saved []*domain.RunReport
	last  *domain.RunReport
}

func (m *memoryReports) SaveReport(ctx context.Context, r *domain.RunReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = append(m.saved, r)
	return nil
}

func (m *memoryReports) LastReport(ctx context.Context) (*domain.RunReport, error) {
	return m.last, nil
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestTriggerIsSingleFlight(t *testing.T) {
	runner := newFakeRunner()
	s := New(runner, time.Hour, logger.Nop())
	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer func() { _ = s.Stop(context.Background()) }()

	if err := s.Trigger(); err != nil {
		t.Fatalf("first Trigger() error = %v", err)
	}
	<-runner.started
	if !s.Running() {
		t.Errorf("Running() = false during a cycle")
	}

	if err := s.Trigger(); err != nil {
		t.Fatalf("second Trigger() should queue, got %v", err)
	}
	if err := s.Trigger(); !errors.Is(err, ErrBusy) {
		t.Errorf("third Trigger() error = %v, want ErrBusy", err)
	}
	if !s.Queued() {
		t.Errorf("Queued() = false with a pending trigger")
	}

	runner.release <- struct{}{}
	<-runner.started
	runner.release <- struct{}{}

	waitFor(t, func() bool { return !s.Running() && !s.Queued() })

	runner.mu.Lock()
	defer runner.mu.Unlock()
	if runner.overlap {
		t.Errorf("two cycles overlapped")
	}
	if len(runner.triggers) != 2 {
		t.Errorf("runs = %d, want 2", len(runner.triggers))
	}
}

func TestRunOnStartAndReports(t *testing.T) {
	runner := newFakeRunner()
	reports := &memoryReports{}
	s := New(runner, time.Hour, logger.Nop(), WithRunOnStart(true), WithReportStore(reports))
	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer func() { _ = s.Stop(context.Background()) }()

	if got := <-runner.started; got != domain.TriggerStartup {
		t.Errorf("trigger = %q, want startup", got)
	}
	runner.release <- struct{}{}

	waitFor(t, func() bool { return s.Last() != nil })
	if s.Last().Trigger != domain.TriggerStartup {
		t.Errorf("Last().Trigger = %q", s.Last().Trigger)
	}
	waitFor(t, func() bool {
		reports.mu.Lock()
		defer reports.mu.Unlock()
		return len(reports.saved) == 1
	})
}

func TestStartRestoresLastReport(t *testing.T) {
	previous := domain.NewRunReport(domain.TriggerSchedule, time.Now().Add(-time.Hour))
	previous.Reason = domain.ReasonNoProductsFound

	s := New(newFakeRunner(), time.Hour, logger.Nop(), WithReportStore(&memoryReports{last: previous}))
	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer func() { _ = s.Stop(context.Background()) }()

	if got := s.Last(); got == nil || got.RunID != previous.RunID {
		t.Errorf("Last() = %+v, want restored report", got)
	}
}

func TestStatusAndNext(t *testing.T) {
	s := New(newFakeRunner(), 2*time.Hour, logger.Nop())
	if !s.Next().IsZero() {
		t.Errorf("Next() before Start should be zero")
	}
	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer func() { _ = s.Stop(context.Background()) }()

	waitFor(t, func() bool { return !s.Next().IsZero() })
	st := s.Status()
	if st.State != "idle" || st.Interval != "2h0m0s" || st.NextRun == nil {
		t.Errorf("Status() = %+v", st)
	}
	if until := time.Until(*st.NextRun); until <= time.Hour || until > 2*time.Hour {
		t.Errorf("next run in %v, want about 2h", until)
	}
}

func TestStopCancelsInFlightRun(t *testing.T) {
	runner := newFakeRunner()
	s := New(runner, time.Hour, logger.Nop())
	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := s.Trigger(); err != nil {
		t.Fatal(err)
	}
	<-runner.started

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	// Shutdown paths may stop twice.
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("second Stop() error = %v", err)
	}
}
