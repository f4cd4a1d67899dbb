package usecase

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"TuxLetter/internal/metrics"
	"TuxLetter/internal/ports"
)

// Runner executes one digest run.
type Runner interface {
	Run(ctx context.Context, day time.Time) (RunReport, error)
}

// SchedulerDeps wires the scheduler.
type SchedulerDeps struct {
	Driver   ports.Scheduler
	Pipeline Runner
	// Heartbeat logs the scheduler status at this interval. Zero disables it.
	Heartbeat time.Duration
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
}

// Status is a snapshot of the scheduler.
type Status struct {
	Running    bool
	Runs       int
	Skipped    int
	LastStart  time.Time
	LastFinish time.Time
	LastError  string
}

// Scheduler wires the cron driver with the pipeline use case. A trigger that
// fires while a run is in progress is skipped, not queued.
type Scheduler struct {
	driver    ports.Scheduler
	pipeline  Runner
	heartbeat time.Duration
	metrics   *metrics.Metrics
	logger    *slog.Logger

	busy   atomic.Bool
	mu     sync.Mutex
	status Status
}

// NewScheduler returns a helper to start/stop recurring jobs.
func NewScheduler(deps SchedulerDeps) *Scheduler {
	log := deps.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Scheduler{
		driver:    deps.Driver,
		pipeline:  deps.Pipeline,
		heartbeat: deps.Heartbeat,
		metrics:   deps.Metrics,
		logger:    log,
	}
}

// Start registers the pipeline with the driver and starts the heartbeat.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.pipeline == nil {
		return errors.New("scheduler is not fully wired")
	}

	job := func(trigger time.Time) {
		s.logger.Info("scheduled run triggered", "trigger", trigger)
		_, _ = s.trigger(ctx, trigger)
	}
	if err := s.driver.Start(ctx, job); err != nil {
		return err
	}

	if s.heartbeat > 0 {
		go s.beat(ctx)
	}
	return nil
}

// RunNow runs the pipeline immediately unless a run is in progress. It
// reports whether the pipeline ran.
func (s *Scheduler) RunNow(ctx context.Context) (bool, error) {
	s.logger.Info("manual run requested")
	return s.trigger(ctx, time.Now())
}

func (s *Scheduler) trigger(ctx context.Context, at time.Time) (bool, error) {
	if !s.busy.CompareAndSwap(false, true) {
		s.logger.Warn("run already in progress, skipping trigger", "trigger", at)
		s.mu.Lock()
		s.status.Skipped++
		s.mu.Unlock()
		s.metrics.ObserveRun(metrics.OutcomeSkipped, 0, 0)
		return false, nil
	}
	defer s.busy.Store(false)

	s.mu.Lock()
	s.status.LastStart = time.Now()
	s.mu.Unlock()

	_, err := s.pipeline.Run(ctx, at)

	s.mu.Lock()
	s.status.Runs++
	s.status.LastFinish = time.Now()
	s.status.LastError = ""
	if err != nil {
		s.status.LastError = err.Error()
	}
	s.mu.Unlock()
	return true, err
}

// Status returns a snapshot of the scheduler state.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	status := s.status
	status.Running = s.busy.Load()
	return status
}

func (s *Scheduler) beat(ctx context.Context) {
	ticker := time.NewTicker(s.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			st := s.Status()
			s.logger.Info("scheduler heartbeat",
				"running", st.Running,
				"runs", st.Runs,
				"skipped", st.Skipped,
				"last_finish", st.LastFinish,
				"last_error", st.LastError)
		}
	}
}

// Stop gracefully tears down the underlying scheduler.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	return s.driver.Stop(ctx)
}
