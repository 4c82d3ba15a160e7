package services

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"marketpulse/internal/pipeline"
)

// ErrRunInProgress is returned when a trigger overlaps a running run
var ErrRunInProgress = errors.New("a run is already in progress")

// Runner executes one ETL run
type Runner interface {
	Run(ctx context.Context) (*pipeline.RunReport, error)
}

// RunService allows at most one run at a time in this process
type RunService struct {
	runner  Runner
	timeout time.Duration
	logger  *slog.Logger

	runMu sync.Mutex

	mu      sync.RWMutex
	running bool
	last    *pipeline.RunReport
}

// NewRunService creates a run service. A zero timeout leaves runs unbounded.
func NewRunService(runner Runner, timeout time.Duration, logger *slog.Logger) *RunService {
	if logger == nil {
		logger = slog.Default()
	}
	return &RunService{
		runner:  runner,
		timeout: timeout,
		logger:  logger.With(slog.String("service", "run")),
	}
}

// Trigger runs the pipeline synchronously. It returns ErrRunInProgress
// without waiting when another run holds the lock. The run is detached from
// the caller's cancellation so a dropped HTTP client does not abort a load
// half way through.
func (s *RunService) Trigger(ctx context.Context) (*pipeline.RunReport, error) {
	if !s.runMu.TryLock() {
		s.logger.WarnContext(ctx, "run rejected, another run is active")
		return nil, ErrRunInProgress
	}
	defer s.runMu.Unlock()

	s.setRunning(true)
	defer s.setRunning(false)

	runCtx := context.WithoutCancel(ctx)
	if s.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(runCtx, s.timeout)
		defer cancel()
	}

	report, err := s.runner.Run(runCtx)

	s.mu.Lock()
	if report != nil {
		s.last = report
	}
	s.mu.Unlock()

	return report, err
}

// Running reports whether a run is active
func (s *RunService) Running() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// LastReport returns the report of the most recent finished run, or nil
func (s *RunService) LastReport() *pipeline.RunReport {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last
}

func (s *RunService) setRunning(v bool) {
	s.mu.Lock()
	s.running = v
	s.mu.Unlock()
}
