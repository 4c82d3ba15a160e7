package pipeline

import (
	"sync"
	"time"

	"marketpulse/internal/dataprocessing"
	"marketpulse/internal/marketdata"
)

// StepStatus represents the current status of a stage
type StepStatus string

const (
	StepStatusPending   StepStatus = "pending"
	StepStatusActive    StepStatus = "active"
	StepStatusCompleted StepStatus = "completed"
	StepStatusFailed    StepStatus = "failed"
	StepStatusSkipped   StepStatus = "skipped"
)

// StepState represents the runtime state of a stage
type StepState struct {
	mu        sync.RWMutex
	ID        string
	Name      string
	Status    StepStatus
	StartTime *time.Time
	EndTime   *time.Time
	Message   string
	Error     error
	Metadata  map[string]any
}

// NewStepState creates a pending stage state
func NewStepState(id, name string) *StepState {
	return &StepState{
		ID:       id,
		Name:     name,
		Status:   StepStatusPending,
		Metadata: make(map[string]any),
	}
}

// Start marks the stage as active
func (s *StepState) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.StartTime = &now
	s.Status = StepStatusActive
}

// Complete marks the stage as completed
func (s *StepState) Complete() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.EndTime = &now
	s.Status = StepStatusCompleted
}

// Fail marks the stage as failed with the given error
func (s *StepState) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.EndTime = &now
	s.Status = StepStatusFailed
	s.Error = err
}

// Skip marks the stage as skipped with the given reason
func (s *StepState) Skip(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Status = StepStatusSkipped
	s.Message = reason
}

// SetMetadata stores a value reported by the stage
func (s *StepState) SetMetadata(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Metadata[key] = value
}

// Duration returns how long the stage ran
func (s *StepState) Duration() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.StartTime == nil {
		return 0
	}
	if s.EndTime != nil {
		return s.EndTime.Sub(*s.StartTime)
	}
	return time.Since(*s.StartTime)
}

// RunStatus is the overall status of a run
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
)

// RunState carries the layers of one run from stage to stage
type RunState struct {
	ID        string
	Tickers   []string
	StartTime time.Time

	Bronze *marketdata.Bronze
	Result *dataprocessing.Result

	steps map[string]*StepState
	order []string
}

// NewRunState creates the state of a new run
func NewRunState(id string, tickers []string, stages []Stage) *RunState {
	state := &RunState{
		ID:        id,
		Tickers:   tickers,
		StartTime: time.Now(),
		steps:     make(map[string]*StepState, len(stages)),
	}
	for _, s := range stages {
		state.steps[s.ID()] = NewStepState(s.ID(), s.Name())
		state.order = append(state.order, s.ID())
	}
	return state
}

// Step returns the state of a stage
func (r *RunState) Step(id string) *StepState {
	return r.steps[id]
}

// Steps returns stage states in execution order
func (r *RunState) Steps() []*StepState {
	out := make([]*StepState, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.steps[id])
	}
	return out
}
