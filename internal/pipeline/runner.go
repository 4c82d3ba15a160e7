package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"marketpulse/internal/infrastructure"
)

// Metrics receives run and stage timings
type Metrics interface {
	RecordRun(ctx context.Context, status string, d time.Duration)
	RecordStage(ctx context.Context, stage string, success bool, d time.Duration)
}

// Runner executes the stages of a run in order
type Runner struct {
	stages  []Stage
	tickers []string
	tracer  trace.Tracer
	metrics Metrics
	logger  *slog.Logger
	newID   func() string
}

// RunnerOption customizes a Runner
type RunnerOption func(*Runner)

// WithTracer sets the tracer used for run and stage spans
func WithTracer(t trace.Tracer) RunnerOption {
	return func(r *Runner) {
		if t != nil {
			r.tracer = t
		}
	}
}

// WithMetrics sets the metrics sink
func WithMetrics(m Metrics) RunnerOption {
	return func(r *Runner) { r.metrics = m }
}

// WithIDGenerator replaces the uuid run id generator
func WithIDGenerator(fn func() string) RunnerOption {
	return func(r *Runner) { r.newID = fn }
}

// NewRunner creates a runner over stages for the configured tickers
func NewRunner(stages []Stage, tickers []string, logger *slog.Logger, opts ...RunnerOption) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Runner{
		stages:  stages,
		tickers: tickers,
		tracer:  tracenoop.NewTracerProvider().Tracer("marketpulse"),
		logger:  logger.With(slog.String("component", "runner")),
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes one run. The report is always returned; the error is the
// first stage failure wrapped in an OperationError.
func (r *Runner) Run(ctx context.Context) (*RunReport, error) {
	state := NewRunState(r.newID(), r.tickers, r.stages)
	ctx = infrastructure.WithTraceID(ctx, state.ID)

	ctx, span := r.tracer.Start(ctx, "etl.run",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("run.id", state.ID),
			attribute.Int("run.tickers", len(r.tickers)),
		))
	defer span.End()

	r.logger.InfoContext(ctx, "run started",
		slog.String("run_id", state.ID),
		slog.Int("tickers", len(r.tickers)),
		slog.Int("stages", len(r.stages)))

	var runErr error
	for i, stage := range r.stages {
		if runErr != nil {
			state.Step(stage.ID()).Skip(fmt.Sprintf("previous stage %s failed", FailedStage(runErr)))
			continue
		}
		if err := r.executeStage(ctx, state, stage, i); err != nil {
			runErr = err
		}
	}

	status := RunStatusSucceeded
	if runErr != nil {
		status = RunStatusFailed
		span.RecordError(runErr)
		span.SetStatus(codes.Error, runErr.Error())
	} else {
		span.SetStatus(codes.Ok, "run completed")
	}

	finished := time.Now()
	report := buildReport(state, status, finished, runErr)
	if r.metrics != nil {
		r.metrics.RecordRun(ctx, string(status), finished.Sub(state.StartTime))
	}

	attrs := []any{
		slog.String("run_id", state.ID),
		slog.String("status", string(status)),
		slog.Int("silver_rows", report.SilverRows),
		slog.Int("gold_rows", report.GoldRows),
		slog.Duration("duration", finished.Sub(state.StartTime)),
	}
	if runErr != nil {
		r.logger.ErrorContext(ctx, "run failed", append(attrs, slog.String("error", runErr.Error()))...)
	} else {
		r.logger.InfoContext(ctx, "run completed", attrs...)
	}

	return report, runErr
}

func (r *Runner) executeStage(ctx context.Context, state *RunState, stage Stage, index int) error {
	step := state.Step(stage.ID())

	ctx, span := r.tracer.Start(ctx, "etl.stage."+stage.ID(),
		trace.WithAttributes(
			attribute.String("run.id", state.ID),
			attribute.String("stage.id", stage.ID()),
			attribute.Int("stage.index", index),
		))
	defer span.End()

	r.logger.InfoContext(ctx, "executing stage",
		slog.String("run_id", state.ID),
		slog.String("stage", stage.ID()),
		slog.Int("stage_number", index+1),
		slog.Int("total_stages", len(r.stages)))

	step.Start()
	err := ctx.Err()
	if err == nil {
		err = stage.Execute(ctx, state)
	}
	if err != nil {
		var opErr *OperationError
		if !errors.As(err, &opErr) || opErr.Stage != stage.ID() {
			opErr = NewStageError(stage.ID(), err)
		}
		step.Fail(opErr)
		infrastructure.RecordSpanError(ctx, opErr)
		if r.metrics != nil {
			r.metrics.RecordStage(ctx, stage.ID(), false, step.Duration())
		}
		r.logger.ErrorContext(ctx, "stage failed",
			slog.String("run_id", state.ID),
			slog.String("stage", stage.ID()),
			slog.String("error", err.Error()))
		return opErr
	}

	step.Complete()
	span.SetStatus(codes.Ok, "")
	if r.metrics != nil {
		r.metrics.RecordStage(ctx, stage.ID(), true, step.Duration())
	}
	r.logger.InfoContext(ctx, "stage completed",
		slog.String("run_id", state.ID),
		slog.String("stage", stage.ID()),
		slog.Duration("duration", step.Duration()))
	return nil
}
