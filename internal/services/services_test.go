package services

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketpulse/internal/infrastructure"
	"marketpulse/internal/pipeline"
	"marketpulse/internal/shared/testutil"
)

type blockingRunner struct {
	started chan struct{}
	release chan struct{}
	status  pipeline.RunStatus
	err     error
	sawCtx  context.Context
}

func (b *blockingRunner) Run(ctx context.Context) (*pipeline.RunReport, error) {
	b.sawCtx = ctx
	if b.started != nil {
		close(b.started)
		<-b.release
	}
	return &pipeline.RunReport{RunID: "r1", Status: b.status, FinishedAt: time.Now(), Error: errString(b.err)}, b.err
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func TestRunService_RejectsOverlappingRuns(t *testing.T) {
	runner := &blockingRunner{
		started: make(chan struct{}),
		release: make(chan struct{}),
		status:  pipeline.RunStatusSucceeded,
	}
	logger, logs := testutil.NewTestLogger()
	svc := NewRunService(runner, time.Minute, logger)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := svc.Trigger(context.Background())
		assert.NoError(t, err)
	}()

	<-runner.started
	assert.True(t, svc.Running())

	_, err := svc.Trigger(context.Background())
	assert.ErrorIs(t, err, ErrRunInProgress)
	testutil.AssertLogged(t, logs, slog.LevelWarn, "run rejected")

	close(runner.release)
	wg.Wait()

	assert.False(t, svc.Running())
	require.NotNil(t, svc.LastReport())
	assert.Equal(t, "r1", svc.LastReport().RunID)
}

func TestRunService_DetachesFromCallerCancellation(t *testing.T) {
	runner := &blockingRunner{status: pipeline.RunStatusSucceeded}
	svc := NewRunService(runner, time.Minute, nil)

	ctx, cancel := context.WithCancel(infrastructure.WithTraceID(context.Background(), "trace-1"))
	cancel()

	_, err := svc.Trigger(ctx)
	require.NoError(t, err)
	assert.NoError(t, runner.sawCtx.Err())
	assert.Equal(t, "trace-1", infrastructure.GetTraceID(runner.sawCtx))
	_, hasDeadline := runner.sawCtx.Deadline()
	assert.True(t, hasDeadline)
}

func TestHealthService_Check(t *testing.T) {
	runner := &blockingRunner{status: pipeline.RunStatusFailed, err: errors.New("provider down")}
	runs := NewRunService(runner, 0, nil)
	health := NewHealthService(runs)

	assert.Equal(t, "ok", health.Check(context.Background()).Status)

	_, err := runs.Trigger(context.Background())
	require.Error(t, err)

	status := health.Check(context.Background())
	assert.Equal(t, "degraded", status.Status)
	require.NotNil(t, status.LastRun)
	assert.Equal(t, "failed", status.LastRun.Status)
	assert.Equal(t, "provider down", status.LastRun.Error)
	assert.NotEmpty(t, status.Version)
}
