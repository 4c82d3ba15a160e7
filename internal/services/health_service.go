package services

import (
	"context"
	"runtime"
	"time"

	"marketpulse/pkg/contracts"
)

// HealthStatus represents the health status response
type HealthStatus struct {
	Status    string         `json:"status"`
	Timestamp time.Time      `json:"timestamp"`
	Version   string         `json:"version"`
	Uptime    string         `json:"uptime"`
	Running   bool           `json:"run_in_progress"`
	LastRun   *LastRunStatus `json:"last_run,omitempty"`
	Runtime   RuntimeInfo    `json:"runtime"`
}

// LastRunStatus summarizes the latest finished run
type LastRunStatus struct {
	RunID      string    `json:"run_id"`
	Status     string    `json:"status"`
	FinishedAt time.Time `json:"finished_at"`
	Error      string    `json:"error,omitempty"`
}

// RuntimeInfo describes the process
type RuntimeInfo struct {
	GoVersion  string `json:"go_version"`
	Goroutines int    `json:"goroutines"`
	Platform   string `json:"platform"`
}

// HealthService provides health check functionality
type HealthService struct {
	runs      *RunService
	startTime time.Time
}

// NewHealthService creates a new health service
func NewHealthService(runs *RunService) *HealthService {
	return &HealthService{runs: runs, startTime: time.Now()}
}

// Check returns the process status. A failed latest run degrades the
// status without making the process unhealthy.
func (h *HealthService) Check(_ context.Context) HealthStatus {
	info := contracts.GetVersionInfo()
	status := HealthStatus{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
		Version:   info.Version,
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		Runtime: RuntimeInfo{
			GoVersion:  info.GoVersion,
			Goroutines: runtime.NumGoroutine(),
			Platform:   info.Platform,
		},
	}

	if h.runs == nil {
		return status
	}
	status.Running = h.runs.Running()
	if last := h.runs.LastReport(); last != nil {
		status.LastRun = &LastRunStatus{
			RunID:      last.RunID,
			Status:     string(last.Status),
			FinishedAt: last.FinishedAt,
			Error:      last.Error,
		}
		if !last.Succeeded() {
			status.Status = "degraded"
		}
	}
	return status
}
