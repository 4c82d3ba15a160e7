package pipeline

import (
	"time"

	"marketpulse/internal/marketdata"
	"marketpulse/pkg/contracts/domain"
)

// StageReport summarizes one stage of a run
type StageReport struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Status     StepStatus     `json:"status"`
	DurationMS int64          `json:"duration_ms"`
	Message    string         `json:"message,omitempty"`
	Error      string         `json:"error,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// RunReport is the outcome of a run, returned by the trigger endpoints
type RunReport struct {
	RunID      string                     `json:"run_id"`
	Status     RunStatus                  `json:"status"`
	StartedAt  time.Time                  `json:"started_at"`
	FinishedAt time.Time                  `json:"finished_at"`
	DurationMS int64                      `json:"duration_ms"`
	Window     *WindowReport              `json:"window,omitempty"`
	Tickers    []marketdata.TickerOutcome `json:"tickers,omitempty"`
	SilverRows int                        `json:"silver_rows"`
	GoldRows   int                        `json:"gold_rows"`
	Stages     []StageReport              `json:"stages"`
	Error      string                     `json:"error,omitempty"`
	FailedAt   string                     `json:"failed_stage,omitempty"`
}

// WindowReport is the date range a run covered
type WindowReport struct {
	From        string `json:"from"`
	To          string `json:"to"`
	TradingDays int    `json:"trading_days"`
}

// Succeeded reports whether the run completed every stage
func (r *RunReport) Succeeded() bool {
	return r.Status == RunStatusSucceeded
}

func buildReport(state *RunState, status RunStatus, finished time.Time, runErr error) *RunReport {
	report := &RunReport{
		RunID:      state.ID,
		Status:     status,
		StartedAt:  state.StartTime,
		FinishedAt: finished,
		DurationMS: finished.Sub(state.StartTime).Milliseconds(),
	}

	if b := state.Bronze; b != nil {
		report.Window = &WindowReport{
			From:        b.Window.From.Format(domain.DateFormat),
			To:          b.Window.To.Format(domain.DateFormat),
			TradingDays: b.Window.TradingDays,
		}
		report.Tickers = b.Outcomes
	}
	if r := state.Result; r != nil {
		report.SilverRows = len(r.Silver)
		report.GoldRows = len(r.Gold)
	}

	for _, step := range state.Steps() {
		step.mu.RLock()
		sr := StageReport{
			ID:       step.ID,
			Name:     step.Name,
			Status:   step.Status,
			Message:  step.Message,
			Metadata: copyMetadata(step.Metadata),
		}
		if step.Error != nil {
			sr.Error = step.Error.Error()
		}
		step.mu.RUnlock()
		sr.DurationMS = step.Duration().Milliseconds()
		report.Stages = append(report.Stages, sr)
	}

	if runErr != nil {
		report.Error = runErr.Error()
		report.FailedAt = FailedStage(runErr)
	}
	return report
}

func copyMetadata(in map[string]any) map[string]any {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
