package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apperrors "marketpulse/internal/errors"
	"marketpulse/internal/pipeline"
	"marketpulse/internal/services"
)

// RunService triggers pipeline runs
type RunService interface {
	Trigger(ctx context.Context) (*pipeline.RunReport, error)
	LastReport() *pipeline.RunReport
}

// RunHandler handles run-related HTTP requests
type RunHandler struct {
	service RunService
	errors  *apperrors.ErrorHandler
	logger  *slog.Logger
}

// NewRunHandler creates a new run handler
func NewRunHandler(service RunService, errHandler *apperrors.ErrorHandler, logger *slog.Logger) *RunHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &RunHandler{
		service: service,
		errors:  errHandler,
		logger:  logger.With(slog.String("handler", "run")),
	}
}

// Register adds the run routes to r. guard wraps POST /run only.
func (h *RunHandler) Register(r chi.Router, guard func(http.Handler) http.Handler) {
	r.With(guard).Post("/run", h.Trigger)
	r.Get("/runs/latest", h.Latest)
}

// Trigger handles POST /run
func (h *RunHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.Trigger(r.Context())
	if errors.Is(err, services.ErrRunInProgress) {
		h.errors.HandleError(w, r, apperrors.ErrRunInProgress)
		return
	}
	if err != nil {
		if report == nil {
			h.errors.HandleError(w, r, err)
			return
		}
		h.renderFailure(w, r, report, err)
		return
	}

	h.logger.InfoContext(r.Context(), "run finished",
		slog.String("run_id", report.RunID),
		slog.Int("silver_rows", report.SilverRows),
		slog.Int("gold_rows", report.GoldRows))
	render.JSON(w, r, report)
}

// renderFailure answers with the problem mapped from err and attaches the
// partial run report so callers can see which stage failed.
func (h *RunHandler) renderFailure(w http.ResponseWriter, r *http.Request, report *pipeline.RunReport, err error) {
	h.logger.ErrorContext(r.Context(), "run failed",
		slog.String("run_id", report.RunID),
		slog.String("stage", report.FailedAt),
		slog.String("error", err.Error()))

	problem := h.errors.ErrorToProblem(err, r).
		WithExtension("run_id", report.RunID).
		WithExtension("failed_stage", report.FailedAt).
		WithExtension("report", report)
	render.Render(w, r, problem)
}

// Latest handles GET /runs/latest
func (h *RunHandler) Latest(w http.ResponseWriter, r *http.Request) {
	report := h.service.LastReport()
	if report == nil {
		h.errors.HandleError(w, r, apperrors.New(http.StatusNotFound, "NOT_FOUND", "No run has finished yet"))
		return
	}
	render.JSON(w, r, report)
}
