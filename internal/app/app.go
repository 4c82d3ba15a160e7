package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"marketpulse/internal/config"
	apperrors "marketpulse/internal/errors"
	"marketpulse/internal/dataprocessing"
	"marketpulse/internal/exporter"
	"marketpulse/internal/infrastructure"
	"marketpulse/internal/marketdata"
	customMiddleware "marketpulse/internal/middleware"
	"marketpulse/internal/pipeline"
	"marketpulse/internal/reporting"
	"marketpulse/internal/services"
	handlers "marketpulse/internal/transport/http"
	"marketpulse/pkg/contracts"
)

// AppName is used in startup logs
const AppName = "MarketPulse - daily stock quotes ETL"

// Application represents the main application container
type Application struct {
	Config        *config.Config
	Logger        *slog.Logger
	OTelProviders *infrastructure.OTelProviders
	Stores        *exporter.Stores
	Runner        *pipeline.Runner
	RunService    *services.RunService
	HealthService *services.HealthService
	Router        *chi.Mux
	Server        *http.Server
}

// NewApplication wires the pipeline from cfg. The router is built but no
// listener is opened until Start.
func NewApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Application, error) {
	logger.InfoContext(ctx, "Application starting",
		slog.String("name", AppName),
		slog.String("version", contracts.Version),
		slog.String("provider", cfg.Source.Provider),
		slog.Any("targets", cfg.Sink.Targets),
		slog.Int("tickers", len(cfg.Source.Tickers)))

	providers, err := infrastructure.InitializeOTel(ctx, cfg.Telemetry, contracts.Version, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	a := &Application{
		Config:        cfg,
		Logger:        logger,
		OTelProviders: providers,
	}

	if err := a.initializeServices(ctx); err != nil {
		a.shutdownTelemetry(ctx)
		return nil, err
	}
	a.setupRouter()
	a.createServer()

	return a, nil
}

// NewProvider builds the market-data provider named in cfg
func NewProvider(cfg config.SourceConfig) (marketdata.Provider, error) {
	switch cfg.Provider {
	case "", "yahoo":
		return marketdata.NewYahooProvider(cfg.BaseURL, cfg.UserAgent, cfg.Timeout), nil
	case "polygon":
		return marketdata.NewPolygonProvider(cfg.BaseURL, cfg.APIKey, cfg.UserAgent, cfg.AdjustPrices, cfg.Timeout), nil
	default:
		return nil, apperrors.NewConfigError(fmt.Sprintf("unsupported provider %q", cfg.Provider), nil)
	}
}

// initializeServices builds the stages, stores and services of a run
func (a *Application) initializeServices(ctx context.Context) error {
	cfg := a.Config
	metrics := a.OTelProviders.Metrics

	reporter := reporting.Multi{
		reporting.NewSlogReporter(a.Logger),
		reporting.NewMetricReporter(metrics.Events),
	}

	provider, err := NewProvider(cfg.Source)
	if err != nil {
		return err
	}
	calendar := marketdata.NewTradingCalendar(cfg.Source.Calendar)
	if calendar.Fallback() {
		a.Logger.WarnContext(ctx, "exchange calendar not found, using weekdays",
			slog.String("calendar", cfg.Source.Calendar))
	}

	extractor := marketdata.NewExtractor(provider, calendar, reporter, a.Logger, marketdata.ExtractorConfig{
		LookbackDays:      cfg.Source.LookbackDays,
		Concurrency:       cfg.Source.Concurrency,
		RequestsPerSecond: cfg.Source.RequestsPerSecond,
	})
	transformer := dataprocessing.NewTransformer(dataprocessing.CleanOptions{
		AdjustPrices: cfg.Source.AdjustPrices,
	}, reporter, a.Logger)

	stores, err := exporter.OpenStores(ctx, cfg.Sink, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to open stores: %w", err)
	}
	a.Stores = stores
	loader := exporter.NewLoader(stores.List, reporter, metrics, a.Logger)

	stages := []pipeline.Stage{
		pipeline.NewExtractStage(extractor),
		pipeline.NewTransformStage(transformer),
		pipeline.NewLoadStage(loader, pipeline.LoadOptions{
			SilverTable: cfg.Sink.SilverTable,
			GoldTable:   cfg.Sink.GoldTable,
			WriteSilver: cfg.Sink.WriteSilver,
		}, a.Logger),
	}
	a.Runner = pipeline.NewRunner(stages, cfg.Source.Tickers, a.Logger,
		pipeline.WithTracer(a.OTelProviders.Tracer),
		pipeline.WithMetrics(metrics),
	)

	a.RunService = services.NewRunService(a.Runner, cfg.Server.RunTimeout, a.Logger)
	a.HealthService = services.NewHealthService(a.RunService)
	return nil
}

// setupRouter configures the HTTP router with all routes
func (a *Application) setupRouter() {
	r := chi.NewRouter()
	errHandler := apperrors.NewErrorHandler(a.Logger, false)

	// RequestID → RealIP → OTel → logging/recovery → security headers
	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)

	otelMiddleware, err := customMiddleware.NewOTelMiddleware(a.OTelProviders.Tracer, a.OTelProviders.Meter, a.Logger)
	if err != nil {
		a.Logger.Error("Failed to create OpenTelemetry middleware", slog.String("error", err.Error()))
	} else {
		r.Use(otelMiddleware.Handler)
	}
	r.Use(apperrors.NewErrorMiddleware(errHandler, a.Logger).Handler)
	r.Use(customMiddleware.SecurityHeaders)

	r.NotFound(errHandler.NotFound)
	r.MethodNotAllowed(errHandler.MethodNotAllowed)

	r.Group(func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))

		healthHandler := handlers.NewHealthHandler(a.HealthService, a.Logger)
		r.Get("/healthz", healthHandler.HealthCheck)
		r.Get("/version", healthHandler.Version)

		runHandler := handlers.NewRunHandler(a.RunService, errHandler, a.Logger)
		runHandler.Register(r, customMiddleware.APIKeyAuth(a.Logger, a.Config.Server.APIKey))
	})

	if a.Config.Telemetry.MetricsEnabled {
		r.Handle("/metrics", a.OTelProviders.MetricsHandler())
	}

	a.Router = r
}

// createServer creates the HTTP server
func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:      a.Router,
		ReadTimeout:  a.Config.Server.ReadTimeout,
		WriteTimeout: a.Config.Server.WriteTimeout,
		IdleTimeout:  a.Config.Server.IdleTimeout,
	}
}

// RunOnce executes a single run through the run service
func (a *Application) RunOnce(ctx context.Context) (*pipeline.RunReport, error) {
	return a.RunService.Trigger(ctx)
}

// PushMetrics sends the run metrics to the configured Pushgateway, if any
func (a *Application) PushMetrics(ctx context.Context) error {
	return a.OTelProviders.PushMetrics(ctx, a.Config.Telemetry.PushgatewayURL, a.Config.Telemetry.JobName)
}

// Start starts the HTTP server in the background. cancel is called if the
// listener fails.
func (a *Application) Start(ctx context.Context, cancel context.CancelFunc) error {
	a.Logger.InfoContext(ctx, "Starting application",
		slog.String("name", AppName),
		slog.String("version", contracts.Version),
		slog.Int("port", a.Config.Server.Port),
		slog.String("level", a.Config.Logging.Level),
		slog.Bool("auth_enabled", a.Config.Server.APIKey != ""))

	go func() {
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.ErrorContext(ctx, "Server error", slog.String("error", err.Error()))
			cancel()
		}
	}()

	a.Logger.InfoContext(ctx, "Application started successfully",
		slog.String("address", fmt.Sprintf("http://localhost:%d", a.Config.Server.Port)))
	return nil
}

// Stop gracefully stops the server and releases resources
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "Shutting down application")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	var errs []error
	if a.Server != nil {
		if err := a.Server.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("server shutdown error: %w", err))
		}
	}
	if err := a.Close(shutdownCtx); err != nil {
		errs = append(errs, err)
	}

	a.Logger.InfoContext(ctx, "Application shutdown complete")
	return errors.Join(errs...)
}

// Close releases stores and flushes telemetry without touching the server
func (a *Application) Close(ctx context.Context) error {
	var errs []error
	if a.Stores != nil {
		if err := a.Stores.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close stores: %w", err))
		}
	}
	if err := a.shutdownTelemetry(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (a *Application) shutdownTelemetry(ctx context.Context) error {
	if a.OTelProviders == nil {
		return nil
	}
	if err := a.OTelProviders.Shutdown(ctx); err != nil {
		a.Logger.ErrorContext(ctx, "Error shutting down OpenTelemetry", slog.String("error", err.Error()))
		return err
	}
	return nil
}

// Run serves until interrupted
func (a *Application) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	if err := a.Start(ctx, cancel); err != nil {
		return err
	}

	select {
	case <-sigChan:
		a.Logger.InfoContext(ctx, "Received interrupt signal")
	case <-ctx.Done():
		a.Logger.WarnContext(ctx, "Server stopped unexpectedly")
	}

	// ctx may already be cancelled; shutdown gets its own deadline
	return a.Stop(context.WithoutCancel(ctx))
}
