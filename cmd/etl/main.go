// Command etl runs the daily quotes pipeline once and exits. The exit code is
// 0 when every table was replaced and 1 otherwise, so a cron or workflow
// scheduler can alert on it.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"marketpulse/internal/app"
	"marketpulse/internal/config"
	"marketpulse/internal/infrastructure"
	"marketpulse/pkg/contracts"
)

const (
	exitOK     = 0
	exitFailed = 1
	exitUsage  = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout)
	stop()
	os.Exit(code)
}

type options struct {
	configPath  string
	tickers     string
	printReport bool
	showVersion bool
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var opts options
	fs := flag.NewFlagSet("etl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.configPath, "config", "", "path to the YAML config file (defaults to marketpulse.yaml or configs/marketpulse.yaml)")
	fs.StringVar(&opts.tickers, "tickers", "", "comma separated tickers overriding the configured list")
	fs.BoolVar(&opts.printReport, "report", false, "print the run report as JSON on stdout")
	fs.BoolVar(&opts.showVersion, "version", false, "print the version and exit")
	err := fs.Parse(args)
	return opts, err
}

func run(ctx context.Context, args []string, stdout io.Writer) int {
	opts, err := parseFlags(args, os.Stderr)
	if err != nil {
		return exitUsage
	}
	if opts.showVersion {
		fmt.Fprintln(stdout, contracts.GetFullVersionString())
		return exitOK
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		slog.Error("Failed to load configuration", slog.String("error", err.Error()))
		return exitFailed
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		slog.Error("Failed to initialize logger", slog.String("error", err.Error()))
		return exitFailed
	}
	defer infrastructure.CloseLogFile()

	application, err := app.NewApplication(ctx, cfg, logger)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to initialize application", slog.String("error", err.Error()))
		return exitFailed
	}

	report, runErr := application.RunOnce(ctx)

	// the run context may be cancelled already; flushing gets its own budget
	flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
	defer cancel()
	if err := application.PushMetrics(flushCtx); err != nil {
		logger.WarnContext(flushCtx, "Failed to push metrics", slog.String("error", err.Error()))
	}
	if err := application.Close(flushCtx); err != nil {
		logger.WarnContext(flushCtx, "Failed to release resources", slog.String("error", err.Error()))
	}

	if report != nil && opts.printReport {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			logger.WarnContext(flushCtx, "Failed to print report", slog.String("error", err.Error()))
		}
	}

	if runErr != nil {
		logger.ErrorContext(ctx, "Run failed", slog.String("error", runErr.Error()))
		return exitFailed
	}
	return exitOK
}

func loadConfig(opts options) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	if opts.tickers == "" {
		return cfg, nil
	}
	cfg.Source.Tickers = strings.Split(opts.tickers, ",")
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid -tickers: %w", err)
	}
	return cfg, nil
}
