package pipeline

import (
	"context"
	"log/slog"

	"marketpulse/internal/dataprocessing"
	"marketpulse/internal/marketdata"
	"marketpulse/pkg/contracts/domain"
)

// Stage IDs
const (
	StageExtract   = "extract"
	StageTransform = "transform"
	StageLoad      = "load"
)

// Stage is one step of a run
type Stage interface {
	ID() string
	Name() string
	Execute(ctx context.Context, state *RunState) error
}

// Extractor produces the Bronze layer
type Extractor interface {
	Extract(ctx context.Context, tickers []string) (*marketdata.Bronze, error)
}

// Transformer produces the Silver and Gold layers
type Transformer interface {
	Transform(ctx context.Context, tickers []string, series map[string][]domain.RawBar) (*dataprocessing.Result, error)
}

// Loader writes tables to the destination stores
type Loader interface {
	Load(ctx context.Context, tables ...domain.Table) error
}

// ExtractStage fetches raw bars for every configured ticker
type ExtractStage struct {
	extractor Extractor
}

// NewExtractStage creates the extract stage
func NewExtractStage(extractor Extractor) *ExtractStage {
	return &ExtractStage{extractor: extractor}
}

func (s *ExtractStage) ID() string   { return StageExtract }
func (s *ExtractStage) Name() string { return "Extract daily bars" }

// Execute stores the Bronze layer in state
func (s *ExtractStage) Execute(ctx context.Context, state *RunState) error {
	bronze, err := s.extractor.Extract(ctx, state.Tickers)
	if err != nil {
		return err
	}
	state.Bronze = bronze

	step := state.Step(StageExtract)
	step.SetMetadata("raw_rows", bronze.Rows())
	step.SetMetadata("window_from", bronze.Window.From.Format(domain.DateFormat))
	step.SetMetadata("window_to", bronze.Window.To.Format(domain.DateFormat))
	return nil
}

// TransformStage cleans and aggregates the Bronze layer
type TransformStage struct {
	transformer Transformer
}

// NewTransformStage creates the transform stage
func NewTransformStage(transformer Transformer) *TransformStage {
	return &TransformStage{transformer: transformer}
}

func (s *TransformStage) ID() string   { return StageTransform }
func (s *TransformStage) Name() string { return "Build silver and gold" }

// Execute stores the Silver and Gold layers in state
func (s *TransformStage) Execute(ctx context.Context, state *RunState) error {
	if state.Bronze == nil {
		return NewInvalidStateError(StageTransform, "bronze layer missing")
	}
	result, err := s.transformer.Transform(ctx, state.Tickers, state.Bronze.Series)
	if err != nil {
		return err
	}
	state.Result = result

	step := state.Step(StageTransform)
	step.SetMetadata("silver_rows", len(result.Silver))
	step.SetMetadata("gold_rows", len(result.Gold))
	step.SetMetadata("dropped_rows", state.Bronze.Rows()-len(result.Silver))
	return nil
}

// LoadStage replaces the destination tables
type LoadStage struct {
	loader      Loader
	silverTable string
	goldTable   string
	writeSilver bool
	logger      *slog.Logger
}

// LoadOptions names the destination tables
type LoadOptions struct {
	SilverTable string
	GoldTable   string
	WriteSilver bool
}

// NewLoadStage creates the load stage
func NewLoadStage(loader Loader, opts LoadOptions, logger *slog.Logger) *LoadStage {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoadStage{
		loader:      loader,
		silverTable: opts.SilverTable,
		goldTable:   opts.GoldTable,
		writeSilver: opts.WriteSilver,
		logger:      logger,
	}
}

func (s *LoadStage) ID() string   { return StageLoad }
func (s *LoadStage) Name() string { return "Replace destination tables" }

// Execute writes Silver (when enabled) then Gold
func (s *LoadStage) Execute(ctx context.Context, state *RunState) error {
	if state.Result == nil {
		return NewInvalidStateError(StageLoad, "transform result missing")
	}

	var tables []domain.Table
	if s.writeSilver {
		tables = append(tables, domain.SilverTable(s.silverTable, state.Result.Silver))
	} else {
		s.logger.DebugContext(ctx, "silver table disabled")
	}
	tables = append(tables, domain.GoldTable(s.goldTable, state.Result.Gold))

	if err := s.loader.Load(ctx, tables...); err != nil {
		return err
	}

	names := make([]string, len(tables))
	for i, t := range tables {
		names[i] = t.Name
	}
	state.Step(StageLoad).SetMetadata("tables", names)
	return nil
}
