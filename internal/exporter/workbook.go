package exporter

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sync"

	"github.com/xuri/excelize/v2"

	"marketpulse/pkg/contracts/domain"
)

const defaultSheet = "Sheet1"

// WorkbookStore keeps each table as a sheet of a single xlsx file
type WorkbookStore struct {
	path   string
	mu     sync.Mutex
	logger *slog.Logger
}

// NewWorkbookStore creates a workbook store for path
func NewWorkbookStore(path string, logger *slog.Logger) *WorkbookStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &WorkbookStore{path: path, logger: logger}
}

// Name implements TableStore
func (s *WorkbookStore) Name() string { return "workbook" }

// ReplaceTable rebuilds the sheet in memory and renames the saved file over
// the previous workbook
func (s *WorkbookStore) ReplaceTable(ctx context.Context, table domain.Table) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, created, err := s.open()
	if err != nil {
		return err
	}
	defer f.Close()

	if err := resetSheet(f, table.Name); err != nil {
		return err
	}
	if created && table.Name != defaultSheet {
		if err := f.DeleteSheet(defaultSheet); err != nil {
			return fmt.Errorf("failed to drop default sheet: %w", err)
		}
		idx, err := f.GetSheetIndex(table.Name)
		if err != nil {
			return err
		}
		f.SetActiveSheet(idx)
	}

	if err := writeSheetRow(f, table.Name, 1, stringsToCells(table.Header())); err != nil {
		return err
	}
	for i, row := range table.Rows {
		if err := writeSheetRow(f, table.Name, i+2, row); err != nil {
			return err
		}
	}

	if err := writeFileAtomic(s.path, func(out *os.File) error {
		_, err := f.WriteTo(out)
		return err
	}); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}

	s.logger.DebugContext(ctx, "workbook sheet replaced",
		slog.String("path", s.path),
		slog.String("sheet", table.Name),
		slog.Int("rows", len(table.Rows)))
	return nil
}

func (s *WorkbookStore) open() (*excelize.File, bool, error) {
	f, err := excelize.OpenFile(s.path)
	if err == nil {
		return f, false, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return excelize.NewFile(), true, nil
	}
	return nil, false, fmt.Errorf("failed to open workbook %s: %w", s.path, err)
}

// resetSheet leaves an empty sheet called name in f
func resetSheet(f *excelize.File, name string) error {
	idx, err := f.GetSheetIndex(name)
	if err != nil {
		return fmt.Errorf("invalid sheet name %q: %w", name, err)
	}
	if idx == -1 {
		_, err := f.NewSheet(name)
		return err
	}

	// A workbook cannot lose its last sheet, so build the replacement first
	tmp := name + "~"
	if _, err := f.NewSheet(tmp); err != nil {
		return err
	}
	if err := f.DeleteSheet(name); err != nil {
		return err
	}
	return f.SetSheetName(tmp, name)
}

func writeSheetRow(f *excelize.File, sheet string, rowNum int, cells []any) error {
	cell, err := excelize.CoordinatesToCellName(1, rowNum)
	if err != nil {
		return err
	}
	values := make([]any, len(cells))
	for i, c := range cells {
		if c == nil {
			values[i] = ""
			continue
		}
		values[i] = c
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("failed to write row %d: %w", rowNum, err)
	}
	return nil
}

func stringsToCells(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}
