package exporter

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"marketpulse/pkg/contracts/domain"
)

// CSVStore writes each table to <dir>/<table>.csv
type CSVStore struct {
	dir    string
	bom    bool
	logger *slog.Logger
}

// NewCSVStore creates a CSV store rooted at dir. The UTF-8 BOM is on by
// default so Excel detects the encoding.
func NewCSVStore(dir string, logger *slog.Logger) *CSVStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &CSVStore{dir: dir, bom: true, logger: logger}
}

// WithoutBOM disables the byte order mark
func (s *CSVStore) WithoutBOM() *CSVStore {
	s.bom = false
	return s
}

// Name implements TableStore
func (s *CSVStore) Name() string { return "csv" }

// Path returns the file a table is written to
func (s *CSVStore) Path(table string) string {
	return filepath.Join(s.dir, table+".csv")
}

// ReplaceTable implements TableStore
func (s *CSVStore) ReplaceTable(ctx context.Context, table domain.Table) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path := s.Path(table.Name)

	s.logger.DebugContext(ctx, "Writing CSV file",
		slog.String("file_path", path),
		slog.Int("record_count", len(table.Rows)))

	return writeFileAtomic(path, func(f *os.File) error {
		if s.bom {
			if _, err := f.Write([]byte{0xEF, 0xBB, 0xBF}); err != nil {
				return fmt.Errorf("failed to write BOM: %w", err)
			}
		}

		writer := csv.NewWriter(f)
		if err := writer.Write(table.Header()); err != nil {
			return fmt.Errorf("failed to write headers: %w", err)
		}

		record := make([]string, len(table.Columns))
		for i, row := range table.Rows {
			for j, cell := range row {
				record[j] = formatCell(cell)
			}
			if err := writer.Write(record); err != nil {
				return fmt.Errorf("failed to write record %d: %w", i, err)
			}
		}

		writer.Flush()
		return writer.Error()
	})
}
