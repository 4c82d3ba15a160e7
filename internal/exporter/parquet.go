package exporter

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/parquet-go/parquet-go"

	"marketpulse/pkg/contracts/domain"
)

// ParquetStore writes each table to <dir>/<table>.parquet
type ParquetStore struct {
	dir    string
	logger *slog.Logger
}

// NewParquetStore creates a parquet store rooted at dir
func NewParquetStore(dir string, logger *slog.Logger) *ParquetStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &ParquetStore{dir: dir, logger: logger}
}

// Name implements TableStore
func (s *ParquetStore) Name() string { return "parquet" }

// Path returns the file a table is written to
func (s *ParquetStore) Path(table string) string {
	return filepath.Join(s.dir, table+".parquet")
}

// ReplaceTable implements TableStore
func (s *ParquetStore) ReplaceTable(ctx context.Context, table domain.Table) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	schema := tableSchema(table)
	index := columnIndex(schema)
	rows := make([]parquet.Row, 0, len(table.Rows))
	for _, cells := range table.Rows {
		row := make(parquet.Row, len(index))
		for j, col := range table.Columns {
			i := index[col.Name]
			if cells[j] == nil {
				row[i] = parquet.NullValue().Level(0, 0, i)
				continue
			}
			row[i] = parquet.ValueOf(cells[j]).Level(0, 1, i)
		}
		rows = append(rows, row)
	}

	path := s.Path(table.Name)
	err := writeFileAtomic(path, func(f *os.File) error {
		w := parquet.NewWriter(f, schema)
		if _, err := w.WriteRows(rows); err != nil {
			return fmt.Errorf("failed to write rows: %w", err)
		}
		return w.Close()
	})
	if err != nil {
		return err
	}

	s.logger.DebugContext(ctx, "parquet file replaced",
		slog.String("path", path),
		slog.Int("rows", len(rows)))
	return nil
}

// tableSchema maps every column to an optional leaf so nulls survive
func tableSchema(table domain.Table) *parquet.Schema {
	group := parquet.Group{}
	for _, col := range table.Columns {
		var node parquet.Node
		switch col.Kind {
		case domain.KindFloat:
			node = parquet.Leaf(parquet.DoubleType)
		case domain.KindInt:
			node = parquet.Int(64)
		default:
			node = parquet.String()
		}
		group[col.Name] = parquet.Optional(node)
	}
	return parquet.NewSchema(table.Name, group)
}

// columnIndex returns the leaf position of each column. Group fields are
// ordered by name, not by table order.
func columnIndex(schema *parquet.Schema) map[string]int {
	index := make(map[string]int)
	for i, path := range schema.Columns() {
		index[path[len(path)-1]] = i
	}
	return index
}
