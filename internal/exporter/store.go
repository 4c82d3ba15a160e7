package exporter

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"marketpulse/pkg/contracts/domain"
)

// TableStore replaces whole tables in one destination
type TableStore interface {
	// Name identifies the destination in logs and metrics
	Name() string

	// ReplaceTable atomically swaps all rows of table.Name for table.Rows.
	// On error the previous contents must remain readable.
	ReplaceTable(ctx context.Context, table domain.Table) error
}

// writeFileAtomic writes through a temp file in the target directory and
// renames it over path
func writeFileAtomic(path string, write func(f *os.File) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
