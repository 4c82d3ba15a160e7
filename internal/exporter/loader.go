package exporter

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	apperrors "marketpulse/internal/errors"
	"marketpulse/internal/reporting"
	"marketpulse/pkg/contracts/domain"
)

// RowRecorder receives the number of rows written per table
type RowRecorder interface {
	RecordRows(ctx context.Context, target, table string, rows int)
}

// Loader writes tables to every configured store
type Loader struct {
	stores   []TableStore
	reporter reporting.Reporter
	rows     RowRecorder
	logger   *slog.Logger
}

// NewLoader creates a loader. rows may be nil.
func NewLoader(stores []TableStore, reporter reporting.Reporter, rows RowRecorder, logger *slog.Logger) *Loader {
	if reporter == nil {
		reporter = reporting.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{stores: stores, reporter: reporter, rows: rows, logger: logger}
}

// Stores returns the configured stores in write order
func (l *Loader) Stores() []TableStore {
	return l.stores
}

// Load replaces tables in each store, in store order then table order. The
// first failure stops the load and is returned as a storage error.
func (l *Loader) Load(ctx context.Context, tables ...domain.Table) error {
	if len(l.stores) == 0 {
		return apperrors.NewConfigError("no destination store configured", nil)
	}
	for _, t := range tables {
		if err := t.Validate(); err != nil {
			return apperrors.NewAppError(apperrors.ErrTypeValidation, fmt.Sprintf("table %s is malformed", t.Name), err)
		}
	}

	for _, store := range l.stores {
		for _, t := range tables {
			start := time.Now()
			if err := store.ReplaceTable(ctx, t); err != nil {
				l.logger.ErrorContext(ctx, "table replace failed",
					slog.String("target", store.Name()),
					slog.String("table", t.Name),
					slog.String("error", err.Error()))
				return apperrors.NewStorageError(
					fmt.Sprintf("failed to replace %s in %s", t.Name, store.Name()), err).
					WithContext("target", store.Name()).
					WithContext("table", t.Name)
			}

			l.reporter.Record(ctx, reporting.EventTableReplaced,
				slog.String("target", store.Name()),
				slog.String("table", t.Name),
				slog.Int("rows", len(t.Rows)))
			if l.rows != nil {
				l.rows.RecordRows(ctx, store.Name(), t.Name, len(t.Rows))
			}
			l.logger.InfoContext(ctx, "table replaced",
				slog.String("target", store.Name()),
				slog.String("table", t.Name),
				slog.Int("rows", len(t.Rows)),
				slog.Duration("duration", time.Since(start)))
		}
	}
	return nil
}
