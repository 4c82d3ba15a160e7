package exporter

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"marketpulse/pkg/contracts/domain"
)

// SQLStore replaces tables in a SQLite or PostgreSQL database
type SQLStore struct {
	db     *sql.DB
	driver string
	logger *slog.Logger
}

// OpenSQLStore opens a database with the sqlite or pgx driver
func OpenSQLStore(ctx context.Context, driver, dsn string, logger *slog.Logger) (*SQLStore, error) {
	switch driver {
	case "sqlite", "pgx":
	default:
		return nil, fmt.Errorf("unsupported sql driver: %s", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", driver, err)
	}
	if driver == "sqlite" {
		// SQLite allows a single writer
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to %s database: %w", driver, err)
	}
	return NewSQLStore(db, driver, logger), nil
}

// NewSQLStore wraps an open database
func NewSQLStore(db *sql.DB, driver string, logger *slog.Logger) *SQLStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLStore{db: db, driver: driver, logger: logger}
}

// Name implements TableStore
func (s *SQLStore) Name() string { return "sql" }

// DB exposes the underlying handle
func (s *SQLStore) DB() *sql.DB { return s.db }

// Close closes the database
func (s *SQLStore) Close() error { return s.db.Close() }

// ReplaceTable drops, recreates and fills the table inside one transaction
func (s *SQLStore) ReplaceTable(ctx context.Context, table domain.Table) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	name := quoteIdent(table.Name)
	if _, err = tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+name); err != nil {
		return fmt.Errorf("failed to drop %s: %w", table.Name, err)
	}
	if _, err = tx.ExecContext(ctx, createTableSQL(table)); err != nil {
		return fmt.Errorf("failed to create %s: %w", table.Name, err)
	}

	if len(table.Rows) > 0 {
		stmt, perr := tx.PrepareContext(ctx, s.insertSQL(table))
		if perr != nil {
			err = perr
			return fmt.Errorf("failed to prepare insert into %s: %w", table.Name, err)
		}
		defer stmt.Close()

		for i, row := range table.Rows {
			if _, err = stmt.ExecContext(ctx, row...); err != nil {
				return fmt.Errorf("failed to insert row %d into %s: %w", i, table.Name, err)
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit %s: %w", table.Name, err)
	}

	s.logger.DebugContext(ctx, "sql table replaced",
		slog.String("driver", s.driver),
		slog.String("table", table.Name),
		slog.Int("rows", len(table.Rows)))
	return nil
}

func createTableSQL(table domain.Table) string {
	cols := make([]string, len(table.Columns))
	for i, c := range table.Columns {
		cols[i] = quoteIdent(c.Name) + " " + sqlType(c.Kind)
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(table.Name), strings.Join(cols, ", "))
}

func (s *SQLStore) insertSQL(table domain.Table) string {
	cols := make([]string, len(table.Columns))
	marks := make([]string, len(table.Columns))
	for i, c := range table.Columns {
		cols[i] = quoteIdent(c.Name)
		if s.driver == "pgx" {
			marks[i] = fmt.Sprintf("$%d", i+1)
		} else {
			marks[i] = "?"
		}
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(table.Name), strings.Join(cols, ", "), strings.Join(marks, ", "))
}

func sqlType(k domain.Kind) string {
	switch k {
	case domain.KindFloat:
		return "DOUBLE PRECISION"
	case domain.KindInt:
		return "BIGINT"
	default:
		return "TEXT"
	}
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
