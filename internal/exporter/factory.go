package exporter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"marketpulse/internal/config"
)

// Stores is the set of stores built from configuration
type Stores struct {
	List    []TableStore
	closers []io.Closer
}

// Close releases database and redis connections
func (s *Stores) Close() error {
	var errs []error
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// OpenStores builds one store per configured target, in configured order
func OpenStores(ctx context.Context, cfg config.SinkConfig, logger *slog.Logger) (*Stores, error) {
	stores := &Stores{}
	for _, target := range cfg.Targets {
		store, err := openStore(ctx, target, cfg, logger)
		if err != nil {
			stores.Close()
			return nil, fmt.Errorf("target %s: %w", target, err)
		}
		stores.List = append(stores.List, store)
		if c, ok := store.(io.Closer); ok {
			stores.closers = append(stores.closers, c)
		}
	}
	return stores, nil
}

func openStore(ctx context.Context, target string, cfg config.SinkConfig, logger *slog.Logger) (TableStore, error) {
	logger = logger.With(slog.String("target", target))
	switch target {
	case config.TargetSheets:
		service, err := NewSheetsService(ctx, cfg.CredentialsFile, cfg.SheetsEndpoint)
		if err != nil {
			return nil, err
		}
		return NewSheetsStore(service, cfg.SpreadsheetID, logger), nil
	case config.TargetWorkbook:
		return NewWorkbookStore(cfg.WorkbookPath, logger), nil
	case config.TargetSQL:
		store, err := OpenSQLStore(ctx, cfg.SQLDriver, cfg.SQLDSN, logger)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.TargetRedis:
		client, err := ConnectRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, err
		}
		return NewRedisStore(client, cfg.RedisPrefix, logger), nil
	case config.TargetCSV:
		return NewCSVStore(cfg.OutputDir, logger), nil
	case config.TargetParquet:
		return NewParquetStore(cfg.OutputDir, logger), nil
	default:
		return nil, fmt.Errorf("unknown target %q", target)
	}
}
