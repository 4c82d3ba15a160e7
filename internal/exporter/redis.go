package exporter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"marketpulse/pkg/contracts/domain"
)

// RedisStore keeps each table as a list of JSON row objects under
// <prefix><table>, with column metadata in the hash <prefix><table>:meta
type RedisStore struct {
	client *redis.Client
	prefix string
	logger *slog.Logger
}

// NewRedisStore creates a redis store on an existing client
func NewRedisStore(client *redis.Client, prefix string, logger *slog.Logger) *RedisStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisStore{client: client, prefix: prefix, logger: logger}
}

// ConnectRedis opens a client and verifies the connection
func ConnectRedis(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		MaxRetries:   2,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	return client, nil
}

// Name implements TableStore
func (s *RedisStore) Name() string { return "redis" }

// Close closes the client
func (s *RedisStore) Close() error { return s.client.Close() }

// Key returns the list key of a table
func (s *RedisStore) Key(table string) string {
	return s.prefix + table
}

// ReplaceTable fills a staging list and renames it over the live key in one
// MULTI/EXEC
func (s *RedisStore) ReplaceTable(ctx context.Context, table domain.Table) error {
	header := table.Header()
	rows := make([]any, 0, len(table.Rows))
	for i, cells := range table.Rows {
		obj := make(map[string]any, len(header))
		for j, name := range header {
			obj[name] = cells[j]
		}
		data, err := json.Marshal(obj)
		if err != nil {
			return fmt.Errorf("failed to encode row %d: %w", i, err)
		}
		rows = append(rows, string(data))
	}

	key := s.Key(table.Name)
	staging := key + ":staging"
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, staging)
		if len(rows) > 0 {
			pipe.RPush(ctx, staging, rows...)
			pipe.Rename(ctx, staging, key)
		} else {
			pipe.Del(ctx, key)
		}
		pipe.HSet(ctx, key+":meta",
			"columns", strings.Join(header, ","),
			"rows", len(rows),
			"updated_at", time.Now().UTC().Format(time.RFC3339))
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to replace %s: %w", key, err)
	}

	s.logger.DebugContext(ctx, "redis table replaced",
		slog.String("key", key),
		slog.Int("rows", len(rows)))
	return nil
}
