package export

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/congo-pay/payments_engine/internal/account"
)

// Sink receives the final snapshot of a run in addition to the rendered report.
type Sink interface {
	Export(ctx context.Context, runID string, accounts []account.Account) error
}

// Sinks returns a sink for each non-nil backend.
func Sinks(db *pgxpool.Pool, cache *redis.Client, ttl time.Duration) []Sink {
	var out []Sink
	if cache != nil {
		out = append(out, NewRedisSink(cache, ttl))
	}
	if db != nil {
		out = append(out, NewPostgresSink(db))
	}
	return out
}

// ExportAll hands the snapshot to every sink, even after one fails.
func ExportAll(ctx context.Context, sinks []Sink, runID string, accounts []account.Account) error {
	var errs []error
	for _, s := range sinks {
		errs = append(errs, s.Export(ctx, runID, accounts))
	}
	return errors.Join(errs...)
}

// NewRunID returns an identifier tagging one export.
func NewRunID() string {
	return uuid.NewString()
}

const (
	redisAccountPrefix = "payments:v1:account:"
	redisRunKey        = "payments:v1:last_run"
)

// RedisSink publishes each account as a hash under payments:v1:account:<client>
// and the run id under payments:v1:last_run.
type RedisSink struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisSink builds a sink; a zero ttl keeps keys forever.
func NewRedisSink(client *redis.Client, ttl time.Duration) *RedisSink {
	return &RedisSink{client: client, ttl: ttl}
}

// AccountKey returns the hash key for a client.
func AccountKey(client uint16) string {
	return redisAccountPrefix + strconv.FormatUint(uint64(client), 10)
}

// Export writes all accounts in one pipeline.
func (s *RedisSink) Export(ctx context.Context, runID string, accounts []account.Account) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, acc := range accounts {
			key := AccountKey(uint16(acc.Client))
			row := Row(acc)
			pipe.HSet(ctx, key,
				"available", row[1],
				"held", row[2],
				"total", row[3],
				"locked", row[4],
				"run_id", runID,
			)
			if s.ttl > 0 {
				pipe.Expire(ctx, key, s.ttl)
			}
		}
		pipe.Set(ctx, redisRunKey, runID, s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("export snapshot to redis: %w", err)
	}
	return nil
}

const snapshotSchema = `CREATE TABLE IF NOT EXISTS account_snapshots (
    run_id      UUID        NOT NULL,
    client      INTEGER     NOT NULL,
    available   NUMERIC     NOT NULL,
    held        NUMERIC     NOT NULL,
    total       NUMERIC     NOT NULL,
    locked      BOOLEAN     NOT NULL,
    exported_at TIMESTAMPTZ NOT NULL,
    PRIMARY KEY (run_id, client)
)`

// PostgresSink upserts the snapshot into account_snapshots, creating the table
// on first use.
type PostgresSink struct {
	db *pgxpool.Pool
}

// NewPostgresSink constructs a Postgres-backed snapshot sink.
func NewPostgresSink(db *pgxpool.Pool) *PostgresSink {
	return &PostgresSink{db: db}
}

// Export writes every account in a single transaction.
func (s *PostgresSink) Export(ctx context.Context, runID string, accounts []account.Account) error {
	id, err := uuid.Parse(runID)
	if err != nil {
		return fmt.Errorf("invalid run id: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if _, err := tx.Exec(ctx, snapshotSchema); err != nil {
		return fmt.Errorf("ensure snapshot table: %w", err)
	}

	const query = `INSERT INTO account_snapshots (run_id, client, available, held, total, locked, exported_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        ON CONFLICT (run_id, client) DO UPDATE
        SET available = EXCLUDED.available, held = EXCLUDED.held, total = EXCLUDED.total,
            locked = EXCLUDED.locked, exported_at = EXCLUDED.exported_at`

	now := time.Now().UTC()
	batch := &pgx.Batch{}
	for _, acc := range accounts {
		batch.Queue(query, id, int32(acc.Client), acc.Available.Decimal(), acc.Held.Decimal(), acc.Total().Decimal(), acc.Locked, now)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("export snapshot to postgres: %w", err)
	}
	return tx.Commit(ctx)
}
