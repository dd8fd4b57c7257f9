// Package clickhouse keeps the history of process runs.
package clickhouse

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"

	"github.com/alexandrecuer/postprocess/internal/process"
)

// Config holds the server settings.
type Config struct {
	Addr     string
	Database string
	Username string
	Password string
}

// Execer is the part of driver.Conn the history uses.
type Execer interface {
	Exec(ctx context.Context, query string, args ...any) error
}

const runsTable = `CREATE TABLE IF NOT EXISTS process_runs (
	finished_at    DateTime64(3, 'UTC'),
	job_id         String,
	process        LowCardinality(String),
	userid         UInt32,
	output_feed    UInt32,
	points_written UInt32,
	missing        UInt32,
	failures       UInt32,
	last_time      Int64,
	last_value     Float64,
	message        String
) ENGINE = MergeTree()
ORDER BY (process, userid, finished_at)`

const insertRun = `INSERT INTO process_runs (
	finished_at, job_id, process, userid, output_feed,
	points_written, missing, failures, last_time, last_value, message
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// RunHistory appends process results to the process_runs table.
// It implements pipeline.BatchLoader.
type RunHistory struct {
	conn   Execer
	logger *slog.Logger
}

// Open connects to ClickHouse and returns the connection.
func Open(ctx context.Context, cfg Config) (clickhouse.Conn, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		DialTimeout: 5 * time.Second,
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("connect to clickhouse: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping clickhouse: %w", err)
	}
	return conn, nil
}

// NewRunHistory creates a RunHistory on conn.
func NewRunHistory(conn Execer, logger *slog.Logger) *RunHistory {
	return &RunHistory{conn: conn, logger: logger}
}

// InitSchema creates the process_runs table.
func (h *RunHistory) InitSchema(ctx context.Context) error {
	if err := h.conn.Exec(ctx, runsTable); err != nil {
		return fmt.Errorf("create process_runs table: %w", err)
	}
	return nil
}

// LoadBatch implements pipeline.BatchLoader. A missing last value is stored
// as NaN.
func (h *RunHistory) LoadBatch(ctx context.Context, results []process.Result) error {
	for _, r := range results {
		last := math.NaN()
		if r.LastValue != nil {
			last = *r.LastValue
		}
		err := h.conn.Exec(ctx, insertRun,
			r.FinishedAt,
			r.JobID,
			r.Process,
			uint32(r.UserID),
			uint32(r.Output),
			uint32(r.PointsWritten),
			uint32(r.Missing),
			uint32(r.Failures),
			r.LastTime,
			last,
			r.Message,
		)
		if err != nil {
			return fmt.Errorf("insert run %s: %w", r.JobID, err)
		}
	}
	h.logger.Debug("run history written", "count", len(results))
	return nil
}
