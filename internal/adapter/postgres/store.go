// Package postgres persists the registered process items of each user, one
// JSON document per user.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alexandrecuer/postprocess/internal/process"
)

// DBTX is the subset of pgxpool.Pool and pgx.Tx the store runs on.
type DBTX interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	QueryRow(context.Context, string, ...any) pgx.Row
}

const schema = `CREATE TABLE IF NOT EXISTS postprocess (
	userid INTEGER PRIMARY KEY,
	data   JSONB   NOT NULL DEFAULT '[]'::jsonb
)`

// Each statement updates the user's row on its own, so concurrent appends
// and removals never overwrite each other.
const (
	selectList = `SELECT data FROM postprocess WHERE userid = $1`
	appendItem = `INSERT INTO postprocess (userid, data) VALUES ($1, $2)
ON CONFLICT (userid) DO UPDATE SET data = postprocess.data || EXCLUDED.data`
	removeItems = `UPDATE postprocess SET data = COALESCE(
	(SELECT jsonb_agg(e) FROM jsonb_array_elements(data) AS e WHERE NOT (e->>'id' = ANY($2))),
	'[]'::jsonb)
WHERE userid = $1`
)

// ProcessStore implements process.ListStore.
type ProcessStore struct {
	db DBTX
}

// NewProcessStore creates a ProcessStore on db.
func NewProcessStore(db DBTX) *ProcessStore {
	return &ProcessStore{db: db}
}

// Connect opens a pool on url and checks it answers.
func Connect(ctx context.Context, url string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// EnsureSchema creates the process list table.
func (s *ProcessStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create postprocess table: %w", err)
	}
	return nil
}

// Load implements process.ListStore. A user with no row has no items.
func (s *ProcessStore) Load(ctx context.Context, userID int) ([]process.Item, error) {
	var data []byte
	err := s.db.QueryRow(ctx, selectList, userID).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select process list of user %d: %w", userID, err)
	}

	var items []process.Item
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("decode process list of user %d: %w", userID, err)
	}
	return items, nil
}

// Append implements process.ListStore.
func (s *ProcessStore) Append(ctx context.Context, userID int, item process.Item) error {
	data, err := json.Marshal([]process.Item{item})
	if err != nil {
		return fmt.Errorf("encode process item: %w", err)
	}
	if _, err := s.db.Exec(ctx, appendItem, userID, data); err != nil {
		return fmt.Errorf("append to process list of user %d: %w", userID, err)
	}
	return nil
}

// Remove implements process.ListStore.
func (s *ProcessStore) Remove(ctx context.Context, userID int, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := s.db.Exec(ctx, removeItems, userID, ids); err != nil {
		return fmt.Errorf("remove from process list of user %d: %w", userID, err)
	}
	return nil
}
