// Package postgres provides a PostgreSQL-backed history store.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oakmund/hearth/pkg/store/history"
)

// Compile-time assertion that Store implements history.Store.
var _ history.Store = (*Store)(nil)

const ddlTurns = `
CREATE TABLE IF NOT EXISTS turns (
    id          BIGSERIAL PRIMARY KEY,
    ts          TIMESTAMPTZ NOT NULL,
    user_input  TEXT NOT NULL,
    response    TEXT NOT NULL,
    invocations JSONB NOT NULL DEFAULT '[]'
)`

// Store is a PostgreSQL-backed history.Store. All operations are safe for
// concurrent use.
type Store struct {
	pool *pgxpool.Pool
	keep int
}

// Option configures a [Store].
type Option func(*Store)

// WithKeep overrides the retention window. Defaults to history.DefaultKeep.
func WithKeep(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.keep = n
		}
	}
}

// NewStore connects to the PostgreSQL database at dsn and ensures the turns
// table exists.
func NewStore(ctx context.Context, dsn string, opts ...Option) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("history store: parse dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("history store: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("history store: ping: %w", err)
	}
	if _, err := pool.Exec(ctx, ddlTurns); err != nil {
		pool.Close()
		return nil, fmt.Errorf("history store: migrate: %w", err)
	}

	s := &Store{pool: pool, keep: history.DefaultKeep}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Save implements history.Store. The retention prune runs in the same call so
// the table never grows past the window by more than the in-flight insert.
func (s *Store) Save(ctx context.Context, turn history.Turn) error {
	inv, err := json.Marshal(turn.Invocations)
	if err != nil {
		return fmt.Errorf("history store: encode invocations: %w", err)
	}

	const q = `INSERT INTO turns (ts, user_input, response, invocations) VALUES ($1, $2, $3, $4)`
	if _, err := s.pool.Exec(ctx, q, turn.Timestamp, turn.UserInput, turn.Response, inv); err != nil {
		return fmt.Errorf("history store: save turn: %w", err)
	}

	const prune = `
		DELETE FROM turns
		WHERE  id NOT IN (SELECT id FROM turns ORDER BY ts DESC, id DESC LIMIT $1)`
	if _, err := s.pool.Exec(ctx, prune, s.keep); err != nil {
		return fmt.Errorf("history store: prune: %w", err)
	}
	return nil
}

// Recent implements history.Store.
func (s *Store) Recent(ctx context.Context, limit int) ([]history.Turn, error) {
	if limit <= 0 || limit > s.keep {
		limit = s.keep
	}
	const q = `
		SELECT ts, user_input, response, invocations
		FROM   (SELECT * FROM turns ORDER BY ts DESC, id DESC LIMIT $1) latest
		ORDER  BY ts, id`

	rows, err := s.pool.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("history store: recent: %w", err)
	}
	return collectTurns(rows)
}

// Search implements history.Store. It matches the query case-insensitively
// against the user input and the response.
func (s *Store) Search(ctx context.Context, query string, limit int) ([]history.Turn, error) {
	if limit <= 0 || limit > s.keep {
		limit = s.keep
	}
	const q = `
		SELECT ts, user_input, response, invocations
		FROM   turns
		WHERE  user_input ILIKE '%' || $1 || '%'
		   OR  response   ILIKE '%' || $1 || '%'
		ORDER  BY ts, id
		LIMIT  $2`

	rows, err := s.pool.Query(ctx, q, query, limit)
	if err != nil {
		return nil, fmt.Errorf("history store: search: %w", err)
	}
	return collectTurns(rows)
}

func collectTurns(rows pgx.Rows) ([]history.Turn, error) {
	defer rows.Close()

	var out []history.Turn
	for rows.Next() {
		var (
			t   history.Turn
			inv []byte
		)
		if err := rows.Scan(&t.Timestamp, &t.UserInput, &t.Response, &inv); err != nil {
			return nil, fmt.Errorf("history store: scan turn: %w", err)
		}
		if len(inv) > 0 {
			if err := json.Unmarshal(inv, &t.Invocations); err != nil {
				return nil, fmt.Errorf("history store: decode invocations: %w", err)
			}
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history store: iterate turns: %w", err)
	}
	return out, nil
}
