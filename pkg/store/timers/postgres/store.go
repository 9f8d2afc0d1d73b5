// Package postgres provides a PostgreSQL-backed timer store.
package postgres

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oakmund/hearth/pkg/store/timers"
)

// Compile-time assertion that Store implements timers.Store.
var _ timers.Store = (*Store)(nil)

const ddlTimers = `
CREATE TABLE IF NOT EXISTS timers (
    id         TEXT PRIMARY KEY,
    label      TEXT NOT NULL DEFAULT '',
    fire_at    TIMESTAMPTZ NOT NULL,
    created_at TIMESTAMPTZ NOT NULL
)`

// Store is a PostgreSQL-backed timers.Store. All operations are safe for
// concurrent use; PopExpired relies on DELETE ... RETURNING for atomicity so
// the announcer and the turn loop never double-announce a timer.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore connects to the PostgreSQL database at dsn and ensures the timers
// table exists.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("timer store: parse dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("timer store: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("timer store: ping: %w", err)
	}
	if _, err := pool.Exec(ctx, ddlTimers); err != nil {
		pool.Close()
		return nil, fmt.Errorf("timer store: migrate: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Create implements timers.Store.
func (s *Store) Create(ctx context.Context, rec timers.Record) error {
	const q = `INSERT INTO timers (id, label, fire_at, created_at) VALUES ($1, $2, $3, $4)`
	if _, err := s.pool.Exec(ctx, q, rec.ID, rec.Label, rec.FireAt, rec.CreatedAt); err != nil {
		return fmt.Errorf("timer store: create: %w", err)
	}
	return nil
}

// List implements timers.Store.
func (s *Store) List(ctx context.Context) ([]timers.Record, error) {
	const q = `SELECT id, label, fire_at, created_at FROM timers ORDER BY fire_at`
	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("timer store: list: %w", err)
	}
	return collectRecords(rows)
}

// Update implements timers.Store.
func (s *Store) Update(ctx context.Context, id string, fireAt time.Time) error {
	const q = `UPDATE timers SET fire_at = $2 WHERE id = $1`
	tag, err := s.pool.Exec(ctx, q, id, fireAt)
	if err != nil {
		return fmt.Errorf("timer store: update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("timer store: no timer with id %q", id)
	}
	return nil
}

// Cancel implements timers.Store.
func (s *Store) Cancel(ctx context.Context, id string) error {
	const q = `DELETE FROM timers WHERE id = $1`
	tag, err := s.pool.Exec(ctx, q, id)
	if err != nil {
		return fmt.Errorf("timer store: cancel: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("timer store: no timer with id %q", id)
	}
	return nil
}

// PopExpired implements timers.Store.
func (s *Store) PopExpired(ctx context.Context, now time.Time) ([]timers.Record, error) {
	const q = `
		DELETE FROM timers
		WHERE  fire_at <= $1
		RETURNING id, label, fire_at, created_at`
	rows, err := s.pool.Query(ctx, q, now)
	if err != nil {
		return nil, fmt.Errorf("timer store: pop expired: %w", err)
	}
	recs, err := collectRecords(rows)
	if err != nil {
		return nil, err
	}
	// RETURNING has no defined order; due timers are announced earliest first.
	sort.Slice(recs, func(i, j int) bool { return recs[i].FireAt.Before(recs[j].FireAt) })
	return recs, nil
}

func collectRecords(rows pgx.Rows) ([]timers.Record, error) {
	defer rows.Close()

	var out []timers.Record
	for rows.Next() {
		var r timers.Record
		if err := rows.Scan(&r.ID, &r.Label, &r.FireAt, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("timer store: scan: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("timer store: iterate: %w", err)
	}
	return out, nil
}
