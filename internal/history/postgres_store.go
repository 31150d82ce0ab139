package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/loticredit/loticredit/internal/pagination"
	"github.com/loticredit/loticredit/internal/score"
)

// Compile-time check that PostgresStore implements Store.
var _ Store = (*PostgresStore)(nil)

// PostgresStore implements Store backed by PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed snapshot store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the score_snapshots table if it doesn't exist.
// Production schemas are managed by goose; this is for local bootstrapping.
func (p *PostgresStore) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS score_snapshots (
			id           VARCHAR(64) PRIMARY KEY,
			consumer_id  VARCHAR(64) NOT NULL,
			factors      JSONB NOT NULL,
			score        INTEGER NOT NULL CHECK (score BETWEEN 300 AND 850),
			rating       VARCHAR(16) NOT NULL,
			created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_score_snapshots_consumer
			ON score_snapshots (consumer_id, created_at DESC, id DESC);
	`)
	return err
}

func (p *PostgresStore) Create(ctx context.Context, snap *Snapshot) error {
	factors, err := json.Marshal(snap.Factors)
	if err != nil {
		return fmt.Errorf("encode factors: %w", err)
	}

	_, err = p.db.ExecContext(ctx, `
		INSERT INTO score_snapshots (id, consumer_id, factors, score, rating, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, snap.ID, snap.ConsumerID, factors, snap.Score, string(snap.Rating), snap.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

func (p *PostgresStore) Latest(ctx context.Context, consumerID string) (*Snapshot, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT id, consumer_id, factors, score, rating, created_at
		FROM score_snapshots
		WHERE consumer_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`, consumerID)

	snap, err := scanSnapshot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("latest snapshot: %w", err)
	}
	return snap, nil
}

func (p *PostgresStore) List(ctx context.Context, consumerID string, limit int, after *pagination.Cursor) ([]*Snapshot, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if after == nil {
		rows, err = p.db.QueryContext(ctx, `
			SELECT id, consumer_id, factors, score, rating, created_at
			FROM score_snapshots
			WHERE consumer_id = $1
			ORDER BY created_at DESC, id DESC
			LIMIT $2
		`, consumerID, limit)
	} else {
		rows, err = p.db.QueryContext(ctx, `
			SELECT id, consumer_id, factors, score, rating, created_at
			FROM score_snapshots
			WHERE consumer_id = $1 AND (created_at, id) < ($2, $3)
			ORDER BY created_at DESC, id DESC
			LIMIT $4
		`, consumerID, after.CreatedAt, after.ID, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*Snapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(row scanner) (*Snapshot, error) {
	var (
		snap    Snapshot
		factors []byte
		rating  string
	)
	if err := row.Scan(&snap.ID, &snap.ConsumerID, &factors, &snap.Score, &rating, &snap.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(factors, &snap.Factors); err != nil {
		return nil, fmt.Errorf("decode factors: %w", err)
	}
	snap.Rating = score.Rating(rating)
	snap.CreatedAt = snap.CreatedAt.UTC()
	return &snap, nil
}
