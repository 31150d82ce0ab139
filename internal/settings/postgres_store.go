package settings

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// Compile-time check that PostgresStore implements Store.
var _ Store = (*PostgresStore)(nil)

// PostgresStore keeps each settings record as a JSONB document.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed settings store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the settings tables if they don't exist.
func (p *PostgresStore) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS consumer_settings (
			consumer_id  VARCHAR(64) PRIMARY KEY,
			document     JSONB NOT NULL,
			updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE TABLE IF NOT EXISTS lender_settings (
			lender_id   VARCHAR(64) PRIMARY KEY,
			document    JSONB NOT NULL,
			updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`)
	return err
}

func (p *PostgresStore) GetConsumer(ctx context.Context, consumerID string) (*ConsumerSettings, error) {
	var s ConsumerSettings
	if err := p.getDocument(ctx, `SELECT document FROM consumer_settings WHERE consumer_id = $1`, consumerID, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (p *PostgresStore) PutConsumer(ctx context.Context, s *ConsumerSettings) error {
	return p.putDocument(ctx, `
		INSERT INTO consumer_settings (consumer_id, document, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (consumer_id) DO UPDATE SET document = EXCLUDED.document, updated_at = EXCLUDED.updated_at
	`, s.ConsumerID, s, s.UpdatedAt)
}

func (p *PostgresStore) GetLender(ctx context.Context, lenderID string) (*LenderSettings, error) {
	var s LenderSettings
	if err := p.getDocument(ctx, `SELECT document FROM lender_settings WHERE lender_id = $1`, lenderID, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (p *PostgresStore) PutLender(ctx context.Context, s *LenderSettings) error {
	return p.putDocument(ctx, `
		INSERT INTO lender_settings (lender_id, document, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (lender_id) DO UPDATE SET document = EXCLUDED.document, updated_at = EXCLUDED.updated_at
	`, s.LenderID, s, s.UpdatedAt)
}

func (p *PostgresStore) getDocument(ctx context.Context, query, id string, dst any) error {
	var doc []byte
	err := p.db.QueryRowContext(ctx, query, id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get settings: %w", err)
	}
	if err := json.Unmarshal(doc, dst); err != nil {
		return fmt.Errorf("decode settings: %w", err)
	}
	return nil
}

func (p *PostgresStore) putDocument(ctx context.Context, query, id string, doc any, updatedAt any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	if _, err := p.db.ExecContext(ctx, query, id, raw, updatedAt); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}
