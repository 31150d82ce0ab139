package lending

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/loticredit/loticredit/internal/pagination"
	"github.com/loticredit/loticredit/internal/score"
)

// Compile-time check that PostgresStore implements Store.
var _ Store = (*PostgresStore)(nil)

// PostgresStore implements Store backed by PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed lending store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the lending tables if they don't exist.
func (p *PostgresStore) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS loan_products (
			id             VARCHAR(64) PRIMARY KEY,
			lender_id      VARCHAR(64) NOT NULL,
			loan_type      VARCHAR(16) NOT NULL,
			interest_rate  NUMERIC(6,3) NOT NULL,
			term_months    INTEGER NOT NULL,
			created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE TABLE IF NOT EXISTS loan_applications (
			id              VARCHAR(64) PRIMARY KEY,
			lender_id       VARCHAR(64) NOT NULL,
			applicant_name  VARCHAR(256) NOT NULL,
			applicant_id    VARCHAR(64) NOT NULL DEFAULT '',
			loan_type       VARCHAR(16) NOT NULL,
			amount          NUMERIC(14,2) NOT NULL,
			monthly_income  NUMERIC(14,2) NOT NULL,
			monthly_debt    NUMERIC(14,2) NOT NULL DEFAULT 0,
			score           INTEGER NOT NULL,
			rating          VARCHAR(16) NOT NULL,
			status          VARCHAR(16) NOT NULL,
			reason          TEXT NOT NULL DEFAULT '',
			created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		ALTER TABLE loan_applications ADD COLUMN IF NOT EXISTS factors JSONB;
		CREATE INDEX IF NOT EXISTS idx_loan_applications_lender
			ON loan_applications (lender_id, created_at DESC, id DESC);
	`)
	return err
}

const applicationColumns = `id, lender_id, applicant_name, applicant_id, loan_type,
	amount, monthly_income, monthly_debt, score, rating, status, reason,
	created_at, updated_at, factors`

func (p *PostgresStore) CreateProduct(ctx context.Context, prod *Product) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO loan_products (id, lender_id, loan_type, interest_rate, term_months, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, prod.ID, prod.LenderID, string(prod.LoanType), prod.InterestRate, prod.TermMonths, prod.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

func (p *PostgresStore) ListProducts(ctx context.Context, lenderID string) ([]*Product, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, lender_id, loan_type, interest_rate, term_months, created_at
		FROM loan_products WHERE lender_id = $1
		ORDER BY created_at DESC
	`, lenderID)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*Product
	for rows.Next() {
		var (
			prod     Product
			loanType string
		)
		if err := rows.Scan(&prod.ID, &prod.LenderID, &loanType, &prod.InterestRate, &prod.TermMonths, &prod.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		prod.LoanType = LoanType(loanType)
		out = append(out, &prod)
	}
	return out, rows.Err()
}

func (p *PostgresStore) CreateApplication(ctx context.Context, a *Application) error {
	var factors []byte
	if a.Factors != nil {
		var err error
		if factors, err = json.Marshal(a.Factors); err != nil {
			return fmt.Errorf("encode factors: %w", err)
		}
	}
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO loan_applications (`+applicationColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`,
		a.ID, a.LenderID, a.ApplicantName, a.ApplicantID, string(a.LoanType),
		a.Amount, a.MonthlyIncome, a.MonthlyDebt, a.Score, string(a.Rating),
		string(a.Status), a.Reason, a.CreatedAt, a.UpdatedAt, factors,
	)
	if err != nil {
		return fmt.Errorf("insert application: %w", err)
	}
	return nil
}

func (p *PostgresStore) GetApplication(ctx context.Context, id string) (*Application, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+applicationColumns+` FROM loan_applications WHERE id = $1`, id)

	a, err := scanApplication(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrApplicationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get application: %w", err)
	}
	return a, nil
}

func (p *PostgresStore) UpdateStatus(ctx context.Context, id string, from, to Status, reason string, at time.Time) (*Application, error) {
	row := p.db.QueryRowContext(ctx, `
		UPDATE loan_applications
		SET status = $3, reason = $4, updated_at = $5
		WHERE id = $1 AND status = $2
		RETURNING `+applicationColumns,
		id, string(from), string(to), reason, at,
	)

	a, err := scanApplication(row)
	if errors.Is(err, sql.ErrNoRows) {
		// Either the row is gone or its status moved on.
		if _, getErr := p.GetApplication(ctx, id); errors.Is(getErr, ErrApplicationNotFound) {
			return nil, ErrApplicationNotFound
		}
		return nil, ErrInvalidTransition
	}
	if err != nil {
		return nil, fmt.Errorf("update application status: %w", err)
	}
	return a, nil
}

func (p *PostgresStore) ListApplications(ctx context.Context, lenderID string, status Status, limit int, after *pagination.Cursor) ([]*Application, error) {
	query := `SELECT ` + applicationColumns + ` FROM loan_applications WHERE lender_id = $1`
	args := []any{lenderID}
	if status != "" {
		args = append(args, string(status))
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if after != nil {
		args = append(args, after.CreatedAt, after.ID)
		query += fmt.Sprintf(" AND (created_at, id) < ($%d, $%d)", len(args)-1, len(args))
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d", len(args))

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanApplications(rows)
}

func (p *PostgresStore) ListPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]*Application, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT `+applicationColumns+` FROM loan_applications
		WHERE status = 'pending' AND created_at < $1
		ORDER BY created_at ASC LIMIT $2
	`, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("list stale applications: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanApplications(rows)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanApplication(row scanner) (*Application, error) {
	var (
		a                        Application
		loanType, rating, status string
		factors                  []byte
	)
	err := row.Scan(
		&a.ID, &a.LenderID, &a.ApplicantName, &a.ApplicantID, &loanType,
		&a.Amount, &a.MonthlyIncome, &a.MonthlyDebt, &a.Score, &rating,
		&status, &a.Reason, &a.CreatedAt, &a.UpdatedAt, &factors,
	)
	if err != nil {
		return nil, err
	}
	if len(factors) > 0 {
		a.Factors = &score.Factors{}
		if err := json.Unmarshal(factors, a.Factors); err != nil {
			return nil, fmt.Errorf("decode factors: %w", err)
		}
	}
	a.LoanType = LoanType(loanType)
	a.Rating = score.Rating(rating)
	a.Status = Status(status)
	a.CreatedAt = a.CreatedAt.UTC()
	a.UpdatedAt = a.UpdatedAt.UTC()
	return &a, nil
}

func scanApplications(rows *sql.Rows) ([]*Application, error) {
	var out []*Application
	for rows.Next() {
		a, err := scanApplication(rows)
		if err != nil {
			return nil, fmt.Errorf("scan application: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
