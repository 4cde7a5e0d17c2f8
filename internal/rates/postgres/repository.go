// Package postgres provides the PostgreSQL implementation of the rates
// repository.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/subtrack-app/subtrack/internal/domain"
	"github.com/subtrack-app/subtrack/internal/rates"
)

// DB is the subset of pgxpool.Pool the repository uses.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Repository implements rates.Repository using PostgreSQL.
type Repository struct {
	db DB
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db DB) *Repository {
	return &Repository{db: db}
}

// GetKeyPair retrieves the persisted PEM keypair.
func (r *Repository) GetKeyPair(ctx context.Context) (string, string, error) {
	query := `SELECT public_pem, private_pem FROM exchange_rate_keys WHERE id = TRUE`

	var publicPEM, privatePEM string
	err := r.db.QueryRow(ctx, query).Scan(&publicPEM, &privatePEM)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", "", rates.ErrNoKeyPair
		}
		return "", "", fmt.Errorf("get keypair: %w", err)
	}
	return publicPEM, privatePEM, nil
}

// SaveKeyPair persists the keypair. The singleton row is insert-only; an
// existing keypair is never overwritten.
func (r *Repository) SaveKeyPair(ctx context.Context, publicPEM, privatePEM string) error {
	query := `
		INSERT INTO exchange_rate_keys (id, public_pem, private_pem, created_at)
		VALUES (TRUE, $1, $2, NOW())
		ON CONFLICT (id) DO NOTHING
	`
	if _, err := r.db.Exec(ctx, query, publicPEM, privatePEM); err != nil {
		return fmt.Errorf("save keypair: %w", err)
	}
	return nil
}

// GetState loads the feature state, returning a zero-value state when the
// singleton row does not exist yet.
func (r *Repository) GetState(ctx context.Context) (*domain.ExchangeRateState, error) {
	query := `
		SELECT enabled, COALESCE(encrypted_key, ''), last_tested_at,
			last_run_at_0, last_run_at_12, last_rates_update
		FROM exchange_rate_state
		WHERE id = TRUE
	`

	var state domain.ExchangeRateState
	err := r.db.QueryRow(ctx, query).Scan(
		&state.Enabled,
		&state.EncryptedKey,
		&state.LastTestedAt,
		&state.LastRunAt0,
		&state.LastRunAt12,
		&state.LastRatesUpdate,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &domain.ExchangeRateState{}, nil
		}
		return nil, fmt.Errorf("get rate state: %w", err)
	}
	return &state, nil
}

// SaveState upserts the singleton feature state.
func (r *Repository) SaveState(ctx context.Context, state *domain.ExchangeRateState) error {
	query := `
		INSERT INTO exchange_rate_state (
			id, enabled, encrypted_key, last_tested_at, last_run_at_0, last_run_at_12, last_rates_update
		)
		VALUES (TRUE, $1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			enabled = EXCLUDED.enabled,
			encrypted_key = EXCLUDED.encrypted_key,
			last_tested_at = EXCLUDED.last_tested_at,
			last_run_at_0 = EXCLUDED.last_run_at_0,
			last_run_at_12 = EXCLUDED.last_run_at_12,
			last_rates_update = EXCLUDED.last_rates_update
	`
	_, err := r.db.Exec(ctx, query,
		state.Enabled,
		state.EncryptedKey,
		state.LastTestedAt,
		state.LastRunAt0,
		state.LastRunAt12,
		state.LastRatesUpdate,
	)
	if err != nil {
		return fmt.Errorf("save rate state: %w", err)
	}
	return nil
}

// UpsertRates writes the refreshed rates, one upsert per currency.
func (r *Repository) UpsertRates(ctx context.Context, rateList []domain.ExchangeRate) error {
	query := `
		INSERT INTO exchange_rates (code, rate, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (code) DO UPDATE SET
			rate = EXCLUDED.rate,
			updated_at = EXCLUDED.updated_at
	`
	for _, rate := range rateList {
		if _, err := r.db.Exec(ctx, query, rate.Code, rate.Rate.String(), rate.UpdatedAt); err != nil {
			return fmt.Errorf("upsert rate %s: %w", rate.Code, err)
		}
	}
	return nil
}

// ListRates retrieves all stored rates.
func (r *Repository) ListRates(ctx context.Context) ([]domain.ExchangeRate, error) {
	query := `SELECT code, rate::text, updated_at FROM exchange_rates ORDER BY code`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list rates: %w", err)
	}
	defer rows.Close()

	result := make([]domain.ExchangeRate, 0)
	for rows.Next() {
		var (
			rate domain.ExchangeRate
			raw  string
		)
		if err := rows.Scan(&rate.Code, &raw, &rate.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan rate: %w", err)
		}
		rate.Rate, err = decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("parse rate %q: %w", raw, err)
		}
		result = append(result, rate)
	}

	return result, rows.Err()
}

// ListTrackedCurrencies returns distinct subscription currencies.
func (r *Repository) ListTrackedCurrencies(ctx context.Context) ([]string, error) {
	query := `SELECT DISTINCT currency FROM subscriptions ORDER BY currency`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list tracked currencies: %w", err)
	}
	defer rows.Close()

	currencies := make([]string, 0)
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, fmt.Errorf("scan currency: %w", err)
		}
		currencies = append(currencies, code)
	}

	return currencies, rows.Err()
}
