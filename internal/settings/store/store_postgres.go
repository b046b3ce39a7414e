package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"enrolld/internal/settings/models"
	"enrolld/pkg/platform/sentinel"
	"enrolld/pkg/platform/tx"
)

// PostgresSettingsStore persists benefit cutoffs in PostgreSQL.
type PostgresSettingsStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed settings store.
func NewPostgres(db *sql.DB) *PostgresSettingsStore {
	return &PostgresSettingsStore{db: db}
}

func (s *PostgresSettingsStore) GetCutoff(ctx context.Context, scopeKey string) (*models.BenefitCutoff, error) {
	var cutoff models.BenefitCutoff
	err := tx.ExecutorFor(ctx, s.db).QueryRowContext(ctx, `
		SELECT scope_key, cutoff_date, updated_at, updated_by
		FROM benefit_cutoffs
		WHERE scope_key = $1`,
		scopeKey,
	).Scan(&cutoff.ScopeKey, &cutoff.CutoffDate, &cutoff.UpdatedAt, &cutoff.UpdatedBy)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get cutoff: %w", err)
	}
	return &cutoff, nil
}

func (s *PostgresSettingsStore) UpsertCutoff(ctx context.Context, cutoff models.BenefitCutoff) error {
	_, err := tx.ExecutorFor(ctx, s.db).ExecContext(ctx, `
		INSERT INTO benefit_cutoffs (scope_key, cutoff_date, updated_at, updated_by)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (scope_key)
		DO UPDATE SET cutoff_date = $2, updated_at = $3, updated_by = $4`,
		cutoff.ScopeKey, cutoff.CutoffDate, cutoff.UpdatedAt, cutoff.UpdatedBy,
	)
	if err != nil {
		return fmt.Errorf("upsert cutoff: %w", err)
	}
	return nil
}
