package repository

import (
	"context"
	"database/sql"

	"github.com/allisson/consentbroker/internal/database"
	apperrors "github.com/allisson/consentbroker/internal/errors"
)

// PostgreSQLCapabilityRepository implements capability persistence for PostgreSQL.
type PostgreSQLCapabilityRepository struct {
	db *sql.DB
}

// Add declares a capability for an application. Returns false when the pair already
// exists; ON CONFLICT keeps an enclosing transaction usable.
func (p *PostgreSQLCapabilityRepository) Add(ctx context.Context, applicationID int64, name string) (bool, error) {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO capabilities (application_id, capability) VALUES ($1, $2)
			  ON CONFLICT (application_id, capability) DO NOTHING`

	result, err := querier.ExecContext(ctx, query, applicationID, name)
	if err != nil {
		return false, apperrors.Wrap(err, "failed to add capability")
	}
	return affectedAny(result)
}

// Remove deletes a declared capability. Returns false when it was not declared.
func (p *PostgreSQLCapabilityRepository) Remove(ctx context.Context, applicationID int64, name string) (bool, error) {
	querier := database.GetTx(ctx, p.db)

	query := `DELETE FROM capabilities WHERE application_id = $1 AND capability = $2`

	result, err := querier.ExecContext(ctx, query, applicationID, name)
	if err != nil {
		return false, apperrors.Wrap(err, "failed to remove capability")
	}
	return affectedAny(result)
}

// List returns the capability names declared by an application, ordered by name.
func (p *PostgreSQLCapabilityRepository) List(ctx context.Context, applicationID int64) ([]string, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT capability FROM capabilities WHERE application_id = $1 ORDER BY capability`

	rows, err := querier.QueryContext(ctx, query, applicationID)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list capabilities")
	}
	defer func() {
		_ = rows.Close()
	}()

	return scanStrings(rows)
}

// ListForShare returns the declared capability names and, inside a transaction,
// holds a shared lock on them until it ends so they cannot be removed meanwhile.
func (p *PostgreSQLCapabilityRepository) ListForShare(ctx context.Context, applicationID int64) ([]string, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT capability FROM capabilities WHERE application_id = $1 ORDER BY capability FOR SHARE`

	rows, err := querier.QueryContext(ctx, query, applicationID)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to lock capabilities")
	}
	defer func() {
		_ = rows.Close()
	}()

	return scanStrings(rows)
}

// NewPostgreSQLCapabilityRepository creates a new PostgreSQL capability repository.
func NewPostgreSQLCapabilityRepository(db *sql.DB) *PostgreSQLCapabilityRepository {
	return &PostgreSQLCapabilityRepository{db: db}
}

// scanStrings reads single-column text rows.
func scanStrings(rows *sql.Rows) ([]string, error) {
	values := make([]string, 0)
	for rows.Next() {
		var value string
		if err := rows.Scan(&value); err != nil {
			return nil, apperrors.Wrap(err, "failed to scan row")
		}
		values = append(values, value)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate rows")
	}
	return values, nil
}
