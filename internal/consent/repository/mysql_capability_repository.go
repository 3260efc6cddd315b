package repository

import (
	"context"
	"database/sql"

	"github.com/allisson/consentbroker/internal/database"
	apperrors "github.com/allisson/consentbroker/internal/errors"
)

// MySQLCapabilityRepository implements capability persistence for MySQL.
type MySQLCapabilityRepository struct {
	db *sql.DB
}

// Add declares a capability for an application. A duplicate entry is reported as
// false rather than an error.
func (m *MySQLCapabilityRepository) Add(ctx context.Context, applicationID int64, name string) (bool, error) {
	querier := database.GetTx(ctx, m.db)

	_, err := querier.ExecContext(
		ctx,
		`INSERT INTO capabilities (application_id, capability) VALUES (?, ?)`,
		applicationID,
		name,
	)
	if err != nil {
		if isMySQLDuplicateEntry(err) {
			return false, nil
		}
		return false, apperrors.Wrap(err, "failed to add capability")
	}
	return true, nil
}

// Remove deletes a declared capability. Returns false when it was not declared.
func (m *MySQLCapabilityRepository) Remove(ctx context.Context, applicationID int64, name string) (bool, error) {
	querier := database.GetTx(ctx, m.db)

	result, err := querier.ExecContext(
		ctx,
		`DELETE FROM capabilities WHERE application_id = ? AND capability = ?`,
		applicationID,
		name,
	)
	if err != nil {
		return false, apperrors.Wrap(err, "failed to remove capability")
	}
	return affectedAny(result)
}

// List returns the capability names declared by an application, ordered by name.
func (m *MySQLCapabilityRepository) List(ctx context.Context, applicationID int64) ([]string, error) {
	querier := database.GetTx(ctx, m.db)

	rows, err := querier.QueryContext(
		ctx,
		`SELECT capability FROM capabilities WHERE application_id = ? ORDER BY capability`,
		applicationID,
	)
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
func (m *MySQLCapabilityRepository) ListForShare(ctx context.Context, applicationID int64) ([]string, error) {
	querier := database.GetTx(ctx, m.db)

	rows, err := querier.QueryContext(
		ctx,
		`SELECT capability FROM capabilities WHERE application_id = ? ORDER BY capability LOCK IN SHARE MODE`,
		applicationID,
	)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to lock capabilities")
	}
	defer func() {
		_ = rows.Close()
	}()

	return scanStrings(rows)
}

// NewMySQLCapabilityRepository creates a new MySQL capability repository.
func NewMySQLCapabilityRepository(db *sql.DB) *MySQLCapabilityRepository {
	return &MySQLCapabilityRepository{db: db}
}
