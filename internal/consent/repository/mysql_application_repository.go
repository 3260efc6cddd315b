package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	consentDomain "github.com/allisson/consentbroker/internal/consent/domain"
	"github.com/allisson/consentbroker/internal/database"
	apperrors "github.com/allisson/consentbroker/internal/errors"
)

// MySQLApplicationRepository implements Application persistence for MySQL.
// The connection string must enable parseTime.
type MySQLApplicationRepository struct {
	db *sql.DB
}

// Create inserts a new application and fills its ID and CreatedAt.
// Returns ErrApplicationAlreadyExists when the name is taken.
func (m *MySQLApplicationRepository) Create(ctx context.Context, app *consentDomain.Application) error {
	querier := database.GetTx(ctx, m.db)

	createdAt := time.Now().UTC().Truncate(time.Microsecond)
	result, err := querier.ExecContext(
		ctx,
		`INSERT INTO applications (name, created_at) VALUES (?, ?)`,
		app.Name,
		createdAt,
	)
	if err != nil {
		if isMySQLDuplicateEntry(err) {
			return apperrors.Wrap(consentDomain.ErrApplicationAlreadyExists, "application '"+app.Name+"'")
		}
		return apperrors.Wrap(err, "failed to create application")
	}

	id, err := result.LastInsertId()
	if err != nil {
		return apperrors.Wrap(err, "failed to read application id")
	}

	app.ID = id
	app.CreatedAt = createdAt
	return nil
}

// Get retrieves an application by ID.
func (m *MySQLApplicationRepository) Get(ctx context.Context, id int64) (*consentDomain.Application, error) {
	querier := database.GetTx(ctx, m.db)

	var app consentDomain.Application
	err := querier.QueryRowContext(ctx, `SELECT id, name, created_at FROM applications WHERE id = ?`, id).
		Scan(&app.ID, &app.Name, &app.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, consentDomain.ErrApplicationNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get application")
	}
	return &app, nil
}

// GetByName retrieves an application by its unique name.
func (m *MySQLApplicationRepository) GetByName(ctx context.Context, name string) (*consentDomain.Application, error) {
	querier := database.GetTx(ctx, m.db)

	var app consentDomain.Application
	err := querier.QueryRowContext(ctx, `SELECT id, name, created_at FROM applications WHERE name = ?`, name).
		Scan(&app.ID, &app.Name, &app.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, consentDomain.ApplicationNotFound(name)
		}
		return nil, apperrors.Wrap(err, "failed to get application by name")
	}
	return &app, nil
}

// List retrieves all applications ordered by name.
func (m *MySQLApplicationRepository) List(ctx context.Context) ([]*consentDomain.Application, error) {
	querier := database.GetTx(ctx, m.db)

	rows, err := querier.QueryContext(ctx, `SELECT id, name, created_at FROM applications ORDER BY name`)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list applications")
	}
	defer func() {
		_ = rows.Close()
	}()

	return scanApplications(rows)
}

// Delete removes an application and, through cascades, its capabilities and
// consent grants. Returns false if the ID did not exist.
func (m *MySQLApplicationRepository) Delete(ctx context.Context, id int64) (bool, error) {
	querier := database.GetTx(ctx, m.db)

	result, err := querier.ExecContext(ctx, `DELETE FROM applications WHERE id = ?`, id)
	if err != nil {
		return false, apperrors.Wrap(err, "failed to delete application")
	}
	return affectedAny(result)
}

// NewMySQLApplicationRepository creates a new MySQL Application repository.
func NewMySQLApplicationRepository(db *sql.DB) *MySQLApplicationRepository {
	return &MySQLApplicationRepository{db: db}
}
