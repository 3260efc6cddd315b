package repository

import (
	"context"
	"database/sql"
	"errors"

	consentDomain "github.com/allisson/consentbroker/internal/consent/domain"
	"github.com/allisson/consentbroker/internal/database"
	apperrors "github.com/allisson/consentbroker/internal/errors"
)

// PostgreSQLApplicationRepository implements Application persistence for PostgreSQL.
type PostgreSQLApplicationRepository struct {
	db *sql.DB
}

// Create inserts a new application and fills its ID and CreatedAt.
// Returns ErrApplicationAlreadyExists when the name is taken.
func (p *PostgreSQLApplicationRepository) Create(ctx context.Context, app *consentDomain.Application) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO applications (name) VALUES ($1) RETURNING id, created_at`

	err := querier.QueryRowContext(ctx, query, app.Name).Scan(&app.ID, &app.CreatedAt)
	if err != nil {
		if isPostgresUniqueViolation(err) {
			return apperrors.Wrap(consentDomain.ErrApplicationAlreadyExists, "application '"+app.Name+"'")
		}
		return apperrors.Wrap(err, "failed to create application")
	}
	return nil
}

// Get retrieves an application by ID.
func (p *PostgreSQLApplicationRepository) Get(ctx context.Context, id int64) (*consentDomain.Application, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT id, name, created_at FROM applications WHERE id = $1`

	var app consentDomain.Application
	err := querier.QueryRowContext(ctx, query, id).Scan(&app.ID, &app.Name, &app.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, consentDomain.ErrApplicationNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get application")
	}
	return &app, nil
}

// GetByName retrieves an application by its unique name.
func (p *PostgreSQLApplicationRepository) GetByName(
	ctx context.Context,
	name string,
) (*consentDomain.Application, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT id, name, created_at FROM applications WHERE name = $1`

	var app consentDomain.Application
	err := querier.QueryRowContext(ctx, query, name).Scan(&app.ID, &app.Name, &app.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, consentDomain.ApplicationNotFound(name)
		}
		return nil, apperrors.Wrap(err, "failed to get application by name")
	}
	return &app, nil
}

// List retrieves all applications ordered by name.
func (p *PostgreSQLApplicationRepository) List(ctx context.Context) ([]*consentDomain.Application, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT id, name, created_at FROM applications ORDER BY name`

	rows, err := querier.QueryContext(ctx, query)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list applications")
	}
	defer func() {
		_ = rows.Close()
	}()

	return scanApplications(rows)
}

// Delete removes an application. Capabilities and consent grants referencing it
// are removed by the foreign key cascade. Returns false if the ID did not exist.
func (p *PostgreSQLApplicationRepository) Delete(ctx context.Context, id int64) (bool, error) {
	querier := database.GetTx(ctx, p.db)

	result, err := querier.ExecContext(ctx, `DELETE FROM applications WHERE id = $1`, id)
	if err != nil {
		return false, apperrors.Wrap(err, "failed to delete application")
	}
	return affectedAny(result)
}

// NewPostgreSQLApplicationRepository creates a new PostgreSQL Application repository.
func NewPostgreSQLApplicationRepository(db *sql.DB) *PostgreSQLApplicationRepository {
	return &PostgreSQLApplicationRepository{db: db}
}

// scanApplications reads id, name, created_at rows.
func scanApplications(rows *sql.Rows) ([]*consentDomain.Application, error) {
	applications := make([]*consentDomain.Application, 0)
	for rows.Next() {
		var app consentDomain.Application
		if err := rows.Scan(&app.ID, &app.Name, &app.CreatedAt); err != nil {
			return nil, apperrors.Wrap(err, "failed to scan application")
		}
		applications = append(applications, &app)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate applications")
	}
	return applications, nil
}

// affectedAny reports whether a statement touched at least one row.
func affectedAny(result sql.Result) (bool, error) {
	affected, err := result.RowsAffected()
	if err != nil {
		return false, apperrors.Wrap(err, "failed to read affected rows")
	}
	return affected > 0, nil
}
