package repository

import (
	"context"
	"database/sql"

	sq "github.com/Masterminds/squirrel"

	"github.com/allisson/consentbroker/internal/database"
	apperrors "github.com/allisson/consentbroker/internal/errors"
)

// PostgreSQLConsentRepository implements consent grant persistence for PostgreSQL.
type PostgreSQLConsentRepository struct {
	consentQueries
}

// Grant records a consent grant. Returns false when the tuple was already granted.
func (p *PostgreSQLConsentRepository) Grant(
	ctx context.Context,
	userID string,
	requestingAppID, destinationAppID int64,
	capability string,
) (bool, error) {
	query, args, err := p.builder.
		Insert("user_consents").
		Columns("user_id", "requesting_app_id", "destination_app_id", "capability").
		Values(userID, requestingAppID, destinationAppID, capability).
		Suffix("ON CONFLICT (user_id, requesting_app_id, destination_app_id, capability) DO NOTHING").
		ToSql()
	if err != nil {
		return false, apperrors.Wrap(err, "failed to build grant query")
	}

	result, err := database.GetTx(ctx, p.db).ExecContext(ctx, query, args...)
	if err != nil {
		return false, apperrors.Wrap(err, "failed to grant consent")
	}
	return affectedAny(result)
}

// NewPostgreSQLConsentRepository creates a new PostgreSQL consent repository.
func NewPostgreSQLConsentRepository(db *sql.DB) *PostgreSQLConsentRepository {
	return &PostgreSQLConsentRepository{consentQueries: newConsentQueries(db, sq.Dollar)}
}
