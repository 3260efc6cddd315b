package repository

import (
	"context"
	"database/sql"

	sq "github.com/Masterminds/squirrel"

	"github.com/allisson/consentbroker/internal/database"
	apperrors "github.com/allisson/consentbroker/internal/errors"
)

// MySQLConsentRepository implements consent grant persistence for MySQL.
type MySQLConsentRepository struct {
	consentQueries
}

// Grant records a consent grant. A duplicate entry means the tuple was already
// granted and is reported as false.
func (m *MySQLConsentRepository) Grant(
	ctx context.Context,
	userID string,
	requestingAppID, destinationAppID int64,
	capability string,
) (bool, error) {
	query, args, err := m.builder.
		Insert("user_consents").
		Columns("user_id", "requesting_app_id", "destination_app_id", "capability").
		Values(userID, requestingAppID, destinationAppID, capability).
		ToSql()
	if err != nil {
		return false, apperrors.Wrap(err, "failed to build grant query")
	}

	if _, err := database.GetTx(ctx, m.db).ExecContext(ctx, query, args...); err != nil {
		if isMySQLDuplicateEntry(err) {
			return false, nil
		}
		return false, apperrors.Wrap(err, "failed to grant consent")
	}
	return true, nil
}

// NewMySQLConsentRepository creates a new MySQL consent repository.
func NewMySQLConsentRepository(db *sql.DB) *MySQLConsentRepository {
	return &MySQLConsentRepository{consentQueries: newConsentQueries(db, sq.Question)}
}
