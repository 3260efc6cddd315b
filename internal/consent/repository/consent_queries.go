package repository

import (
	"context"
	"database/sql"

	sq "github.com/Masterminds/squirrel"

	consentDomain "github.com/allisson/consentbroker/internal/consent/domain"
	"github.com/allisson/consentbroker/internal/database"
	apperrors "github.com/allisson/consentbroker/internal/errors"
)

// consentQueries holds the consent statements shared by both dialects; only the
// placeholder format and the duplicate-grant handling differ.
type consentQueries struct {
	db      *sql.DB
	builder sq.StatementBuilderType
}

func newConsentQueries(db *sql.DB, placeholder sq.PlaceholderFormat) consentQueries {
	return consentQueries{
		db:      db,
		builder: sq.StatementBuilder.PlaceholderFormat(placeholder),
	}
}

// Check reports, for every requested capability, whether a grant row exists.
// Capabilities without a row map to false and are never omitted.
func (q consentQueries) Check(
	ctx context.Context,
	userID string,
	requestingAppID, destinationAppID int64,
	capabilities []string,
) (map[string]bool, error) {
	granted := make(map[string]bool, len(capabilities))
	for _, capability := range capabilities {
		granted[capability] = false
	}
	if len(capabilities) == 0 {
		return granted, nil
	}

	query, args, err := q.builder.
		Select("capability").
		From("user_consents").
		Where(sq.Eq{
			"user_id":            userID,
			"requesting_app_id":  requestingAppID,
			"destination_app_id": destinationAppID,
			"capability":         capabilities,
		}).
		ToSql()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to build consent check query")
	}

	rows, err := database.GetTx(ctx, q.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to check consent")
	}
	defer func() {
		_ = rows.Close()
	}()

	found, err := scanStrings(rows)
	if err != nil {
		return nil, err
	}
	for _, capability := range found {
		granted[capability] = true
	}
	return granted, nil
}

// Revoke deletes one grant. Returns false when no matching row existed.
func (q consentQueries) Revoke(
	ctx context.Context,
	userID string,
	requestingAppID, destinationAppID int64,
	capability string,
) (bool, error) {
	query, args, err := q.builder.
		Delete("user_consents").
		Where(sq.Eq{
			"user_id":            userID,
			"requesting_app_id":  requestingAppID,
			"destination_app_id": destinationAppID,
			"capability":         capability,
		}).
		ToSql()
	if err != nil {
		return false, apperrors.Wrap(err, "failed to build revoke query")
	}

	result, err := database.GetTx(ctx, q.db).ExecContext(ctx, query, args...)
	if err != nil {
		return false, apperrors.Wrap(err, "failed to revoke consent")
	}
	return affectedAny(result)
}

// RevokeAllForUser deletes every grant of a user and returns how many were removed.
func (q consentQueries) RevokeAllForUser(ctx context.Context, userID string) (int64, error) {
	query, args, err := q.builder.Delete("user_consents").Where(sq.Eq{"user_id": userID}).ToSql()
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to build revoke query")
	}

	result, err := database.GetTx(ctx, q.db).ExecContext(ctx, query, args...)
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to revoke user consents")
	}
	return rowsAffected(result)
}

// RevokeAll deletes every grant and returns how many were removed.
func (q consentQueries) RevokeAll(ctx context.Context) (int64, error) {
	result, err := database.GetTx(ctx, q.db).ExecContext(ctx, "DELETE FROM user_consents")
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to revoke all consents")
	}
	return rowsAffected(result)
}

// ListForUser returns a user's grants joined with application names, most recent first.
func (q consentQueries) ListForUser(ctx context.Context, userID string) ([]*consentDomain.Consent, error) {
	query, args, err := q.builder.
		Select(
			"uc.id",
			"uc.user_id",
			"uc.requesting_app_id",
			"ra.name",
			"uc.destination_app_id",
			"da.name",
			"uc.capability",
			"uc.granted_at",
		).
		From("user_consents uc").
		Join("applications ra ON ra.id = uc.requesting_app_id").
		Join("applications da ON da.id = uc.destination_app_id").
		Where(sq.Eq{"uc.user_id": userID}).
		OrderBy("uc.granted_at DESC", "uc.id DESC").
		ToSql()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to build consent list query")
	}

	rows, err := database.GetTx(ctx, q.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list user consents")
	}
	defer func() {
		_ = rows.Close()
	}()

	consents := make([]*consentDomain.Consent, 0)
	for rows.Next() {
		var consent consentDomain.Consent
		if err := rows.Scan(
			&consent.ID,
			&consent.UserID,
			&consent.RequestingAppID,
			&consent.RequestingAppName,
			&consent.DestinationAppID,
			&consent.DestinationAppName,
			&consent.Capability,
			&consent.GrantedAt,
		); err != nil {
			return nil, apperrors.Wrap(err, "failed to scan consent")
		}
		consents = append(consents, &consent)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate consents")
	}
	return consents, nil
}

// rowsAffected returns the number of rows a statement touched.
func rowsAffected(result sql.Result) (int64, error) {
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to read affected rows")
	}
	return affected, nil
}
