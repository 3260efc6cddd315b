package repository

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgreSQLCapabilityRepository_Add(t *testing.T) {
	ctx := context.Background()

	t.Run("Added", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewPostgreSQLCapabilityRepository(db)

		mock.ExpectExec("INSERT INTO capabilities .* ON CONFLICT").
			WithArgs(int64(1), "withdraw").
			WillReturnResult(sqlmock.NewResult(0, 1))

		added, err := repo.Add(ctx, 1, "withdraw")
		require.NoError(t, err)
		assert.True(t, added)
	})

	t.Run("AlreadyDeclared", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewPostgreSQLCapabilityRepository(db)

		mock.ExpectExec("INSERT INTO capabilities").
			WithArgs(int64(1), "withdraw").
			WillReturnResult(sqlmock.NewResult(0, 0))

		added, err := repo.Add(ctx, 1, "withdraw")
		require.NoError(t, err)
		assert.False(t, added)
	})

	t.Run("Error", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewPostgreSQLCapabilityRepository(db)

		mock.ExpectExec("INSERT INTO capabilities").WillReturnError(assert.AnError)

		_, err := repo.Add(ctx, 1, "withdraw")
		assert.ErrorIs(t, err, assert.AnError)
	})
}

func TestPostgreSQLCapabilityRepository_RemoveAndList(t *testing.T) {
	ctx := context.Background()
	db, mock := newMockDB(t)
	repo := NewPostgreSQLCapabilityRepository(db)

	mock.ExpectExec("DELETE FROM capabilities").
		WithArgs(int64(2), "view_balance").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT capability FROM capabilities").
		WithArgs(int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"capability"}).AddRow("deposit").AddRow("withdraw"))

	removed, err := repo.Remove(ctx, 2, "view_balance")
	require.NoError(t, err)
	assert.True(t, removed)

	capabilities, err := repo.List(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"deposit", "withdraw"}, capabilities)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLCapabilityRepository_Add(t *testing.T) {
	ctx := context.Background()

	t.Run("Added", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewMySQLCapabilityRepository(db)

		mock.ExpectExec("INSERT INTO capabilities").
			WithArgs(int64(1), "withdraw").
			WillReturnResult(sqlmock.NewResult(10, 1))

		added, err := repo.Add(ctx, 1, "withdraw")
		require.NoError(t, err)
		assert.True(t, added)
	})

	t.Run("DuplicateEntry", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewMySQLCapabilityRepository(db)

		mock.ExpectExec("INSERT INTO capabilities").
			WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})

		added, err := repo.Add(ctx, 1, "withdraw")
		require.NoError(t, err)
		assert.False(t, added)
	})
}

func TestMySQLCapabilityRepository_List_Empty(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMySQLCapabilityRepository(db)

	mock.ExpectQuery("SELECT capability FROM capabilities WHERE application_id = \\?").
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"capability"}))

	capabilities, err := repo.List(context.Background(), 5)
	require.NoError(t, err)
	assert.NotNil(t, capabilities)
	assert.Empty(t, capabilities)
}

func TestCapabilityRepository_ListForShare(t *testing.T) {
	ctx := context.Background()

	t.Run("PostgreSQL", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewPostgreSQLCapabilityRepository(db)

		mock.ExpectQuery("WHERE application_id = \\$1 ORDER BY capability FOR SHARE").
			WithArgs(int64(2)).
			WillReturnRows(sqlmock.NewRows([]string{"capability"}).AddRow("withdraw"))

		capabilities, err := repo.ListForShare(ctx, 2)
		require.NoError(t, err)
		assert.Equal(t, []string{"withdraw"}, capabilities)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("MySQL", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewMySQLCapabilityRepository(db)

		mock.ExpectQuery("WHERE application_id = \\? ORDER BY capability LOCK IN SHARE MODE").
			WithArgs(int64(2)).
			WillReturnRows(sqlmock.NewRows([]string{"capability"}).AddRow("withdraw"))

		capabilities, err := repo.ListForShare(ctx, 2)
		require.NoError(t, err)
		assert.Equal(t, []string{"withdraw"}, capabilities)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Error", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewPostgreSQLCapabilityRepository(db)

		mock.ExpectQuery("SELECT capability FROM capabilities").WillReturnError(assert.AnError)

		_, err := repo.ListForShare(ctx, 2)
		assert.ErrorIs(t, err, assert.AnError)
	})
}
