package repository

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/piacobelli14/PSYCHE-API/internal/domain"
)

func setupUsersMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *PostgresUsersRepo) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return db, mock, NewPostgresUsersRepo(db)
}

func TestCreateUser_ConcurrentDuplicate(t *testing.T) {
	db, mock, repo := setupUsersMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT username FROM users`).
		WithArgs("jdoe@clinic.org", "jdoe").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec(`INSERT INTO users`).
		WithArgs("jdoe", "jdoe@clinic.org", "Jane", "Doe", "salt", "hash", "").
		WillReturnError(&pq.Error{Code: "23505"})

	err := repo.CreateUser(context.Background(), &domain.User{
		Username: "jdoe", Email: "jdoe@clinic.org",
		FirstName: "Jane", LastName: "Doe",
		Salt: "salt", HashedPassword: "hash",
	})
	require.ErrorIs(t, err, domain.ErrConflict)
	assert.False(t, domain.IsStorageError(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetCredentials_UnknownUser(t *testing.T) {
	db, mock, repo := setupUsersMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT username, email, salt, hashed_password`).
		WithArgs("nobody").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetCredentials(context.Background(), "nobody")
	require.ErrorIs(t, err, domain.ErrNotFound)
}
