package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/piacobelli14/PSYCHE-API/internal/domain"
)

// PostgresUsersRepo implements UsersRepository on the users and reset_tokens
// tables.
type PostgresUsersRepo struct {
	db *sql.DB
}

func NewPostgresUsersRepo(db *sql.DB) *PostgresUsersRepo {
	return &PostgresUsersRepo{db: db}
}

func (r *PostgresUsersRepo) GetCredentials(ctx context.Context, usernameOrEmail string) (*domain.User, error) {
	var u domain.User
	err := r.db.QueryRowContext(ctx, `
		SELECT username, email, salt, hashed_password
		FROM users
		WHERE username = $1 OR email = $1`,
		usernameOrEmail,
	).Scan(&u.Username, &u.Email, &u.Salt, &u.HashedPassword)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, domain.NewStorageError("get credentials", err)
	}
	return &u, nil
}

func (r *PostgresUsersRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	var u domain.User
	err := r.db.QueryRowContext(ctx, `
		SELECT username, email, first_name, last_name
		FROM users
		WHERE email = $1`,
		email,
	).Scan(&u.Username, &u.Email, &u.FirstName, &u.LastName)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, domain.NewStorageError("get user by email", err)
	}
	return &u, nil
}

func (r *PostgresUsersRepo) CreateUser(ctx context.Context, u *domain.User) error {
	var existing string
	err := r.db.QueryRowContext(ctx,
		`SELECT username FROM users WHERE email = $1 OR username = $2`,
		u.Email, u.Username,
	).Scan(&existing)
	if err == nil {
		return domain.ErrConflict
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return domain.NewStorageError("check user", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO users (username, email, first_name, last_name, salt, hashed_password, image)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		u.Username, u.Email, u.FirstName, u.LastName, u.Salt, u.HashedPassword, u.Image,
	)
	if isUniqueViolation(err) {
		return domain.ErrConflict
	}
	if err != nil {
		return domain.NewStorageError("create user", err)
	}
	return nil
}

func (r *PostgresUsersRepo) UpdatePassword(ctx context.Context, email, salt, hashedPassword string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users SET salt = $1, hashed_password = $2 WHERE email = $3`,
		salt, hashedPassword, email,
	)
	if err != nil {
		return domain.NewStorageError("update password", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *PostgresUsersRepo) SaveResetToken(ctx context.Context, t *domain.ResetToken) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO reset_tokens (username, reset_code, expires_at)
		VALUES ($1, $2, $3)`,
		t.Username, t.Code, t.ExpiresAt,
	)
	if err != nil {
		return domain.NewStorageError("save reset token", err)
	}
	return nil
}
