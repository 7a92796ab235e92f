package repository

import (
	"context"

	"github.com/piacobelli14/PSYCHE-API/internal/domain"
)

// UsersRepository is the credential-storage collaborator. Password hashing
// lives in the auth service; this layer only reads and writes rows.
type UsersRepository interface {
	// GetCredentials looks up a user's salt and hash by username or email.
	GetCredentials(ctx context.Context, usernameOrEmail string) (*domain.User, error)

	GetByEmail(ctx context.Context, email string) (*domain.User, error)

	// CreateUser rejects with domain.ErrConflict when the email or username
	// is already taken.
	CreateUser(ctx context.Context, u *domain.User) error

	UpdatePassword(ctx context.Context, email, salt, hashedPassword string) error

	SaveResetToken(ctx context.Context, t *domain.ResetToken) error
}
