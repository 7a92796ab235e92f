package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/piacobelli14/PSYCHE-API/internal/domain"
	"github.com/piacobelli14/PSYCHE-API/internal/repository"
)

// Reset codes die three minutes after issue.
const resetCodeTTL = 3 * time.Minute

// AuthService handles clinician credentials and password-reset codes.
// Credentials are salted SHA-256; no session tokens, no transport hardening.
type AuthService struct {
	users  repository.UsersRepository
	mailer Mailer
	logger *zap.Logger
}

func NewAuthService(users repository.UsersRepository, mailer Mailer, logger *zap.Logger) *AuthService {
	return &AuthService{users: users, mailer: mailer, logger: logger}
}

// Login verifies a username-or-email/password pair. ok is false both for an
// unknown user and a wrong password; err is reserved for storage faults.
func (s *AuthService) Login(ctx context.Context, usernameOrEmail, password string) (bool, error) {
	u, err := s.users.GetCredentials(ctx, usernameOrEmail)
	if err == domain.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return hashPassword(password, u.Salt) == u.HashedPassword, nil
}

// Register creates a clinician account; domain.ErrConflict when the email or
// username is taken.
func (s *AuthService) Register(ctx context.Context, u *domain.User, password string) error {
	salt, hashed, err := generateSaltedPassword(password)
	if err != nil {
		return err
	}
	u.Salt = salt
	u.HashedPassword = hashed
	return s.users.CreateUser(ctx, u)
}

// ResetIssue is the outcome of a password-reset request. The code is echoed
// to the caller in addition to the email delivery; the frontend depends on
// the echo.
type ResetIssue struct {
	Code      string
	ExpiresAt time.Time
}

// RequestPasswordReset issues a 6-digit code for the account behind email,
// persists it with its expiry, and mails it. domain.ErrNotFound when no
// account uses the email.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) (*ResetIssue, error) {
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	code, err := generateResetCode()
	if err != nil {
		return nil, err
	}
	issue := &ResetIssue{Code: code, ExpiresAt: time.Now().Add(resetCodeTTL)}

	if err := s.users.SaveResetToken(ctx, &domain.ResetToken{
		Username:  u.Username,
		Code:      issue.Code,
		ExpiresAt: issue.ExpiresAt,
	}); err != nil {
		return nil, err
	}

	if err := s.mailer.Send(u.Email, "Password Reset Code",
		fmt.Sprintf("Your password reset code is: %s", issue.Code)); err != nil {
		s.logger.Error("reset code email delivery failed",
			zap.String("username", u.Username),
			zap.Error(err),
		)
		return nil, ErrMailDelivery
	}

	return issue, nil
}

// ChangePassword re-salts and stores a new password for the account behind
// email.
func (s *AuthService) ChangePassword(ctx context.Context, email, newPassword string) error {
	salt, hashed, err := generateSaltedPassword(newPassword)
	if err != nil {
		return err
	}
	return s.users.UpdatePassword(ctx, email, salt, hashed)
}

// hashPassword is sha256(salt + password), hex encoded.
func hashPassword(password, salt string) string {
	sum := sha256.Sum256([]byte(salt + password))
	return hex.EncodeToString(sum[:])
}

func generateSaltedPassword(password string) (salt, hashed string, err error) {
	raw := make([]byte, 16)
	if _, err := rand.Read(raw); err != nil {
		return "", "", err
	}
	salt = hex.EncodeToString(raw)
	return salt, hashPassword(password, salt), nil
}

func generateResetCode() (string, error) {
	var n uint32
	if err := binary.Read(rand.Reader, binary.BigEndian, &n); err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", 100000+n%900000), nil
}
