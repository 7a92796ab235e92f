package domain

import "time"

// User maps a row of the clinician users table. Credentials are a per-user
// salt plus a SHA-256 hash of salt+password.
type User struct {
	Username       string `db:"username"`
	Email          string `db:"email"`
	FirstName      string `db:"first_name"`
	LastName       string `db:"last_name"`
	Salt           string `db:"salt"`
	HashedPassword string `db:"hashed_password"`
	Image          string `db:"image"`
}

// ResetToken is one issued password-reset code; codes expire a few minutes
// after issue and are matched by username.
type ResetToken struct {
	Username  string    `db:"username"`
	Code      string    `db:"reset_code"`
	ExpiresAt time.Time `db:"expires_at"`
}
