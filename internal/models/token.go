package models

import "time"

// RefreshToken represents a persisted refresh token session.
type RefreshToken struct {
	ID        string     `db:"id" json:"id"`
	UserID    string     `db:"user_id" json:"user_id"`
	Token     string     `db:"token" json:"token"`
	ExpiresAt time.Time  `db:"expires_at" json:"expires_at"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	Revoked   bool       `db:"revoked" json:"revoked"`
	RevokedAt *time.Time `db:"revoked_at" json:"revoked_at,omitempty"`
	IPAddress string     `db:"ip_address" json:"ip_address"`
	UserAgent string     `db:"user_agent" json:"user_agent"`
}

// PasswordResetSession stores a hashed one-time reset code. Codes expire after
// a short TTL and allow a bounded number of verification attempts.
type PasswordResetSession struct {
	ID         string     `db:"id" json:"id"`
	RequestID  string     `db:"request_id" json:"request_id"`
	UserID     string     `db:"user_id" json:"user_id"`
	CodeHash   string     `db:"code_hash" json:"-"`
	Attempts   int        `db:"attempts" json:"attempts"`
	ExpiresAt  time.Time  `db:"expires_at" json:"expires_at"`
	VerifiedAt *time.Time `db:"verified_at" json:"verified_at,omitempty"`
	UsedAt     *time.Time `db:"used_at" json:"used_at,omitempty"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
}
