package models

import "time"

// RefreshTokenStatus only ever moves from active to revoked.
type RefreshTokenStatus string

const (
	RefreshTokenActive  RefreshTokenStatus = "active"
	RefreshTokenRevoked RefreshTokenStatus = "revoked"
)

// RefreshToken represents a persisted refresh token session.
type RefreshToken struct {
	ID        string             `db:"id" json:"id"`
	AccountID string             `db:"account_id" json:"account_id"`
	Token     string             `db:"token" json:"-"`
	ExpiresAt time.Time          `db:"expires_at" json:"expires_at"`
	IPAddress *string            `db:"ip_address" json:"ip_address,omitempty"`
	UserAgent *string            `db:"user_agent" json:"user_agent,omitempty"`
	Status    RefreshTokenStatus `db:"status" json:"status"`
	RevokedAt *time.Time         `db:"revoked_at" json:"revoked_at,omitempty"`
	// AccessJTI and AccessExpiresAt identify the access token issued with
	// this refresh token so a revocation can blacklist it.
	AccessJTI       *string    `db:"access_jti" json:"-"`
	AccessExpiresAt *time.Time `db:"access_expires_at" json:"-"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}

// TrackAccess records the access token issued alongside the refresh token.
func (t *RefreshToken) TrackAccess(jti string, expiresAt time.Time) {
	t.AccessJTI = &jti
	t.AccessExpiresAt = &expiresAt
}

// BlacklistedToken records an access token jti revoked before expiry.
type BlacklistedToken struct {
	ID        string    `db:"id" json:"id"`
	JTI       string    `db:"jti" json:"jti"`
	AccountID string    `db:"account_id" json:"account_id"`
	ExpiresAt time.Time `db:"expires_at" json:"expires_at"`
	Reason    *string   `db:"reason" json:"reason,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
