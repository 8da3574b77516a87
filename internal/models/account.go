package models

import (
	"encoding/json"
	"time"
)

// Role is the business classification of an account. It decides which
// profile table holds the account's profile and never changes.
type Role string

const (
	RoleStudent         Role = "student"
	RoleLecturer        Role = "lecturer"
	RoleAdmin           Role = "admin"
	RoleTrainingOfficer Role = "training_officer"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleLecturer, RoleAdmin, RoleTrainingOfficer:
		return true
	}
	return false
}

// AccountStatus gates authentication.
type AccountStatus string

const (
	AccountStatusActive    AccountStatus = "active"
	AccountStatusInactive  AccountStatus = "inactive"
	AccountStatusSuspended AccountStatus = "suspended"
)

// Account is an identity row in the accounts table.
type Account struct {
	ID           string        `db:"id" json:"id"`
	Email        string        `db:"email" json:"email"`
	PasswordHash *string       `db:"password_hash" json:"-"`
	Name         string        `db:"name" json:"name"`
	Role         Role          `db:"role" json:"role"`
	GoogleID     *string       `db:"google_id" json:"google_id,omitempty"`
	Status       AccountStatus `db:"status" json:"status"`
	LastLogin    *time.Time    `db:"last_login" json:"last_login,omitempty"`
	CreatedAt    time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time     `db:"updated_at" json:"updated_at"`

	Profile Profile `db:"-" json:"profile,omitempty"`
}

// AccountFilter captures filtering criteria for listing accounts.
type AccountFilter struct {
	Role      *Role
	Status    *AccountStatus
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// UpdateAccountStatusRequest changes whether an account may authenticate.
type UpdateAccountStatusRequest struct {
	Status AccountStatus `json:"status" validate:"required,oneof=active inactive suspended"`
}

// UpdateProfileRequest replaces the mutable profile columns. Role, when
// given, must match the account's role.
type UpdateProfileRequest struct {
	Role    Role            `json:"role,omitempty"`
	Profile json.RawMessage `json:"profile" validate:"required" swaggertype:"object"`
}
