// Package account provides the account store backing identity
// resolution. Accounts are re-read on every token verification, so
// status and role changes take effect on the next request.
package account

import (
	"context"
	"errors"
	"time"
)

// Account statuses.
const (
	StatusActive    = "active"
	StatusSuspended = "suspended"
)

// Role names used across the CRM.
const (
	RoleAdmin          = "admin"
	RoleProjectManager = "project_manager"
	RoleSalesExecutive = "sales_executive"
	RoleTeamMember     = "team_member"
	RoleFinanceOfficer = "finance_officer"
	RoleClient         = "client"
)

// Sentinel errors for account operations.
var (
	// ErrNotFound indicates that no account matches the lookup.
	ErrNotFound = errors.New("account not found")

	// ErrEmailExists indicates a create collision on the email index.
	ErrEmailExists = errors.New("email already exists")
)

// Account is a stored user record.
type Account struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"password_hash"`
	FirstName    string    `json:"first_name,omitempty"`
	LastName     string    `json:"last_name,omitempty"`
	Role         string    `json:"role"`
	Status       string    `json:"status"`
	LastLogin    time.Time `json:"last_login,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// IsActive reports whether the account may authenticate.
func (a *Account) IsActive() bool {
	return a.Status == StatusActive
}

// Store is the interface for account persistence.
type Store interface {
	// GetByID retrieves an account by its ID.
	GetByID(ctx context.Context, id string) (*Account, error)

	// GetByEmail retrieves an account by its email address.
	GetByEmail(ctx context.Context, email string) (*Account, error)

	// Create stores a new account. Fails with ErrEmailExists if the
	// email is already taken.
	Create(ctx context.Context, acc *Account) error

	// UpdatePassword replaces the password hash for the account with
	// the given email.
	UpdatePassword(ctx context.Context, email, passwordHash string) error

	// UpdateLastLogin records a successful login time.
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
}
