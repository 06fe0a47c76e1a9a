// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 KodBank Contributors

package auth

import (
	"context"
	"strings"
	"time"

	"github.com/samber/oops"
	"github.com/shopspring/decimal"
)

// Role is the authorization role of an account.
type Role string

// Known roles.
const (
	RoleCustomer Role = "customer"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleCustomer:
		return true
	default:
		return false
	}
}

// DefaultStartingBalance is credited to every newly registered account.
var DefaultStartingBalance = decimal.RequireFromString("100000.00")

// Account represents a registered bank customer.
type Account struct {
	Username     string
	ExternalID   string
	PasswordHash string
	Email        string
	Phone        string
	Role         Role
	Balance      decimal.Decimal
	CreatedAt    time.Time
}

// RegisterRequest carries the fields required to open an account.
type RegisterRequest struct {
	ExternalID string
	Username   string
	Password   string
	Email      string
	Phone      string
}

// normalize trims surrounding whitespace from every field except the password.
func (r RegisterRequest) normalize() RegisterRequest {
	return RegisterRequest{
		ExternalID: strings.TrimSpace(r.ExternalID),
		Username:   strings.TrimSpace(r.Username),
		Password:   r.Password,
		Email:      strings.TrimSpace(r.Email),
		Phone:      strings.TrimSpace(r.Phone),
	}
}

// Validate checks that every field is present.
func (r RegisterRequest) Validate() error {
	fields := []struct {
		name  string
		value string
	}{
		{"uid", r.ExternalID},
		{"uname", r.Username},
		{"password", r.Password},
		{"email", r.Email},
		{"phone", r.Phone},
	}
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			return oops.Code("AUTH_VALIDATION_FAILED").
				With("field", f.name).
				Wrapf(ErrValidation, "%s is required", f.name)
		}
	}
	return nil
}

// NewAccount creates a customer account from a validated request.
// passwordHash must already be produced by a PasswordHasher.
func NewAccount(req RegisterRequest, passwordHash string, balance decimal.Decimal) (*Account, error) {
	req = req.normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if passwordHash == "" {
		return nil, oops.Code("ACCOUNT_INVALID_HASH").Errorf("password hash cannot be empty")
	}
	return &Account{
		Username:     req.Username,
		ExternalID:   req.ExternalID,
		PasswordHash: passwordHash,
		Email:        req.Email,
		Phone:        req.Phone,
		Role:         RoleCustomer,
		Balance:      balance,
		CreatedAt:    time.Now(),
	}, nil
}

// AccountRepository manages account persistence.
type AccountRepository interface {
	// Create stores a new account. Returns an error wrapping ErrConflict
	// when the username, email or external ID is already taken.
	Create(ctx context.Context, account *Account) error

	// GetByUsername retrieves an account by exact username.
	// Returns ErrNotFound if no account matches.
	GetByUsername(ctx context.Context, username string) (*Account, error)

	// ExistsByUsernameOrEmail reports whether any account already uses the
	// username or the email (case-insensitive). Performs a single lookup.
	ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error)

	// GetBalance returns the balance of the account with the given username.
	// Returns ErrNotFound if no account matches.
	GetBalance(ctx context.Context, username string) (decimal.Decimal, error)
}
