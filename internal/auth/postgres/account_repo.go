// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 KodBank Contributors

package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"
	"github.com/shopspring/decimal"

	"github.com/kodbank/kodbank/internal/auth"
)

// AccountRepository implements auth.AccountRepository using PostgreSQL.
type AccountRepository struct {
	pool Pool
}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository(pool Pool) *AccountRepository {
	return &AccountRepository{pool: pool}
}

// Create stores a new account.
func (r *AccountRepository) Create(ctx context.Context, account *auth.Account) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO accounts (username, external_id, password_hash, email, phone, role, balance, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		account.Username,
		account.ExternalID,
		account.PasswordHash,
		account.Email,
		account.Phone,
		string(account.Role),
		account.Balance.StringFixed(2),
		account.CreatedAt,
	)
	if err != nil {
		if constraint, ok := isUniqueViolation(err); ok {
			return oops.Code("ACCOUNT_EXISTS").
				With("username", account.Username).
				With("constraint", constraint).
				Wrap(auth.ErrConflict)
		}
		return oops.Code("ACCOUNT_CREATE_FAILED").
			With("operation", "insert account").
			With("username", account.Username).
			Wrap(err)
	}
	return nil
}

// GetByUsername retrieves an account by exact username.
func (r *AccountRepository) GetByUsername(ctx context.Context, username string) (*auth.Account, error) {
	var (
		account auth.Account
		role    string
		balance string
	)
	err := r.pool.QueryRow(ctx, `
		SELECT username, external_id, password_hash, email, phone, role, balance::text, created_at
		FROM accounts
		WHERE username = $1
	`, username).Scan(
		&account.Username,
		&account.ExternalID,
		&account.PasswordHash,
		&account.Email,
		&account.Phone,
		&role,
		&balance,
		&account.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").
			With("username", username).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("ACCOUNT_GET_FAILED").
			With("operation", "get account by username").
			With("username", username).
			Wrap(err)
	}

	account.Role = auth.Role(role)
	account.Balance, err = decimal.NewFromString(balance)
	if err != nil {
		return nil, oops.Code("ACCOUNT_SCAN_FAILED").
			With("operation", "parse balance").
			With("username", username).
			Wrap(err)
	}
	return &account, nil
}

// ExistsByUsernameOrEmail reports whether the username or email is taken.
func (r *AccountRepository) ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM accounts
			WHERE username = $1 OR lower(email) = lower($2)
		)
	`, username, email).Scan(&exists)
	if err != nil {
		return false, oops.Code("ACCOUNT_LOOKUP_FAILED").
			With("operation", "check username or email").
			With("username", username).
			Wrap(err)
	}
	return exists, nil
}

// GetBalance returns the balance of an account.
func (r *AccountRepository) GetBalance(ctx context.Context, username string) (decimal.Decimal, error) {
	var balance string
	err := r.pool.QueryRow(ctx, `
		SELECT balance::text FROM accounts WHERE username = $1
	`, username).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, oops.Code("ACCOUNT_NOT_FOUND").
			With("username", username).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return decimal.Zero, oops.Code("ACCOUNT_BALANCE_FAILED").
			With("operation", "get balance").
			With("username", username).
			Wrap(err)
	}

	amount, err := decimal.NewFromString(balance)
	if err != nil {
		return decimal.Zero, oops.Code("ACCOUNT_SCAN_FAILED").
			With("operation", "parse balance").
			With("username", username).
			Wrap(err)
	}
	return amount, nil
}

// Compile-time interface check.
var _ auth.AccountRepository = (*AccountRepository)(nil)
