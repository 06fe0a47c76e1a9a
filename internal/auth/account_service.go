// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 KodBank Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/samber/oops"
	"github.com/shopspring/decimal"
)

// AccountService serves read-only account queries for authenticated identities.
type AccountService struct {
	accounts AccountRepository
	logger   *slog.Logger
}

// NewAccountService creates a new AccountService.
func NewAccountService(accounts AccountRepository, logger *slog.Logger) (*AccountService, error) {
	if accounts == nil {
		return nil, oops.Code("ACCOUNT_INVALID_CONFIG").Errorf("accounts repository is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AccountService{accounts: accounts, logger: logger}, nil
}

// GetBalance returns the balance of the identity's own account.
func (s *AccountService) GetBalance(ctx context.Context, id Identity) (decimal.Decimal, error) {
	if id.Username == "" {
		return decimal.Zero, oops.Code("AUTH_TOKEN_MISSING").Wrapf(ErrUnauthenticated, "no authenticated identity")
	}

	balance, err := s.accounts.GetBalance(ctx, id.Username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// A live token for a missing account means issuance and
			// account removal disagree.
			s.logger.WarnContext(ctx, "authenticated identity has no account", "username", id.Username)
			return decimal.Zero, oops.Code("ACCOUNT_NOT_FOUND").
				With("username", id.Username).
				Wrap(err)
		}
		return decimal.Zero, oops.Code("ACCOUNT_QUERY_FAILED").
			With("operation", "get balance").
			With("username", id.Username).
			Wrap(err)
	}
	return balance, nil
}
