// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 KodBank Contributors

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/samber/oops"
	"github.com/shopspring/decimal"
)

// Service provides registration, login, logout and token authentication.
type Service struct {
	accounts        AccountRepository
	tokens          TokenStore
	hasher          PasswordHasher
	codec           TokenCodec
	logger          *slog.Logger
	tokenTTL        time.Duration
	startingBalance decimal.Decimal
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithLogger sets the logger used for credential and store events.
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithTokenTTL sets the lifetime of tokens issued at login.
func WithTokenTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) {
		s.tokenTTL = ttl
	}
}

// WithStartingBalance sets the balance credited to new accounts.
func WithStartingBalance(balance decimal.Decimal) ServiceOption {
	return func(s *Service) {
		s.startingBalance = balance
	}
}

// LoginResult is returned by a successful login.
type LoginResult struct {
	Token     string
	Role      Role
	ExpiresAt time.Time
}

// NewAuthService creates a new Service.
func NewAuthService(accounts AccountRepository, tokens TokenStore, hasher PasswordHasher, codec TokenCodec, opts ...ServiceOption) (*Service, error) {
	if accounts == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("accounts repository is required")
	}
	if tokens == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("token store is required")
	}
	if hasher == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("password hasher is required")
	}
	if codec == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("token codec is required")
	}

	s := &Service{
		accounts:        accounts,
		tokens:          tokens,
		hasher:          hasher,
		codec:           codec,
		logger:          slog.Default(),
		tokenTTL:        DefaultTokenTTL,
		startingBalance: DefaultStartingBalance,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("logger cannot be nil")
	}
	if s.tokenTTL < time.Second {
		return nil, oops.Code("AUTH_INVALID_CONFIG").
			With("token_ttl", s.tokenTTL.String()).
			Errorf("token ttl must be at least one second")
	}
	if s.startingBalance.IsNegative() {
		return nil, oops.Code("AUTH_INVALID_CONFIG").
			With("starting_balance", s.startingBalance.String()).
			Errorf("starting balance cannot be negative")
	}
	return s, nil
}

// TokenTTL returns the lifetime of tokens issued at login.
func (s *Service) TokenTTL() time.Duration {
	return s.tokenTTL
}

// dummyPasswordHash is verified when a user doesn't exist so that response
// time does not reveal whether the username is registered.
// It never matches any password.
//
//nolint:gosec // G101: intentionally fake hash for timing attack prevention, not a credential.
const dummyPasswordHash = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// Register opens a customer account. It does not log the user in.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*Account, error) {
	req = req.normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	exists, err := s.accounts.ExistsByUsernameOrEmail(ctx, req.Username, req.Email)
	if err != nil {
		return nil, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "check existing account").
			With("username", req.Username).
			Wrap(err)
	}
	if exists {
		return nil, oops.Code("AUTH_ACCOUNT_EXISTS").
			With("username", req.Username).
			Wrapf(ErrConflict, "username or email already exists")
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "hash password").
			With("username", req.Username).
			Wrap(err)
	}

	account, err := NewAccount(req, hash, s.startingBalance)
	if err != nil {
		return nil, err
	}

	if err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, ErrConflict) {
			return nil, oops.Code("AUTH_ACCOUNT_EXISTS").
				With("username", req.Username).
				Wrap(err)
		}
		return nil, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "create account").
			With("username", req.Username).
			Wrap(err)
	}

	s.logger.InfoContext(ctx, "account registered", "username", account.Username)
	return account, nil
}

// Login checks credentials, issues a token and records it as live.
// Unknown usernames and wrong passwords fail identically.
func (s *Service) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, oops.Code("AUTH_VALIDATION_FAILED").
			Wrapf(ErrValidation, "username and password are required")
	}

	account, lookupErr := s.accounts.GetByUsername(ctx, username)

	var targetHash string
	var accountExists bool
	if lookupErr != nil {
		if !errors.Is(lookupErr, ErrNotFound) {
			return nil, oops.Code("AUTH_LOGIN_FAILED").
				With("operation", "get account by username").
				With("username", username).
				Wrap(lookupErr)
		}
		targetHash = dummyPasswordHash
	} else {
		targetHash = account.PasswordHash
		accountExists = true
	}

	valid, verifyErr := s.hasher.Verify(password, targetHash)
	if verifyErr != nil && accountExists {
		return nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "verify password").
			With("username", username).
			Wrap(verifyErr)
	}

	if !accountExists || !valid || verifyErr != nil {
		s.logger.InfoContext(ctx, "login rejected", "username", username)
		return nil, oops.Code("AUTH_INVALID_CREDENTIALS").
			Wrapf(ErrUnauthenticated, "invalid username or password")
	}

	token, claims, err := s.codec.Issue(account.Username, account.Role, s.tokenTTL)
	if err != nil {
		return nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "issue token").
			With("username", username).
			Wrap(err)
	}

	record, err := NewSessionToken(account.Username, token, claims.IssuedAt, claims.ExpiresAt)
	if err != nil {
		return nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "create session record").
			With("username", username).
			Wrap(err)
	}

	if err := s.tokens.Persist(ctx, record); err != nil {
		return nil, oops.Code("AUTH_SESSION_CREATE_FAILED").
			With("operation", "persist session token").
			With("username", username).
			Wrap(err)
	}

	s.logger.InfoContext(ctx, "login succeeded", "username", account.Username, "expires_at", claims.ExpiresAt)
	return &LoginResult{
		Token:     token,
		Role:      account.Role,
		ExpiresAt: claims.ExpiresAt,
	}, nil
}

// Logout revokes a token. Revoking an unknown token succeeds.
func (s *Service) Logout(ctx context.Context, token string) error {
	if token == "" {
		return oops.Code("AUTH_TOKEN_MISSING").Wrapf(ErrUnauthenticated, "no session token presented")
	}
	if err := s.tokens.Revoke(ctx, HashToken(token)); err != nil {
		return oops.Code("AUTH_LOGOUT_FAILED").
			With("operation", "revoke session token").
			Wrap(err)
	}
	return nil
}

// LogoutAll revokes every token of the identity and returns the count revoked.
func (s *Service) LogoutAll(ctx context.Context, id Identity) (int64, error) {
	if id.Username == "" {
		return 0, oops.Code("AUTH_TOKEN_MISSING").Wrapf(ErrUnauthenticated, "no authenticated identity")
	}
	n, err := s.tokens.RevokeAll(ctx, id.Username)
	if err != nil {
		return 0, oops.Code("AUTH_LOGOUT_FAILED").
			With("operation", "revoke all session tokens").
			With("username", id.Username).
			Wrap(err)
	}
	s.logger.InfoContext(ctx, "all sessions revoked", "username", id.Username, "count", n)
	return n, nil
}

// Authenticate gates a protected request. The token must verify under the
// codec and have a live record in the token store; neither check alone is
// sufficient. It performs no writes.
func (s *Service) Authenticate(ctx context.Context, token string) (Identity, error) {
	if token == "" {
		return Identity{}, oops.Code("AUTH_TOKEN_MISSING").Wrapf(ErrUnauthenticated, "no session token presented")
	}

	claims, err := s.codec.Verify(token)
	if err != nil {
		return Identity{}, oops.Code("AUTH_TOKEN_INVALID").
			Wrap(fmt.Errorf("%w: %w", ErrForbidden, err))
	}

	live, err := s.tokens.Exists(ctx, HashToken(token))
	if err != nil {
		return Identity{}, oops.Code("AUTH_TOKEN_LOOKUP_FAILED").
			With("operation", "check session token").
			With("username", claims.Subject).
			Wrap(err)
	}
	if !live {
		return Identity{}, oops.Code("AUTH_TOKEN_REVOKED").
			With("username", claims.Subject).
			Wrapf(ErrForbidden, "session token is not live")
	}

	return Identity{Username: claims.Subject, Role: claims.Role}, nil
}
