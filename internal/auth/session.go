// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 KodBank Contributors

package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/samber/oops"
)

// DefaultTokenTTL is the lifetime of a session token issued at login.
const DefaultTokenTTL = time.Hour

// SessionToken is the liveness record of an issued token.
// Only the SHA-256 digest of the token is stored.
type SessionToken struct {
	TokenHash string
	Username  string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// NewSessionToken creates a validated SessionToken for a serialized token.
func NewSessionToken(username, token string, issuedAt, expiresAt time.Time) (*SessionToken, error) {
	if username == "" {
		return nil, oops.Code("SESSION_INVALID_USERNAME").Errorf("username cannot be empty")
	}
	if token == "" {
		return nil, oops.Code("SESSION_TOKEN_EMPTY").Errorf("session token cannot be empty")
	}
	if issuedAt.IsZero() || expiresAt.IsZero() {
		return nil, oops.Code("SESSION_INVALID_EXPIRY").Errorf("issue and expiry times cannot be zero")
	}
	if !expiresAt.After(issuedAt) {
		return nil, oops.Code("SESSION_INVALID_EXPIRY").
			With("issued_at", issuedAt).
			With("expires_at", expiresAt).
			Errorf("expiry must be after issue time")
	}
	return &SessionToken{
		TokenHash: HashToken(token),
		Username:  username,
		IssuedAt:  issuedAt,
		ExpiresAt: expiresAt,
	}, nil
}

// HashToken computes the hex SHA-256 digest under which a token is stored.
func HashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// TokenStore manages session token liveness records.
type TokenStore interface {
	// Persist inserts a new record. It never overwrites an existing one.
	Persist(ctx context.Context, token *SessionToken) error

	// Exists reports whether a record with the digest is present.
	Exists(ctx context.Context, tokenHash string) (bool, error)

	// Revoke deletes the record with the digest. Revoking an absent record succeeds.
	Revoke(ctx context.Context, tokenHash string) error

	// RevokeAll deletes every record of a user and returns the count removed.
	RevokeAll(ctx context.Context, username string) (int64, error)

	// DeleteExpired removes records whose expiry is at or before now and
	// returns the count removed.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
