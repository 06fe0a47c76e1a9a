// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 KodBank Contributors

package postgres

import (
	"context"
	"time"

	"github.com/samber/oops"

	"github.com/kodbank/kodbank/internal/auth"
)

// TokenRepository implements auth.TokenStore using PostgreSQL.
type TokenRepository struct {
	pool Pool
}

// NewTokenRepository creates a new TokenRepository.
func NewTokenRepository(pool Pool) *TokenRepository {
	return &TokenRepository{pool: pool}
}

// Persist inserts a session token record.
func (r *TokenRepository) Persist(ctx context.Context, token *auth.SessionToken) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO session_tokens (token_hash, username, issued_at, expires_at)
		VALUES ($1, $2, $3, $4)
	`,
		token.TokenHash,
		token.Username,
		token.IssuedAt,
		token.ExpiresAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return oops.Code("SESSION_ACCOUNT_MISSING").
				With("username", token.Username).
				Wrap(err)
		}
		if _, ok := isUniqueViolation(err); ok {
			return oops.Code("SESSION_DUPLICATE").
				With("username", token.Username).
				Wrap(err)
		}
		return oops.Code("SESSION_CREATE_FAILED").
			With("operation", "insert session_token").
			With("username", token.Username).
			Wrap(err)
	}
	return nil
}

// Exists reports whether a record with the digest is present.
func (r *TokenRepository) Exists(ctx context.Context, tokenHash string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM session_tokens WHERE token_hash = $1)
	`, tokenHash).Scan(&exists)
	if err != nil {
		return false, oops.Code("SESSION_LOOKUP_FAILED").
			With("operation", "check session_token").
			Wrap(err)
	}
	return exists, nil
}

// Revoke deletes a record. An absent record is not an error.
func (r *TokenRepository) Revoke(ctx context.Context, tokenHash string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM session_tokens WHERE token_hash = $1`, tokenHash)
	if err != nil {
		return oops.Code("SESSION_REVOKE_FAILED").
			With("operation", "delete session_token").
			Wrap(err)
	}
	return nil
}

// RevokeAll deletes every record of a user.
func (r *TokenRepository) RevokeAll(ctx context.Context, username string) (int64, error) {
	result, err := r.pool.Exec(ctx, `DELETE FROM session_tokens WHERE username = $1`, username)
	if err != nil {
		return 0, oops.Code("SESSION_REVOKE_ALL_FAILED").
			With("operation", "delete session_tokens by username").
			With("username", username).
			Wrap(err)
	}
	return result.RowsAffected(), nil
}

// DeleteExpired removes records whose expiry is at or before now, matching
// the codec, which rejects a token from its exp second on.
func (r *TokenRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.pool.Exec(ctx, `DELETE FROM session_tokens WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, oops.Code("SESSION_DELETE_EXPIRED_FAILED").
			With("operation", "delete expired session_tokens").
			Wrap(err)
	}
	return result.RowsAffected(), nil
}

// Compile-time interface check.
var _ auth.TokenStore = (*TokenRepository)(nil)
