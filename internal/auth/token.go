// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 KodBank Contributors

package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// ClaimsVersion is the version of the claims record carried in every token.
// Tokens with any other version are rejected as malformed.
const ClaimsVersion = 1

// MinSigningSecretLength is the minimum accepted HMAC secret length in bytes.
const MinSigningSecretLength = 32

// Claims is the fixed record embedded in a session token.
type Claims struct {
	Version   int
	ID        string
	Subject   string
	Role      Role
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TokenCodec issues and verifies signed, time-bounded session tokens.
type TokenCodec interface {
	// Issue produces a signed token for subject with the given role that
	// expires ttl from now.
	Issue(subject string, role Role, ttl time.Duration) (string, Claims, error)

	// Verify checks structure, signature and expiry, in that order, and
	// returns the embedded claims. Errors wrap ErrTokenMalformed,
	// ErrTokenBadSignature or ErrTokenExpired. Verify never touches a store.
	Verify(token string) (Claims, error)
}

// jwtClaims is the wire form of Claims.
type jwtClaims struct {
	Version int    `json:"ver"`
	Role    string `json:"role"`
	jwt.RegisteredClaims
}

// JWTCodec implements TokenCodec with HS256-signed JWTs.
type JWTCodec struct {
	secret []byte
	now    func() time.Time
}

// CodecOption configures a JWTCodec.
type CodecOption func(*JWTCodec)

// WithCodecClock overrides the time source used for issuing and verifying.
func WithCodecClock(now func() time.Time) CodecOption {
	return func(c *JWTCodec) {
		if now != nil {
			c.now = now
		}
	}
}

// NewJWTCodec creates a codec signing with secret.
func NewJWTCodec(secret string, opts ...CodecOption) (*JWTCodec, error) {
	if secret == "" {
		return nil, oops.Code("TOKEN_SECRET_MISSING").Errorf("signing secret is required")
	}
	if len(secret) < MinSigningSecretLength {
		return nil, oops.Code("TOKEN_SECRET_TOO_SHORT").
			With("min_length", MinSigningSecretLength).
			Errorf("signing secret must be at least %d bytes", MinSigningSecretLength)
	}
	c := &JWTCodec{
		secret: []byte(secret),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Issue produces a signed token.
func (c *JWTCodec) Issue(subject string, role Role, ttl time.Duration) (string, Claims, error) {
	if subject == "" {
		return "", Claims{}, oops.Code("TOKEN_ISSUE_FAILED").Errorf("subject cannot be empty")
	}
	if !role.Valid() {
		return "", Claims{}, oops.Code("TOKEN_ISSUE_FAILED").With("role", string(role)).Errorf("unknown role")
	}
	if ttl <= 0 {
		return "", Claims{}, oops.Code("TOKEN_ISSUE_FAILED").With("ttl", ttl.String()).Errorf("ttl must be positive")
	}

	now := c.now()
	issuedAt := jwt.NewNumericDate(now)
	expiresAt := jwt.NewNumericDate(now.Add(ttl))
	id := ulid.Make().String()

	wire := jwtClaims{
		Version: ClaimsVersion,
		Role:    string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        id,
			Subject:   subject,
			IssuedAt:  issuedAt,
			ExpiresAt: expiresAt,
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, wire).SignedString(c.secret)
	if err != nil {
		return "", Claims{}, oops.Code("TOKEN_ISSUE_FAILED").
			With("operation", "sign token").
			With("subject", subject).
			Wrap(err)
	}

	return signed, Claims{
		Version:   ClaimsVersion,
		ID:        id,
		Subject:   subject,
		Role:      role,
		IssuedAt:  issuedAt.Time,
		ExpiresAt: expiresAt.Time,
	}, nil
}

// Verify checks a token and returns its claims.
func (c *JWTCodec) Verify(token string) (Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithStrictDecoding(),
		jwt.WithTimeFunc(c.now),
	)

	var wire jwtClaims
	_, err := parser.ParseWithClaims(token, &wire, func(*jwt.Token) (any, error) {
		return c.secret, nil
	})
	if err != nil {
		return Claims{}, mapJWTError(err)
	}

	if wire.Version != ClaimsVersion {
		return Claims{}, oops.Code("TOKEN_MALFORMED").
			With("version", wire.Version).
			Wrapf(ErrTokenMalformed, "unsupported claims version")
	}
	if wire.Subject == "" || wire.ID == "" {
		return Claims{}, oops.Code("TOKEN_MALFORMED").Wrapf(ErrTokenMalformed, "missing subject or token id")
	}
	role := Role(wire.Role)
	if !role.Valid() {
		return Claims{}, oops.Code("TOKEN_MALFORMED").
			With("role", wire.Role).
			Wrapf(ErrTokenMalformed, "unknown role")
	}

	claims := Claims{
		Version:   wire.Version,
		ID:        wire.ID,
		Subject:   wire.Subject,
		Role:      role,
		ExpiresAt: wire.ExpiresAt.Time,
	}
	if wire.IssuedAt != nil {
		claims.IssuedAt = wire.IssuedAt.Time
	}
	return claims, nil
}

// mapJWTError folds jwt parser errors into the three verification failures.
// The parser checks the signature before the claims, so a tampered token
// never reaches the expiry check.
func mapJWTError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return oops.Code("TOKEN_BAD_SIGNATURE").Wrapf(ErrTokenBadSignature, "%v", err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return oops.Code("TOKEN_EXPIRED").Wrapf(ErrTokenExpired, "%v", err)
	default:
		return oops.Code("TOKEN_MALFORMED").Wrapf(ErrTokenMalformed, "%v", err)
	}
}
