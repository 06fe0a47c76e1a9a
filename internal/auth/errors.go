// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 KodBank Contributors

package auth

import "errors"

// Failure classes surfaced to callers. Service errors wrap exactly one of
// these (or none, for dependency failures) and carry an oops code for logs.
var (
	// ErrValidation is returned when input is missing or malformed.
	ErrValidation = errors.New("validation failed")

	// ErrConflict is returned when an account with the same identity exists.
	ErrConflict = errors.New("already exists")

	// ErrUnauthenticated is returned when no credential or a wrong credential is presented.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrForbidden is returned when a credential is presented but is invalid, expired or revoked.
	ErrForbidden = errors.New("forbidden")

	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("not found")
)

// Token verification failures.
var (
	ErrTokenMalformed    = errors.New("token malformed")
	ErrTokenBadSignature = errors.New("token signature invalid")
	ErrTokenExpired      = errors.New("token expired")
)

// IsVerificationError reports whether err is one of the token verification failures.
func IsVerificationError(err error) bool {
	return errors.Is(err, ErrTokenMalformed) ||
		errors.Is(err, ErrTokenBadSignature) ||
		errors.Is(err, ErrTokenExpired)
}

// IsClientError reports whether err belongs to a client-correctable class.
// Anything else is a dependency failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrUnauthenticated) ||
		errors.Is(err, ErrForbidden) ||
		errors.Is(err, ErrNotFound)
}
