// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 KodBank Contributors

// Package auth provides the credential and session primitives of KodBank.
//
// # Domain Types
//
// Domain types should be created using their constructors:
//   - NewAccount - creates a customer Account from a validated RegisterRequest
//   - NewSessionToken - creates the liveness record of an issued token
//
// Repository implementations receive pre-validated types from these constructors.
//
// # Tokens
//
// A session token is accepted only when it verifies under the TokenCodec
// (structure, signature, expiry) AND its digest is present in the TokenStore.
// Deleting the record revokes the token even though it still verifies.
//
// # Services
//
//   - Service - register, login, logout and per-request authentication
//   - AccountService - balance queries for an authenticated Identity
//   - Sweeper - periodic removal of expired token records
//
// Services are created with New* constructors that validate dependencies.
// Errors wrap one of ErrValidation, ErrConflict, ErrUnauthenticated,
// ErrForbidden or ErrNotFound; any other error is a dependency failure.
package auth
