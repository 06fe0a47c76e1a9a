// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 KodBank Contributors

package auth_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kodbank/kodbank/internal/auth"
	"github.com/kodbank/kodbank/pkg/errutil"
)

func validRegisterRequest() auth.RegisterRequest {
	return auth.RegisterRequest{
		ExternalID: "U1",
		Username:   "alice",
		Password:   "pw",
		Email:      "a@x.com",
		Phone:      "555",
	}
}

func TestRole_Valid(t *testing.T) {
	assert.True(t, auth.RoleCustomer.Valid())
	assert.False(t, auth.Role("").Valid())
	assert.False(t, auth.Role("admin").Valid())
}

func TestRegisterRequest_Validate(t *testing.T) {
	require.NoError(t, validRegisterRequest().Validate())

	tests := []struct {
		field  string
		mutate func(*auth.RegisterRequest)
	}{
		{"uid", func(r *auth.RegisterRequest) { r.ExternalID = "" }},
		{"uname", func(r *auth.RegisterRequest) { r.Username = "  " }},
		{"password", func(r *auth.RegisterRequest) { r.Password = "" }},
		{"email", func(r *auth.RegisterRequest) { r.Email = "" }},
		{"phone", func(r *auth.RegisterRequest) { r.Phone = "\t" }},
	}
	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			req := validRegisterRequest()
			tt.mutate(&req)
			err := req.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, auth.ErrValidation)
			errutil.AssertErrorCode(t, err, "AUTH_VALIDATION_FAILED")
			errutil.AssertErrorContext(t, err, "field", tt.field)
		})
	}
}

func TestNewAccount(t *testing.T) {
	t.Run("creates customer with trimmed fields", func(t *testing.T) {
		req := validRegisterRequest()
		req.Username = "  alice "
		req.Password = " pw "

		account, err := auth.NewAccount(req, "hash", auth.DefaultStartingBalance)
		require.NoError(t, err)
		assert.Equal(t, "alice", account.Username)
		assert.Equal(t, auth.RoleCustomer, account.Role)
		assert.Equal(t, "hash", account.PasswordHash)
		assert.True(t, decimal.RequireFromString("100000").Equal(account.Balance))
		assert.False(t, account.CreatedAt.IsZero())
	})

	t.Run("requires hash", func(t *testing.T) {
		_, err := auth.NewAccount(validRegisterRequest(), "", auth.DefaultStartingBalance)
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "ACCOUNT_INVALID_HASH")
	})

	t.Run("validates request", func(t *testing.T) {
		req := validRegisterRequest()
		req.Email = ""
		_, err := auth.NewAccount(req, "hash", auth.DefaultStartingBalance)
		assert.ErrorIs(t, err, auth.ErrValidation)
	})
}
