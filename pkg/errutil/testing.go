// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 KodBank Contributors

package errutil

import (
	"fmt"
	"strings"
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// AssertErrorCode asserts that err is an oops error whose innermost code is code.
func AssertErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	_, ok := oops.AsOops(err)
	require.True(t, ok, "expected oops error, got %T", err)
	assert.Equal(t, code, Code(err))
}

// AssertErrorContext asserts that err carries the given context key/value.
func AssertErrorContext(t *testing.T, err error, key string, value any) {
	t.Helper()
	oopsErr, ok := oops.AsOops(err)
	require.True(t, ok, "expected oops error, got %T", err)
	ctx := oopsErr.Context()
	if assert.Contains(t, ctx, key) {
		assert.Equal(t, value, ctx[key])
	}
}

// AssertNoSecret asserts that secret appears neither in the error text nor
// in any context value, where it would reach the logs.
func AssertNoSecret(t *testing.T, err error, secret string) {
	t.Helper()
	require.NotEmpty(t, secret)
	require.Error(t, err)
	assert.NotContains(t, err.Error(), secret, "secret in error message")

	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return
	}
	for key, value := range oopsErr.Context() {
		assert.False(t, strings.Contains(fmt.Sprint(value), secret), "secret in error context %q", key)
	}
}
