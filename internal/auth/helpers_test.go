// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 KodBank Contributors

package auth_test

import "errors"

func errorsIsAny(err error, targets ...error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
