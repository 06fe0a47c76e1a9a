// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 KodBank Contributors

package web

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/kodbank/kodbank/internal/auth"
	"github.com/kodbank/kodbank/pkg/errutil"
)

// Guard rejection reasons recorded as metric labels.
const (
	reasonMissing = "missing"
	reasonExpired = "expired"
	reasonInvalid = "invalid"
	reasonRevoked = "revoked"
	reasonError   = "error"
)

var guardMessages = messages{
	http.StatusUnauthorized:        "Access denied. No token provided.",
	http.StatusInternalServerError: "Server error",
}

// guardRejection classifies an Authenticate failure. Verification failures
// and unknown tokens are both 403 but carry distinct messages.
func guardRejection(err error) (status int, reason, message string) {
	switch {
	case errors.Is(err, auth.ErrUnauthenticated):
		return http.StatusUnauthorized, reasonMissing, guardMessages.text(http.StatusUnauthorized)
	case errors.Is(err, auth.ErrTokenExpired):
		return http.StatusForbidden, reasonExpired, "Invalid token."
	case auth.IsVerificationError(err):
		return http.StatusForbidden, reasonInvalid, "Invalid token."
	case errors.Is(err, auth.ErrForbidden):
		return http.StatusForbidden, reasonRevoked, "Invalid or expired token."
	default:
		return http.StatusInternalServerError, reasonError, guardMessages.text(http.StatusInternalServerError)
	}
}

// Guard admits requests carrying a live session token and attaches the
// caller's identity to the request context.
func Guard(sessions SessionService, recorder Recorder, logger *slog.Logger) func(http.Handler) http.Handler {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, _ := readSessionCookie(r)

			id, err := sessions.Authenticate(r.Context(), token)
			if err != nil {
				status, reason, message := guardRejection(err)
				recorder.RecordGuardRejection(reason)
				if status == http.StatusInternalServerError {
					errutil.LogErrorContext(r.Context(), logger, "session check failed", err,
						"path", r.URL.Path)
				} else {
					logger.DebugContext(r.Context(), "access denied",
						"path", r.URL.Path,
						"reason", reason,
						"code", errutil.Code(err))
				}
				writeMessage(w, status, message)
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), id)))
		})
	}
}
