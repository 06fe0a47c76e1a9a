// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 KodBank Contributors

package web

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/kodbank/kodbank/internal/auth"
	"github.com/kodbank/kodbank/pkg/errutil"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

type messageResponse struct {
	Message string `json:"message"`
}

// messages maps status codes to client-facing text for one route.
type messages map[int]string

func (m messages) text(status int) string {
	if msg, ok := m[status]; ok {
		return msg
	}
	return http.StatusText(status)
}

// statusFor maps the auth error classes to HTTP status codes.
// Anything unclassified is a server error.
func statusFor(err error) int {
	switch {
	case errors.Is(err, auth.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, auth.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, auth.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, auth.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, auth.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	//nolint:errcheck // client may disconnect
	json.NewEncoder(w).Encode(body)
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, messageResponse{Message: message})
}

// writeError responds with the status of err's class. Server errors are
// logged with their detail; the client only sees the route's message.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error, msgs messages) int {
	status := statusFor(err)
	if !auth.IsClientError(err) {
		errutil.LogErrorContext(r.Context(), logger, "request failed", err,
			"method", r.Method,
			"path", r.URL.Path)
	} else {
		logger.DebugContext(r.Context(), "request rejected",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"code", errutil.Code(err))
	}
	writeMessage(w, status, msgs.text(status))
	return status
}

// decodeJSON reads a single JSON object from the body.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("unexpected data after JSON object")
	}
	return nil
}
