// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 KodBank Contributors

package web

import (
	"net/http"
	"strings"
	"time"
)

// SessionCookieName carries the session token.
const SessionCookieName = "auth_token"

// CookieConfig controls the attributes of the session cookie.
type CookieConfig struct {
	// Secure restricts the cookie to HTTPS.
	Secure bool
	// MaxAge should equal the token lifetime.
	MaxAge time.Duration
}

// readSessionCookie returns the trimmed token when the cookie is present.
func readSessionCookie(r *http.Request) (string, bool) {
	var value string
	if cookie, err := r.Cookie(SessionCookieName); err == nil {
		value = cookie.Value
	} else {
		// net/http drops values containing bytes outside the cookie-octet
		// set. A present but damaged token still goes to verification.
		value = rawCookieValue(r.Header.Values("Cookie"), SessionCookieName)
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return "", false
	}
	return value, true
}

// rawCookieValue finds name in unparsed Cookie header lines.
func rawCookieValue(lines []string, name string) string {
	prefix := name + "="
	for _, line := range lines {
		for part := range strings.SplitSeq(line, ";") {
			if v, ok := strings.CutPrefix(strings.TrimSpace(part), prefix); ok {
				return v
			}
		}
	}
	return ""
}

func writeSessionCookie(w http.ResponseWriter, cfg CookieConfig, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(cfg.MaxAge / time.Second),
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearSessionCookie(w http.ResponseWriter, cfg CookieConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}
