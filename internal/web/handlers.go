// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 KodBank Contributors

package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/samber/oops"
	"github.com/shopspring/decimal"

	"github.com/kodbank/kodbank/internal/auth"
	"github.com/kodbank/kodbank/pkg/errutil"
)

// SessionService is the subset of auth.Service used by the API.
type SessionService interface {
	Register(ctx context.Context, req auth.RegisterRequest) (*auth.Account, error)
	Login(ctx context.Context, username, password string) (*auth.LoginResult, error)
	Logout(ctx context.Context, token string) error
	LogoutAll(ctx context.Context, id auth.Identity) (int64, error)
	Authenticate(ctx context.Context, token string) (auth.Identity, error)
}

// BalanceService reads account balances.
type BalanceService interface {
	GetBalance(ctx context.Context, id auth.Identity) (decimal.Decimal, error)
}

// Recorder receives request and security events for metrics.
type Recorder interface {
	RecordRequest(route string, status int)
	RecordLogin(result string)
	RecordGuardRejection(reason string)
}

type nopRecorder struct{}

func (nopRecorder) RecordRequest(string, int)   {}
func (nopRecorder) RecordLogin(string)          {}
func (nopRecorder) RecordGuardRejection(string) {}

// Login results recorded as metric labels.
const (
	loginSuccess  = "success"
	loginRejected = "rejected"
	loginInvalid  = "invalid"
	loginError    = "error"
)

// RootMessage is the body of GET /.
const RootMessage = "KodBank API is running"

var (
	registerMessages = messages{
		http.StatusCreated:             "User registered successfully",
		http.StatusBadRequest:          "All fields are required",
		http.StatusConflict:            "Username or Email already exists",
		http.StatusInternalServerError: "Server error during registration",
	}
	loginMessages = messages{
		http.StatusOK:                  "Login successful",
		http.StatusBadRequest:          "Username and password are required",
		http.StatusUnauthorized:        "Invalid username or password",
		http.StatusInternalServerError: "Server error during login",
	}
	logoutMessages = messages{
		http.StatusOK:                  "Logged out successfully",
		http.StatusInternalServerError: "Server error during logout",
	}
	balanceMessages = messages{
		http.StatusNotFound:            "User not found",
		http.StatusInternalServerError: "Server error",
	}
)

// API serves the KodBank JSON endpoints.
type API struct {
	sessions SessionService
	balances BalanceService
	recorder Recorder
	logger   *slog.Logger
	cookie   CookieConfig
}

// APIOption configures an API.
type APIOption func(*API)

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) APIOption {
	return func(a *API) {
		a.recorder = r
	}
}

// WithAPILogger sets the logger for request failures.
func WithAPILogger(logger *slog.Logger) APIOption {
	return func(a *API) {
		a.logger = logger
	}
}

// NewAPI creates the API handlers.
func NewAPI(sessions SessionService, balances BalanceService, cookie CookieConfig, opts ...APIOption) (*API, error) {
	if sessions == nil {
		return nil, oops.Code("WEB_INVALID_CONFIG").Errorf("session service is required")
	}
	if balances == nil {
		return nil, oops.Code("WEB_INVALID_CONFIG").Errorf("balance service is required")
	}
	if cookie.MaxAge <= 0 {
		return nil, oops.Code("WEB_INVALID_CONFIG").Errorf("cookie max age must be positive")
	}

	a := &API{
		sessions: sessions,
		balances: balances,
		recorder: nopRecorder{},
		logger:   slog.Default(),
		cookie:   cookie,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.recorder == nil {
		a.recorder = nopRecorder{}
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	return a, nil
}

// Routes returns the mux with every endpoint registered.
func (a *API) Routes() *http.ServeMux {
	guard := Guard(a.sessions, a.recorder, a.logger)

	mux := http.NewServeMux()
	mux.Handle("GET /{$}", a.instrument("root", http.HandlerFunc(a.handleRoot)))
	mux.Handle("POST /api/auth/register", a.instrument("register", http.HandlerFunc(a.handleRegister)))
	mux.Handle("POST /api/auth/login", a.instrument("login", http.HandlerFunc(a.handleLogin)))
	mux.Handle("POST /api/auth/logout", a.instrument("logout", http.HandlerFunc(a.handleLogout)))
	mux.Handle("POST /api/auth/logout-all", a.instrument("logout_all", guard(http.HandlerFunc(a.handleLogoutAll))))
	mux.Handle("GET /api/user/balance", a.instrument("balance", guard(http.HandlerFunc(a.handleBalance))))
	return mux
}

// flexString accepts a JSON string or number. Clients send uid either way.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return errors.New("must be a string or number")
	}
	*f = flexString(n.String())
	return nil
}

type registerRequest struct {
	UID      flexString `json:"uid"`
	Username string     `json:"uname"`
	Password string     `json:"password"`
	Email    string     `json:"email"`
	Phone    string     `json:"phone"`
}

type loginRequest struct {
	Username string `json:"uname"`
	Password string `json:"password"`
}

type loginResponse struct {
	Message string    `json:"message"`
	Role    auth.Role `json:"role"`
}

type logoutAllResponse struct {
	Message string `json:"message"`
	Revoked int64  `json:"revoked"`
}

type balanceResponse struct {
	Balance json.Number `json:"balance"`
}

func (a *API) handleRoot(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	//nolint:errcheck // client may disconnect
	w.Write([]byte(RootMessage))
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	var body registerRequest
	if err := decodeJSON(w, r, &body); err != nil {
		writeMessage(w, http.StatusBadRequest, registerMessages.text(http.StatusBadRequest))
		return
	}

	_, err := a.sessions.Register(r.Context(), auth.RegisterRequest{
		ExternalID: string(body.UID),
		Username:   body.Username,
		Password:   body.Password,
		Email:      body.Email,
		Phone:      body.Phone,
	})
	if err != nil {
		writeError(w, r, a.logger, err, registerMessages)
		return
	}
	writeMessage(w, http.StatusCreated, registerMessages.text(http.StatusCreated))
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body loginRequest
	if err := decodeJSON(w, r, &body); err != nil {
		a.recorder.RecordLogin(loginRejected)
		writeMessage(w, http.StatusBadRequest, loginMessages.text(http.StatusBadRequest))
		return
	}

	result, err := a.sessions.Login(r.Context(), body.Username, body.Password)
	if err != nil {
		switch writeError(w, r, a.logger, err, loginMessages) {
		case http.StatusBadRequest:
			a.recorder.RecordLogin(loginRejected)
		case http.StatusUnauthorized:
			a.recorder.RecordLogin(loginInvalid)
		default:
			a.recorder.RecordLogin(loginError)
		}
		return
	}

	a.recorder.RecordLogin(loginSuccess)
	writeSessionCookie(w, a.cookie, result.Token)
	writeJSON(w, http.StatusOK, loginResponse{
		Message: loginMessages.text(http.StatusOK),
		Role:    result.Role,
	})
}

// handleLogout revokes the presented token, if any, and clears the cookie.
// Logging out without a session succeeds.
func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	token, ok := readSessionCookie(r)
	clearSessionCookie(w, a.cookie)
	if !ok {
		writeMessage(w, http.StatusOK, logoutMessages.text(http.StatusOK))
		return
	}

	if err := a.sessions.Logout(r.Context(), token); err != nil {
		errutil.LogErrorContext(r.Context(), a.logger, "logout failed", err)
		writeMessage(w, http.StatusInternalServerError, logoutMessages.text(http.StatusInternalServerError))
		return
	}
	writeMessage(w, http.StatusOK, logoutMessages.text(http.StatusOK))
}

func (a *API) handleLogoutAll(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeMessage(w, http.StatusUnauthorized, guardMessages.text(http.StatusUnauthorized))
		return
	}

	n, err := a.sessions.LogoutAll(r.Context(), id)
	if err != nil {
		writeError(w, r, a.logger, err, logoutMessages)
		return
	}
	clearSessionCookie(w, a.cookie)
	writeJSON(w, http.StatusOK, logoutAllResponse{
		Message: logoutMessages.text(http.StatusOK),
		Revoked: n,
	})
}

func (a *API) handleBalance(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeMessage(w, http.StatusUnauthorized, guardMessages.text(http.StatusUnauthorized))
		return
	}

	balance, err := a.balances.GetBalance(r.Context(), id)
	if err != nil {
		writeError(w, r, a.logger, err, balanceMessages)
		return
	}
	writeJSON(w, http.StatusOK, balanceResponse{Balance: json.Number(balance.StringFixed(2))})
}

// statusRecorder captures the response status for metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	if s.status == 0 {
		s.status = code
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	if s.status == 0 {
		s.status = http.StatusOK
	}
	return s.ResponseWriter.Write(b)
}

func (s *statusRecorder) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}

// instrument records the final status of every request to route.
func (a *API) instrument(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)
		if rec.status == 0 {
			rec.status = http.StatusOK
		}
		a.recorder.RecordRequest(route, rec.status)
	})
}
