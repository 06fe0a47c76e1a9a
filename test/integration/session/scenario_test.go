// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 KodBank Contributors

//go:build integration

package session_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/kodbank/kodbank/internal/web"
)

type response struct {
	status  int
	body    map[string]any
	cookies []*http.Cookie
}

func (r response) message() string {
	msg, _ := r.body["message"].(string)
	return msg
}

func (r response) sessionCookie() *http.Cookie {
	for _, c := range r.cookies {
		if c.Name == web.SessionCookieName {
			return c
		}
	}
	return nil
}

func call(method, path string, body any, cookies ...*http.Cookie) response {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		Expect(err).NotTo(HaveOccurred())
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(env.ctx, method, env.server.URL+path, reader)
	Expect(err).NotTo(HaveOccurred())
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}

	resp, err := env.server.Client().Do(req)
	Expect(err).NotTo(HaveOccurred())
	defer resp.Body.Close()

	out := response{status: resp.StatusCode, cookies: resp.Cookies()}
	raw, err := io.ReadAll(resp.Body)
	Expect(err).NotTo(HaveOccurred())
	if len(raw) > 0 {
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		Expect(dec.Decode(&out.body)).To(Succeed())
	}
	return out
}

func register(username, email string) response {
	return call(http.MethodPost, "/api/auth/register", map[string]string{
		"uid":      "U-" + username,
		"uname":    username,
		"password": "pw1",
		"email":    email,
		"phone":    "555",
	})
}

func login(username, password string) response {
	return call(http.MethodPost, "/api/auth/login", map[string]string{
		"uname":    username,
		"password": password,
	})
}

func liveTokens(username string) int {
	var n int
	err := env.pool.QueryRow(env.ctx,
		"SELECT count(*) FROM session_tokens WHERE username = $1", username).Scan(&n)
	Expect(err).NotTo(HaveOccurred())
	return n
}

var _ = Describe("Session lifecycle", func() {
	It("registers, logs in and reads the balance", func() {
		By("registering a new customer")
		resp := call(http.MethodPost, "/api/auth/register", map[string]string{
			"uid":      "U1",
			"uname":    "alice",
			"password": "pw1",
			"email":    "a@x.com",
			"phone":    "555",
		})
		Expect(resp.status).To(Equal(http.StatusCreated))
		Expect(resp.message()).To(Equal("User registered successfully"))
		Expect(resp.sessionCookie()).To(BeNil())
		Expect(liveTokens("alice")).To(BeZero())

		By("rejecting a wrong password")
		resp = login("alice", "wrong")
		Expect(resp.status).To(Equal(http.StatusUnauthorized))
		Expect(resp.message()).To(Equal("Invalid username or password"))

		By("logging in with the right password")
		resp = login("alice", "pw1")
		Expect(resp.status).To(Equal(http.StatusOK))
		Expect(resp.body["role"]).To(Equal("customer"))
		cookie := resp.sessionCookie()
		Expect(cookie).NotTo(BeNil())
		Expect(cookie.HttpOnly).To(BeTrue())
		Expect(cookie.MaxAge).To(Equal(int(tokenTTL / time.Second)))
		Expect(liveTokens("alice")).To(Equal(1))

		By("reading the balance with the cookie")
		resp = call(http.MethodGet, "/api/user/balance", nil, cookie)
		Expect(resp.status).To(Equal(http.StatusOK))
		Expect(resp.body["balance"]).To(Equal(json.Number("100000.00")))

		By("refusing the balance without a cookie")
		resp = call(http.MethodGet, "/api/user/balance", nil)
		Expect(resp.status).To(Equal(http.StatusUnauthorized))
		Expect(resp.message()).To(Equal("Access denied. No token provided."))

		By("refusing the balance with a corrupted cookie")
		corrupted := &http.Cookie{Name: web.SessionCookieName, Value: cookie.Value[:len(cookie.Value)-4] + "AAAA"}
		if corrupted.Value == cookie.Value {
			corrupted.Value = cookie.Value[:len(cookie.Value)-4] + "BBBB"
		}
		resp = call(http.MethodGet, "/api/user/balance", nil, corrupted)
		Expect(resp.status).To(Equal(http.StatusForbidden))
		Expect(resp.message()).To(Equal("Invalid token."))

		Expect(testutil.ToFloat64(env.metrics.Logins.WithLabelValues("success"))).To(BeNumerically(">=", 1))
	})

	It("rejects duplicate usernames and emails", func() {
		Expect(register("bob", "bob@x.com").status).To(Equal(http.StatusCreated))

		resp := register("bob", "other@x.com")
		Expect(resp.status).To(Equal(http.StatusConflict))
		Expect(resp.message()).To(Equal("Username or Email already exists"))

		Expect(register("robert", "BOB@x.com").status).To(Equal(http.StatusConflict))
	})

	It("rejects registration with an empty field", func() {
		resp := call(http.MethodPost, "/api/auth/register", map[string]string{
			"uid": "U9", "uname": "carol", "password": "pw1", "email": "c@x.com",
		})
		Expect(resp.status).To(Equal(http.StatusBadRequest))
		Expect(resp.message()).To(Equal("All fields are required"))
	})

	It("treats an unknown user like a wrong password", func() {
		resp := login("nobody", "pw1")
		Expect(resp.status).To(Equal(http.StatusUnauthorized))
		Expect(resp.message()).To(Equal("Invalid username or password"))
	})

	It("revokes the token on logout without touching other sessions", func() {
		Expect(register("dave", "d@x.com").status).To(Equal(http.StatusCreated))
		first := login("dave", "pw1").sessionCookie()
		second := login("dave", "pw1").sessionCookie()
		Expect(first.Value).NotTo(Equal(second.Value))
		Expect(liveTokens("dave")).To(Equal(2))

		resp := call(http.MethodPost, "/api/auth/logout", nil, first)
		Expect(resp.status).To(Equal(http.StatusOK))
		Expect(resp.message()).To(Equal("Logged out successfully"))
		Expect(liveTokens("dave")).To(Equal(1))

		resp = call(http.MethodGet, "/api/user/balance", nil, first)
		Expect(resp.status).To(Equal(http.StatusForbidden))
		Expect(resp.message()).To(Equal("Invalid or expired token."))

		Expect(call(http.MethodGet, "/api/user/balance", nil, second).status).To(Equal(http.StatusOK))
	})

	It("revokes every session with logout-all", func() {
		Expect(register("erin", "e@x.com").status).To(Equal(http.StatusCreated))
		first := login("erin", "pw1").sessionCookie()
		second := login("erin", "pw1").sessionCookie()

		resp := call(http.MethodPost, "/api/auth/logout-all", nil, first)
		Expect(resp.status).To(Equal(http.StatusOK))
		Expect(resp.body["revoked"]).To(Equal(json.Number("2")))

		Expect(call(http.MethodGet, "/api/user/balance", nil, second).status).To(Equal(http.StatusForbidden))
	})

	It("sweeps tokens whose expiry has passed", func() {
		Expect(register("frank", "f@x.com").status).To(Equal(http.StatusCreated))
		cookie := login("frank", "pw1").sessionCookie()
		Expect(liveTokens("frank")).To(Equal(1))

		n, err := env.tokens.DeleteExpired(env.ctx, time.Now())
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(BeZero())

		n, err = env.tokens.DeleteExpired(env.ctx, time.Now().Add(tokenTTL+time.Minute))
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(int64(1)))

		resp := call(http.MethodGet, "/api/user/balance", nil, cookie)
		Expect(resp.status).To(Equal(http.StatusForbidden))
		Expect(resp.message()).To(Equal("Invalid or expired token."))
	})

	It("returns each caller their own balance under concurrent logins", func() {
		balances := map[string]string{
			"grace": "1234.56",
			"heidi": "98765.43",
		}
		for username, balance := range balances {
			Expect(register(username, username+"@x.com").status).To(Equal(http.StatusCreated))
			_, err := env.pool.Exec(env.ctx,
				"UPDATE accounts SET balance = $1::numeric WHERE username = $2", balance, username)
			Expect(err).NotTo(HaveOccurred())
		}

		const rounds = 5
		type reading struct {
			username string
			status   int
			balance  any
		}
		readings := make(chan reading, rounds*len(balances))

		var wg sync.WaitGroup
		for range rounds {
			for username := range balances {
				wg.Add(1)
				go func() {
					defer GinkgoRecover()
					defer wg.Done()

					cookie := login(username, "pw1").sessionCookie()
					Expect(cookie).NotTo(BeNil())
					resp := call(http.MethodGet, "/api/user/balance", nil, cookie)
					readings <- reading{username: username, status: resp.status, balance: resp.body["balance"]}
				}()
			}
		}
		wg.Wait()
		close(readings)

		count := 0
		for r := range readings {
			count++
			Expect(r.status).To(Equal(http.StatusOK), r.username)
			Expect(r.balance).To(Equal(json.Number(balances[r.username])), r.username)
		}
		Expect(count).To(Equal(rounds * len(balances)))
		Expect(liveTokens("grace")).To(Equal(rounds))
		Expect(liveTokens("heidi")).To(Equal(rounds))
	})
})
