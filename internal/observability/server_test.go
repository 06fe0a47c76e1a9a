// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 KodBank Contributors

package observability

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func startServer(t *testing.T, ready ReadinessChecker) *Server {
	t.Helper()
	server := NewServer("127.0.0.1:0", ready)
	_, err := server.Start()
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Stop(ctx)
		http.DefaultClient.CloseIdleConnections()
	})
	return server
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url) //nolint:gosec,noctx // test-local URL
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestServer_MetricsEndpoint(t *testing.T) {
	server := startServer(t, func() bool { return true })

	m := server.Metrics()
	m.RecordRequest("POST /api/auth/login", http.StatusOK)
	m.RecordLogin("success")
	m.RecordGuardRejection("revoked")
	m.RecordSwept(3)

	status, body := get(t, "http://"+server.Addr()+"/metrics")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "# TYPE kodbank_http_requests_total counter")
	assert.Contains(t, body, `kodbank_http_requests_total{route="POST /api/auth/login",status="200"} 1`)
	assert.Contains(t, body, `kodbank_logins_total{result="success"} 1`)
	assert.Contains(t, body, `kodbank_guard_rejections_total{reason="revoked"} 1`)
	assert.Contains(t, body, "kodbank_tokens_swept_total 3")
	assert.Contains(t, body, "go_goroutines")
	assert.Contains(t, body, "process_")
}

func TestMetrics_RecordSweptIgnoresZero(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.RecordSwept(0)
	m.RecordSwept(-1)
	assert.Zero(t, testutil.ToFloat64(m.TokensSwept))

	m.RecordSwept(2)
	assert.Equal(t, float64(2), testutil.ToFloat64(m.TokensSwept))
}

func TestServer_Liveness(t *testing.T) {
	server := startServer(t, func() bool { return false })

	status, body := get(t, "http://"+server.Addr()+"/healthz/liveness")
	assert.Equal(t, http.StatusOK, status, "liveness ignores readiness")
	assert.Equal(t, "ok\n", body)
}

func TestServer_Readiness(t *testing.T) {
	tests := []struct {
		name   string
		ready  ReadinessChecker
		status int
	}{
		{"ready", func() bool { return true }, http.StatusOK},
		{"database down", func() bool { return false }, http.StatusServiceUnavailable},
		{"no checker", nil, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := startServer(t, tt.ready)
			status, _ := get(t, "http://"+server.Addr()+"/healthz/readiness")
			assert.Equal(t, tt.status, status)
		})
	}
}

func TestServer_DoubleStartFails(t *testing.T) {
	server := startServer(t, nil)
	_, err := server.Start()
	assert.Error(t, err)
}

func TestServer_StopWithoutStart(t *testing.T) {
	server := NewServer("127.0.0.1:0", nil)
	assert.NoError(t, server.Stop(context.Background()))
	assert.Empty(t, server.Addr())
}

func TestServer_ListenFailure(t *testing.T) {
	first := startServer(t, nil)

	second := NewServer(first.Addr(), nil)
	_, err := second.Start()
	require.Error(t, err)

	// A failed start leaves the server startable.
	second.addr = "127.0.0.1:0"
	_, err = second.Start()
	require.NoError(t, err)
	require.NoError(t, second.Stop(context.Background()))
}

func TestServer_ErrorChannelReportsServeErrors(t *testing.T) {
	server := NewServer("127.0.0.1:0", nil)
	errCh, err := server.Start()
	require.NoError(t, err)

	_ = server.listener.Close()

	select {
	case serveErr := <-errCh:
		assert.Error(t, serveErr)
	case <-time.After(2 * time.Second):
		t.Fatal("serve error was not propagated")
	}

	require.NoError(t, server.Stop(context.Background()))
}

func TestServer_ErrorChannelClosesOnShutdown(t *testing.T) {
	server := NewServer("127.0.0.1:0", nil)
	errCh, err := server.Start()
	require.NoError(t, err)

	require.NoError(t, server.Stop(context.Background()))

	select {
	case err, ok := <-errCh:
		if ok {
			assert.NoError(t, err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("error channel did not close")
	}
}
