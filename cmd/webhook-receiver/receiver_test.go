package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Priya8975/identity-service/internal/webhook"
)

func newTestReceiver(t *testing.T) *httptest.Server {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	srv := httptest.NewServer(newReceiver("whsec", 50*time.Millisecond, logger))
	t.Cleanup(srv.Close)
	return srv
}

func dispatch(t *testing.T, endpoint, secret string) (*webhook.Response, error) {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	d := webhook.NewDispatcher(webhook.Config{Endpoint: endpoint, Secret: secret, Timeout: time.Second}, logger)
	return d.Dispatch(context.Background(), webhook.NewEvent("user.created", map[string]string{"id": "u1"}))
}

func TestReceiver_AcceptsSignedEvent(t *testing.T) {
	srv := newTestReceiver(t)

	resp, err := dispatch(t, srv.URL+"/webhook/success", "whsec")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "received", resp.Body["status"])
}

func TestReceiver_RejectsWrongSecret(t *testing.T) {
	srv := newTestReceiver(t)

	_, err := dispatch(t, srv.URL+"/webhook/success", "other")
	require.Error(t, err)
	assert.True(t, webhook.IsKind(err, webhook.RemoteRejected))

	var werr *webhook.Error
	require.ErrorAs(t, err, &werr)
	assert.Equal(t, http.StatusUnauthorized, werr.StatusCode)
}

func TestReceiver_FailRoute(t *testing.T) {
	srv := newTestReceiver(t)

	_, err := dispatch(t, srv.URL+"/webhook/fail", "whsec")
	require.Error(t, err)

	var werr *webhook.Error
	require.ErrorAs(t, err, &werr)
	assert.Equal(t, http.StatusInternalServerError, werr.StatusCode)
	assert.Contains(t, werr.Body, "internal server error")
}

func TestReceiver_SlowRoute(t *testing.T) {
	srv := newTestReceiver(t)

	start := time.Now()
	resp, err := dispatch(t, srv.URL+"/webhook/slow", "whsec")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestReceiver_Stats(t *testing.T) {
	srv := newTestReceiver(t)

	_, _ = dispatch(t, srv.URL+"/webhook/success", "whsec")
	_, _ = http.Post(srv.URL+"/webhook/success", "application/json", bytes.NewBufferString(`{"type":"x"}`))

	resp, err := http.Get(srv.URL + "/stats")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.JSONEq(t, `{"total_requests":2,"rejected_requests":1}`, string(body))
}
