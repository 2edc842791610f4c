package health

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serveHealth(t *testing.T, handler *Handler) (*httptest.ResponseRecorder, Response) {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	var response Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
	return rec, response
}

func TestHandler_AllHealthy(t *testing.T) {
	t.Parallel()

	handler := NewHandler("v1.0.0")
	handler.RegisterChecker("storage", NewSimpleChecker("storage", func() error { return nil }))
	handler.RegisterChecker("outbox", NewBacklogChecker("outbox", 100, func() (int, error) { return 3, nil }))

	rec, response := serveHealth(t, handler)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, StatusHealthy, response.Status)
	assert.Equal(t, "v1.0.0", response.Version)
	assert.Len(t, response.Checks, 2)
}

func TestHandler_UnhealthyComponentWins(t *testing.T) {
	t.Parallel()

	handler := NewHandler("v1.0.0")
	handler.RegisterChecker("storage", NewSimpleChecker("storage", func() error {
		return errors.New("connection refused")
	}))
	handler.RegisterChecker("outbox", NewBacklogChecker("outbox", 100, func() (int, error) { return 0, nil }))

	rec, response := serveHealth(t, handler)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, StatusUnhealthy, response.Status)
	assert.Equal(t, "connection refused", response.Checks["storage"].Message)
}

func TestHandler_DegradedKeeps200(t *testing.T) {
	t.Parallel()

	handler := NewHandler("v1.0.0")
	handler.RegisterChecker("kafka", StatusFunc(func() Check {
		return Check{Name: "kafka", Status: StatusDegraded, Message: "producer not configured"}
	}))

	rec, response := serveHealth(t, handler)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, StatusDegraded, response.Status)
}

func TestReadinessHandler(t *testing.T) {
	t.Parallel()

	handler := NewHandler("v1.0.0")
	handler.RegisterChecker("storage", NewSimpleChecker("storage", func() error { return nil }))

	rec := httptest.NewRecorder()
	handler.ReadinessHandler(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ready", rec.Body.String())
}

func TestReadinessHandler_DegradedStaysReady(t *testing.T) {
	t.Parallel()

	handler := NewHandler("v1.0.0")
	handler.RegisterChecker("outbox", NewBacklogChecker("outbox", 10, func() (int, error) { return 500, nil }))

	rec := httptest.NewRecorder()
	handler.ReadinessHandler(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestReadinessHandler_NotReady(t *testing.T) {
	t.Parallel()

	handler := NewHandler("v1.0.0")
	handler.RegisterChecker("storage", NewSimpleChecker("storage", func() error {
		return errors.New("down")
	}))

	rec := httptest.NewRecorder()
	handler.ReadinessHandler(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "not ready", rec.Body.String())
}

func TestLivenessHandler(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	LivenessHandler(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestSimpleChecker(t *testing.T) {
	t.Parallel()

	ok := NewSimpleChecker("storage", func() error { return nil }).Check()
	assert.Equal(t, StatusHealthy, ok.Status)
	assert.Empty(t, ok.Message)

	bad := NewSimpleChecker("storage", func() error { return errors.New("boom") }).Check()
	assert.Equal(t, StatusUnhealthy, bad.Status)
	assert.Equal(t, "boom", bad.Message)
}

func TestBacklogChecker(t *testing.T) {
	t.Parallel()

	healthy := NewBacklogChecker("outbox", 100, func() (int, error) { return 42, nil }).Check()
	assert.Equal(t, StatusHealthy, healthy.Status)
	assert.Equal(t, "backlog 42", healthy.Message)

	degraded := NewBacklogChecker("outbox", 100, func() (int, error) { return 101, nil }).Check()
	assert.Equal(t, StatusDegraded, degraded.Status)
	assert.Contains(t, degraded.Message, "exceeds threshold")

	broken := NewBacklogChecker("outbox", 100, func() (int, error) { return 0, errors.New("stats failed") }).Check()
	assert.Equal(t, StatusUnhealthy, broken.Status)
	assert.Equal(t, "stats failed", broken.Message)
}
