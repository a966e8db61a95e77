package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestHealthHandler_HandleHealth(t *testing.T) {
	handler := NewHealthHandler("1.2.3", nil, zap.NewNop())
	handler.RegisterCheck(NewFuncCheck("redis", func(context.Context) error { return nil }))

	w := httptest.NewRecorder()
	handler.HandleHealth(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	var status HealthStatus
	require.NoError(t, json.NewDecoder(w.Body).Decode(&status))
	assert.Equal(t, "healthy", status.Status)
	assert.Equal(t, "1.2.3", status.Version)
	assert.Equal(t, "pass", status.Checks["redis"].Status)
}

func TestHealthHandler_FailingCheck(t *testing.T) {
	handler := NewHealthHandler("", nil, zap.NewNop())
	handler.RegisterCheck(NewFuncCheck("redis", func(context.Context) error { return nil }))
	handler.RegisterCheck(NewFuncCheck("database", func(context.Context) error { return errors.New("connection refused") }))

	w := httptest.NewRecorder()
	handler.HandleHealth(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	var status HealthStatus
	require.NoError(t, json.NewDecoder(w.Body).Decode(&status))
	assert.Equal(t, "unhealthy", status.Status)
	assert.Equal(t, "pass", status.Checks["redis"].Status)
	assert.Equal(t, "fail", status.Checks["database"].Status)
	assert.Equal(t, "connection refused", status.Checks["database"].Message)
}

func TestHealthHandler_CheckHonoursDeadline(t *testing.T) {
	handler := NewHealthHandler("", nil, zap.NewNop())
	var hadDeadline bool
	handler.RegisterCheck(NewFuncCheck("slow", func(ctx context.Context) error {
		_, hadDeadline = ctx.Deadline()
		return nil
	}))

	handler.HandleHealth(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.True(t, hadDeadline)
}

func TestHealthHandler_ReportsSessions(t *testing.T) {
	sessions := NewSessionRegistry(simpleFactory(t), zap.NewNop())
	_, err := sessions.Open("a")
	require.NoError(t, err)

	handler := NewHealthHandler("", sessions, nil)
	w := httptest.NewRecorder()
	handler.HandleHealth(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	var status HealthStatus
	require.NoError(t, json.NewDecoder(w.Body).Decode(&status))
	assert.Equal(t, 1, status.Sessions)
}

func TestHealthHandler_HandleHealthz(t *testing.T) {
	handler := NewHealthHandler("", nil, zap.NewNop())
	handler.RegisterCheck(NewFuncCheck("broken", func(context.Context) error { return errors.New("down") }))

	w := httptest.NewRecorder()
	handler.HandleHealthz(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
