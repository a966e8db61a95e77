package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/BaSui01/chatflow/chatengine"
	"github.com/BaSui01/chatflow/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// =============================================================================
// 🧪 Common 函数测试
// =============================================================================

func TestWriteJSON(t *testing.T) {
	w := httptest.NewRecorder()
	WriteJSON(w, http.StatusAccepted, map[string]string{"message": "hello"})

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "application/json; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.JSONEq(t, `{"message":"hello"}`, w.Body.String())
}

func TestWriteSuccess_CarriesRequestID(t *testing.T) {
	w := httptest.NewRecorder()
	w.Header().Set(RequestIDHeader, "req-1")
	WriteSuccess(w, map[string]string{"key": "value"})

	var resp Response
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.True(t, resp.Success)
	assert.Nil(t, resp.Error)
	assert.Equal(t, "req-1", resp.RequestID)
	assert.False(t, resp.Timestamp.IsZero())
}

func TestWriteError_StatusMapping(t *testing.T) {
	tests := []struct {
		code   types.ErrorCode
		status int
	}{
		{types.ErrInvalidRequest, http.StatusBadRequest},
		{types.ErrUnauthorized, http.StatusUnauthorized},
		{types.ErrNotFound, http.StatusNotFound},
		{types.ErrEngineBusy, http.StatusConflict},
		{types.ErrRateLimited, http.StatusTooManyRequests},
		{types.ErrCancelled, StatusClientClosedRequest},
		{types.ErrUpstreamTimeout, http.StatusGatewayTimeout},
		{types.ErrStorage, http.StatusServiceUnavailable},
		{types.ErrServiceUnavailable, http.StatusServiceUnavailable},
		{types.ErrCondensation, http.StatusBadGateway},
		{types.ErrRetrieval, http.StatusBadGateway},
		{types.ErrSynthesis, http.StatusBadGateway},
		{types.ErrUpstreamError, http.StatusBadGateway},
		{types.ErrConfiguration, http.StatusInternalServerError},
		{types.ErrorCode("SOMETHING_NEW"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteError(w, types.NewError(tt.code, "boom"), zap.NewNop())

			assert.Equal(t, tt.status, w.Code)
			var resp Response
			require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
			assert.False(t, resp.Success)
			require.NotNil(t, resp.Error)
			assert.Equal(t, string(tt.code), resp.Error.Code)
			assert.Equal(t, "boom", resp.Error.Message)
		})
	}
}

func TestWriteError_ExplicitStatusWins(t *testing.T) {
	w := httptest.NewRecorder()
	WriteErrorMessage(w, http.StatusTeapot, types.ErrInvalidRequest, "short and stout", nil)
	assert.Equal(t, http.StatusTeapot, w.Code)
}

func TestWriteEngineError(t *testing.T) {
	t.Run("wrapped typed error", func(t *testing.T) {
		w := httptest.NewRecorder()
		err := fmt.Errorf("session s1: %w", chatengine.ErrBusy)
		WriteEngineError(w, err, nil)
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Contains(t, w.Body.String(), `"ENGINE_BUSY"`)
	})

	t.Run("plain error", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteEngineError(w, errors.New("disk on fire"), nil)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Contains(t, w.Body.String(), `"INTERNAL_ERROR"`)
		// 5xx 不暴露内部原因
		assert.NotContains(t, w.Body.String(), "disk on fire")
	})
}

func TestDecodeJSONBody(t *testing.T) {
	type payload struct {
		Message string `json:"message"`
	}

	tests := []struct {
		name       string
		body       string
		allowEmpty bool
		wantErr    bool
	}{
		{"valid", `{"message":"hi"}`, false, false},
		{"unknown field", `{"message":"hi","extra":1}`, false, true},
		{"malformed", `{"message":`, false, true},
		{"empty not allowed", ``, false, true},
		{"empty allowed", ``, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			var dst payload
			err := DecodeJSONBody(w, r, &dst, tt.allowEmpty, nil)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, http.StatusBadRequest, w.Code)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestValidateContentType(t *testing.T) {
	for _, ct := range []string{"application/json", "application/json; charset=utf-8"} {
		r := httptest.NewRequest(http.MethodPost, "/", nil)
		r.Header.Set("Content-Type", ct)
		assert.True(t, ValidateContentType(httptest.NewRecorder(), r, nil), ct)
	}

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/", nil)
	r.Header.Set("Content-Type", "text/plain")
	assert.False(t, ValidateContentType(w, r, nil))
	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
}

func TestResponseWriter_CapturesStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := NewResponseWriter(rec)
	rw.WriteHeader(http.StatusNotFound)
	rw.WriteHeader(http.StatusOK)
	_, err := rw.Write([]byte("abc"))
	require.NoError(t, err)
	rw.Flush()

	assert.Equal(t, http.StatusNotFound, rw.StatusCode)
	assert.Equal(t, int64(3), rw.BytesWritten)
	assert.True(t, rec.Flushed)
	assert.Same(t, rec, rw.Unwrap())
}
