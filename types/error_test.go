package types

import (
	"errors"
	"fmt"
	"testing"
)

func TestError_ChainingAndHelpers(t *testing.T) {
	t.Parallel()

	root := errors.New("root")
	err := NewError(ErrUpstreamError, "upstream failed").
		WithCause(root).
		WithHTTPStatus(502).
		WithRetryable(true).
		WithProvider("openai")

	if GetErrorCode(err) != ErrUpstreamError {
		t.Fatalf("expected code %s, got %s", ErrUpstreamError, GetErrorCode(err))
	}
	if !IsRetryable(err) {
		t.Fatalf("expected retryable")
	}
	if !errors.Is(err, root) {
		t.Fatalf("expected errors.Is unwrap to root")
	}
	if got := err.Error(); got == "" {
		t.Fatalf("expected non-empty error string")
	}
}

func TestError_IsMatchesByCode(t *testing.T) {
	t.Parallel()

	sentinel := NewError(ErrEngineBusy, "busy")
	err := fmt.Errorf("turn rejected: %w", NewError(ErrEngineBusy, "another turn is in flight"))

	if !errors.Is(err, sentinel) {
		t.Fatalf("expected wrapped error to match sentinel by code")
	}
	if errors.Is(err, NewError(ErrSynthesis, "x")) {
		t.Fatalf("different codes must not match")
	}
	if !IsErrorCode(err, ErrEngineBusy) {
		t.Fatalf("IsErrorCode should see through fmt wrapping")
	}
	if GetErrorCode(errors.New("plain")) != "" {
		t.Fatalf("plain errors carry no code")
	}
}

func TestWrapError(t *testing.T) {
	t.Parallel()

	cause := errors.New("dial tcp: refused")
	err := WrapError(ErrRetrieval, "retrieval failed", cause)

	if err.Code != ErrRetrieval || err.Cause != cause {
		t.Fatalf("unexpected error: %+v", err)
	}
	if e, ok := AsError(err); !ok || e != err {
		t.Fatalf("AsError should return the error itself")
	}
}
