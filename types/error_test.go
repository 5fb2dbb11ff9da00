package types

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestError_ChainingAndHelpers(t *testing.T) {
	t.Parallel()

	root := errors.New("root")
	err := NewError(ErrInternalError, "query failed").
		WithCause(root).
		WithHTTPStatus(500).
		WithRetryable(true)

	if GetErrorCode(err) != ErrInternalError {
		t.Fatalf("expected code %s, got %s", ErrInternalError, GetErrorCode(err))
	}
	if !IsRetryable(err) {
		t.Fatalf("expected retryable")
	}
	if !errors.Is(err, root) {
		t.Fatalf("expected errors.Is unwrap to root")
	}
	if got := err.Error(); got != "[INTERNAL_ERROR] query failed: root" {
		t.Fatalf("unexpected error string %q", got)
	}
}

func TestNewDBUnavailableError(t *testing.T) {
	t.Parallel()

	cause := errors.New("QueuePool limit reached")
	err := NewDBUnavailableError(cause)

	if err.HTTPStatus != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", err.HTTPStatus)
	}
	if !err.Retryable {
		t.Fatalf("expected retryable")
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected cause to be preserved")
	}
}

func TestAsError_Wrapped(t *testing.T) {
	t.Parallel()

	wrapped := fmt.Errorf("handler: %w", NewNotFoundError("page not found"))

	e, ok := AsError(wrapped)
	if !ok {
		t.Fatalf("expected *Error in chain")
	}
	if e.HTTPStatus != http.StatusNotFound || GetErrorCode(wrapped) != ErrNotFound {
		t.Fatalf("unexpected error %+v", e)
	}
	if IsRetryable(errors.New("plain")) {
		t.Fatalf("plain errors are not retryable")
	}
	if GetErrorCode(errors.New("plain")) != "" {
		t.Fatalf("plain errors have no code")
	}
}
