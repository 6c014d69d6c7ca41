package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDomainErrorFormat(t *testing.T) {
	err := NewDomainError("Session.FetchUser", ErrUserUnknown, "user 42")
	want := "Session.FetchUser: user 42: unknown user"
	if err.Error() != want {
		t.Errorf("got %q, want %q", err.Error(), want)
	}
}

func TestDomainErrorFormatNoDetail(t *testing.T) {
	err := NewDomainError("Manager.New", ErrNoCredentials, "")
	want := "Manager.New: no credentials configured"
	if err.Error() != want {
		t.Errorf("got %q, want %q", err.Error(), want)
	}
}

func TestDomainErrorUnwrap(t *testing.T) {
	err := NewDomainError("Session.FetchChannel", ErrChannelUnknown, "C1")
	if !errors.Is(err, ErrChannelUnknown) {
		t.Error("errors.Is should match ErrChannelUnknown")
	}
}

func TestDomainErrorAs(t *testing.T) {
	err := fmt.Errorf("deliver: %w", NewDomainError("Session.Open", ErrAuthInvalid, "session-1"))
	var de *DomainError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, "Session.Open", de.Op)
}

// --- ErrorCode tests ---

func TestErrorCodeOf_DirectSentinel(t *testing.T) {
	assert.Equal(t, CodeUserUnknown, ErrorCodeOf(ErrUserUnknown))
	assert.Equal(t, CodeChannelUnknown, ErrorCodeOf(ErrChannelUnknown))
	assert.Equal(t, CodeChannelNotText, ErrorCodeOf(ErrChannelNotText))
	assert.Equal(t, CodeCircuitOpen, ErrorCodeOf(ErrCircuitOpen))
}

func TestErrorCodeOf_WrappedError(t *testing.T) {
	wrapped := fmt.Errorf("context: %w", ErrAuthInvalid)
	assert.Equal(t, CodeAuthInvalid, ErrorCodeOf(wrapped))
}

func TestErrorCodeOf_UnknownError(t *testing.T) {
	assert.Equal(t, CodeUnknown, ErrorCodeOf(fmt.Errorf("some random error")))
	assert.Equal(t, CodeUnknown, ErrorCodeOf(nil))
}

func TestErrorCodeOf_SubSystem(t *testing.T) {
	assert.Equal(t, CodeWebhookDelivery,
		ErrorCodeOf(NewSubSystemError("webhook", "Deliver", ErrDeliveryFailed, "https://x")))
	assert.Equal(t, CodeChannelDelivery,
		ErrorCodeOf(NewSubSystemError("channel", "Deliver", ErrDeliveryFailed, "C1")))
	assert.Equal(t, CodeWebhookRejected,
		ErrorCodeOf(NewSubSystemError("webhook", "Deliver", ErrPermissionDenied, "401")))
}

func TestErrorCodeOf_SubSystemFallback(t *testing.T) {
	err := NewSubSystemError("unknown-subsystem", "Op", ErrDeliveryFailed, "")
	assert.Equal(t, CodeDelivery, ErrorCodeOf(err))
}

func TestDomainError_CodeWrappedInner(t *testing.T) {
	err := NewDomainError("Op", fmt.Errorf("custom"), "detail")
	assert.Equal(t, CodeUnknown, err.Code())

	inner := NewDomainError("Op", fmt.Errorf("fetch: %w", ErrUserUnknown), "")
	assert.Equal(t, CodeUserUnknown, ErrorCodeOf(inner))
}

func TestAllSentinelsHaveCodes(t *testing.T) {
	require.NotEmpty(t, errorCodeMap)
	for sentinel, code := range errorCodeMap {
		assert.NotEmpty(t, code, "sentinel %v has empty code", sentinel)
		assert.NotEqual(t, CodeUnknown, code, "sentinel %v maps to UNKNOWN", sentinel)
	}
}

// --- WrapOp tests ---

func TestWrapOp(t *testing.T) {
	assert.Nil(t, WrapOp("anything", nil))

	err := WrapOp("Router.Resolve", ErrUserUnknown)
	assert.Equal(t, "Router.Resolve: unknown user", err.Error())
	assert.True(t, errors.Is(err, ErrUserUnknown))
	assert.Equal(t, CodeUserUnknown, ErrorCodeOf(err))
}

func TestNeedsAttention(t *testing.T) {
	assert.True(t, NeedsAttention(NewDomainError("FetchChannel", ErrChannelUnknown, "C1")))
	assert.True(t, NeedsAttention(fmt.Errorf("x: %w", ErrChannelNotText)))
	assert.False(t, NeedsAttention(ErrDeliveryFailed))
	assert.False(t, NeedsAttention(nil))
}
