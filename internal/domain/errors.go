package domain

import (
	"errors"
	"fmt"
)

// Category sentinels. Use with NewSubSystemError for subsystem-specific errors.
var (
	ErrPermissionDenied = fmt.Errorf("permission denied")
	ErrInvalidInput     = fmt.Errorf("invalid input")
	ErrProviderError    = fmt.Errorf("provider error")
)

// Sentinel errors for the domain layer.
var (
	ErrDecryption    = fmt.Errorf("decryption failed")
	ErrNoCredentials = fmt.Errorf("no credentials configured")

	// Session errors.
	ErrAuthInvalid     = fmt.Errorf("authentication failed")
	ErrSessionNotReady = fmt.Errorf("session not ready")

	// Resolution errors.
	ErrUserUnknown    = fmt.Errorf("unknown user")
	ErrChannelUnknown = fmt.Errorf("unknown channel")
	ErrChannelNotText = fmt.Errorf("channel is not text-capable")

	// Delivery errors.
	ErrDeliveryFailed = fmt.Errorf("delivery failed")
	ErrCircuitOpen    = fmt.Errorf("sink circuit open")
)

// DomainError wraps a sentinel error with context.
type DomainError struct {
	Op        string // operation name (e.g., "Session.FetchUser")
	Err       error  // underlying sentinel or wrapped error
	Detail    string // human-readable detail
	SubSystem string // subsystem identifier (e.g., "channel", "webhook"); used for ErrorCode dispatch
}

func (e *DomainError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Err)
}

func (e *DomainError) Unwrap() error { return e.Err }

// NewDomainError creates a new DomainError.
func NewDomainError(op string, err error, detail string) *DomainError {
	return &DomainError{Op: op, Err: err, Detail: detail}
}

// NewSubSystemError creates a DomainError tagged with a subsystem for ErrorCode dispatch.
func NewSubSystemError(subsystem, op string, err error, detail string) *DomainError {
	return &DomainError{Op: op, Err: err, Detail: detail, SubSystem: subsystem}
}

// WrapOp adds operation context to an error using fmt.Errorf wrapping.
// Returns nil if err is nil, enabling idiomatic use: return domain.WrapOp("op", err)
func WrapOp(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}

// NeedsAttention reports whether err describes a sink misconfiguration the
// operator has to fix (session not in the channel, or a non-text channel).
func NeedsAttention(err error) bool {
	return errors.Is(err, ErrChannelUnknown) || errors.Is(err, ErrChannelNotText)
}

// ErrorCode is a machine-parseable error category for monitoring and alerting.
type ErrorCode string

const (
	CodeUnknown        ErrorCode = "UNKNOWN"
	CodeDecryption     ErrorCode = "DECRYPTION"
	CodeNoCredentials  ErrorCode = "NO_CREDENTIALS"
	CodeAuthInvalid    ErrorCode = "AUTH_INVALID"
	CodeSessionNotRdy  ErrorCode = "SESSION_NOT_READY"
	CodeUserUnknown    ErrorCode = "USER_UNKNOWN"
	CodeChannelUnknown ErrorCode = "CHANNEL_UNKNOWN"
	CodeChannelNotText ErrorCode = "CHANNEL_NOT_TEXT"
	CodeDelivery       ErrorCode = "DELIVERY_FAILED"
	CodeCircuitOpen    ErrorCode = "CIRCUIT_OPEN"

	// Subsystem-specific delivery codes.
	CodeChannelDelivery ErrorCode = "CHANNEL_DELIVERY_FAILED"
	CodeWebhookDelivery ErrorCode = "WEBHOOK_DELIVERY_FAILED"
	CodeWebhookRejected ErrorCode = "WEBHOOK_REJECTED"

	// Category error codes, used when no subsystem-specific code matches.
	CodePermissionDenied ErrorCode = "PERMISSION_DENIED"
	CodeInvalidInput     ErrorCode = "INVALID_INPUT"
	CodeProviderError    ErrorCode = "PROVIDER_ERROR"
)

// errorCodeMap maps sentinel errors to their machine-parseable codes.
var errorCodeMap = map[error]ErrorCode{
	ErrPermissionDenied: CodePermissionDenied,
	ErrInvalidInput:     CodeInvalidInput,
	ErrProviderError:    CodeProviderError,

	ErrDecryption:      CodeDecryption,
	ErrNoCredentials:   CodeNoCredentials,
	ErrAuthInvalid:     CodeAuthInvalid,
	ErrSessionNotReady: CodeSessionNotRdy,
	ErrUserUnknown:     CodeUserUnknown,
	ErrChannelUnknown:  CodeChannelUnknown,
	ErrChannelNotText:  CodeChannelNotText,
	ErrDeliveryFailed:  CodeDelivery,
	ErrCircuitOpen:     CodeCircuitOpen,
}

// subSystemCodeMap maps (category sentinel, subsystem) pairs to specific ErrorCodes.
var subSystemCodeMap = map[error]map[string]ErrorCode{
	ErrDeliveryFailed: {
		"channel": CodeChannelDelivery,
		"webhook": CodeWebhookDelivery,
	},
	ErrPermissionDenied: {
		"webhook": CodeWebhookRejected,
	},
}

// ErrorCodeOf returns the machine-parseable error code for the given error.
// It unwraps DomainError and uses errors.Is to match sentinel errors.
// Returns CodeUnknown if no matching sentinel is found.
func ErrorCodeOf(err error) ErrorCode {
	if err == nil {
		return CodeUnknown
	}

	if code, ok := errorCodeMap[err]; ok {
		return code
	}

	var de *DomainError
	if errors.As(err, &de) {
		if code := de.Code(); code != CodeUnknown {
			return code
		}
	}

	for sentinel, code := range errorCodeMap {
		if errors.Is(err, sentinel) {
			return code
		}
	}

	return CodeUnknown
}

// Code returns the ErrorCode for this DomainError's underlying sentinel.
// If SubSystem is set, checks the subSystemCodeMap for a specific code.
func (e *DomainError) Code() ErrorCode {
	if e.SubSystem != "" {
		if subsysMap, ok := subSystemCodeMap[e.Err]; ok {
			if code, ok := subsysMap[e.SubSystem]; ok {
				return code
			}
		}
	}
	if code, ok := errorCodeMap[e.Err]; ok {
		return code
	}
	return CodeUnknown
}
