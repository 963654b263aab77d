// Package autherr defines the error taxonomy shared by the credential codec,
// session cache, and policy enforcer. A single tagged Error type replaces a
// per-kind error hierarchy: callers switch on Kind (or match with errors.As)
// and translate Code/Status at the HTTP boundary.
package autherr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an authentication or authorization failure.
type Kind uint8

const (
	// KindInvalidCredential covers malformed, expired, not-yet-valid, and
	// signature-mismatched tokens. Always recoverable by re-authenticating.
	KindInvalidCredential Kind = iota + 1

	// KindAuthorizationDenied means the request context matched no allow rule,
	// or the rule store was unreachable (fail-closed).
	KindAuthorizationDenied

	// KindStoreUnavailable signals a cache or rule-store connectivity failure.
	// Surfaced to the caller, never silently retried at this layer.
	KindStoreUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindInvalidCredential:
		return "invalid_credential"
	case KindAuthorizationDenied:
		return "authorization_denied"
	case KindStoreUnavailable:
		return "store_unavailable"
	default:
		return "unknown"
	}
}

// Machine-readable codes surfaced on HTTP 401/403 responses.
const (
	CodeMissingAuthToken       = "MISSING_AUTH_TOKEN"
	CodeInvalidAuthTokenFormat = "INVALID_AUTH_TOKEN_FORMAT"
	CodeEmptyAuthToken         = "EMPTY_AUTH_TOKEN"
	CodeTokenExpired           = "TOKEN_EXPIRED"
	CodeTokenFormatError       = "TOKEN_FORMAT_ERROR"
	CodeTokenNotActive         = "TOKEN_NOT_ACTIVE"
	CodeTokenVerification      = "TOKEN_VERIFICATION_FAILED"
	CodeAuthorizationDenied    = "AUTHORIZATION_DENIED"
	CodeStoreUnavailable       = "STORE_UNAVAILABLE"
)

// Error is the tagged failure variant returned by this package's constructors.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Status  int
	Details map[string]any

	cause error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// Is makes two Errors match when their Kind and Code agree, so sentinel-style
// comparisons like errors.Is(err, autherr.InvalidCredential(code, "")) work.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	if other.Code != "" && other.Code != e.Code {
		return false
	}
	return other.Kind == e.Kind
}

// WithDetails attaches structured details and returns the same error.
func (e *Error) WithDetails(details map[string]any) *Error {
	e.Details = details
	return e
}

// InvalidCredential builds a 401 credential failure with the given code.
func InvalidCredential(code, message string) *Error {
	return &Error{
		Kind:    KindInvalidCredential,
		Code:    code,
		Message: message,
		Status:  http.StatusUnauthorized,
	}
}

// AuthorizationDenied builds the 403 denial failure.
func AuthorizationDenied(message string) *Error {
	return &Error{
		Kind:    KindAuthorizationDenied,
		Code:    CodeAuthorizationDenied,
		Message: message,
		Status:  http.StatusForbidden,
	}
}

// StoreUnavailable wraps a cache or rule-store connectivity failure.
func StoreUnavailable(message string, cause error) *Error {
	return &Error{
		Kind:    KindStoreUnavailable,
		Code:    CodeStoreUnavailable,
		Message: message,
		Status:  http.StatusServiceUnavailable,
		cause:   cause,
	}
}

// Wrap returns a copy of err carrying cause for errors.Is/As chains.
func Wrap(err *Error, cause error) *Error {
	clone := *err
	clone.cause = cause
	return &clone
}

// KindOf extracts the Kind from any error, or zero when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
