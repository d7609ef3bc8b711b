// Package errors provides standardized error codes for the relay.
//
// Error codes follow the format {domain}.{error} where:
//   - domain: The subsystem that generated the error (session, action, dispatch, ...)
//   - error: The specific error type within that domain
//
// These codes are stable and surface in JSON API responses so hook scripts
// and the resolution page can branch on them programmatically. Human-readable
// messages are provided alongside codes.
package errors

import (
	"errors"
	"fmt"
)

// Error codes by domain.
const (
	// Session domain - session registry errors
	CodeSessionNotFound = "session.not_found" // No session registered under this id
	CodeSessionMissing  = "session.missing"   // session_id field absent from request

	// Action domain - action token errors
	CodeActionMissingToken = "action.missing_token" // Registration without a token
	CodeActionExpired      = "action.expired"       // Token absent, consumed, or past TTL
	CodeActionEmptyText    = "action.empty_text"    // Custom-text resolution with blank text
	CodeActionBadVerdict   = "action.bad_verdict"   // Verdict other than allow/deny

	// Dispatch domain - keystroke injection errors
	CodeDispatchNotFound    = "dispatch.session_not_found" // tmux pane does not exist
	CodeDispatchFailed      = "dispatch.failed"            // send-keys failed
	CodeDispatchTmuxMissing = "dispatch.tmux_missing"      // tmux not installed on host

	// Notify domain - push publishing errors
	CodeNotifyPublishFailed = "notify.publish_failed" // Push sink rejected or unreachable

	// Audit domain - audit log errors
	CodeAuditOpenFailed = "audit.open_failed" // Audit database open failed
	CodeAuditSaveFailed = "audit.save_failed" // Failed to append audit entry

	// Config domain
	CodeConfigInvalid = "config.invalid" // Config file missing or unparseable

	// Server domain - HTTP surface errors
	CodeServerInvalidRequest = "server.invalid_request" // Malformed body or missing field
	CodeServerRateLimited    = "server.rate_limited"    // Resolution endpoint throttled

	// General domain - catch-all errors
	CodeUnknown  = "error.unknown"  // Unknown error
	CodeInternal = "error.internal" // Internal server error
)

// CodedError wraps an error with a stable error code.
// This allows errors to carry both a code for programmatic handling
// and a message for human consumption.
type CodedError struct {
	Code    string // Stable error code (e.g., "action.expired")
	Message string // Human-readable error message
	Cause   error  // Underlying error (may be nil)
}

// Error implements the error interface.
func (e *CodedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *CodedError) Unwrap() error {
	return e.Cause
}

// New creates a new CodedError with the given code and message.
func New(code, message string) *CodedError {
	return &CodedError{
		Code:    code,
		Message: message,
	}
}

// Wrap creates a new CodedError wrapping an existing error.
func Wrap(code, message string, cause error) *CodedError {
	return &CodedError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// GetCode extracts the error code from an error.
// Falls back to CodeUnknown for unrecognized errors.
func GetCode(err error) string {
	if err == nil {
		return ""
	}

	var coded *CodedError
	if errors.As(err, &coded) {
		return coded.Code
	}

	return CodeUnknown
}

// ToCodeAndMessage extracts both code and message from an error.
// This is the primary function for converting errors to client responses.
func ToCodeAndMessage(err error) (code, message string) {
	if err == nil {
		return "", ""
	}

	var coded *CodedError
	if errors.As(err, &coded) {
		return coded.Code, coded.Message
	}

	return CodeUnknown, err.Error()
}

// IsCode checks if an error has a specific error code.
func IsCode(err error, code string) bool {
	return GetCode(err) == code
}

// Common error constructors for frequently used error types.

// SessionMissing creates a "session.missing" error.
func SessionMissing() *CodedError {
	return New(CodeSessionMissing, "session_id is required")
}

// MissingToken creates an "action.missing_token" error.
// The store requires a caller-supplied token; registration without one
// is a hook-side bug and is surfaced as a client error.
func MissingToken() *CodedError {
	return New(CodeActionMissingToken, "token is required")
}

// ActionExpired creates an "action.expired" error.
// This covers absent, already-consumed, and past-TTL tokens alike so a
// caller cannot distinguish a guessed token from a used one.
func ActionExpired(token string) *CodedError {
	return New(CodeActionExpired, fmt.Sprintf("action %s has expired or was already used", token))
}

// EmptyText creates an "action.empty_text" error.
func EmptyText() *CodedError {
	return New(CodeActionEmptyText, "text must not be empty")
}

// BadVerdict creates an "action.bad_verdict" error.
func BadVerdict(verdict string) *CodedError {
	return New(CodeActionBadVerdict, fmt.Sprintf("invalid verdict: %s (must be 'allow' or 'deny')", verdict))
}

// TmuxMissing creates a "dispatch.tmux_missing" error.
func TmuxMissing() *CodedError {
	return New(CodeDispatchTmuxMissing, "tmux is not installed on this system")
}

// DispatchFailed creates a "dispatch.failed" error.
func DispatchFailed(handle string, cause error) *CodedError {
	return Wrap(CodeDispatchFailed, fmt.Sprintf("failed to send keys to pane %s", handle), cause)
}

// PublishFailed creates a "notify.publish_failed" error.
func PublishFailed(cause error) *CodedError {
	return Wrap(CodeNotifyPublishFailed, "push notification publish failed", cause)
}

// InvalidRequest creates a "server.invalid_request" error.
func InvalidRequest(reason string) *CodedError {
	return New(CodeServerInvalidRequest, reason)
}

// Internal creates an "error.internal" error.
func Internal(message string, cause error) *CodedError {
	return Wrap(CodeInternal, message, cause)
}
