package errors

import (
	"errors"
	"testing"
)

func TestCodedError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *CodedError
		expected string
	}{
		{
			name:     "error without cause",
			err:      New(CodeActionExpired, "action expired"),
			expected: "action.expired: action expired",
		},
		{
			name:     "error with cause",
			err:      Wrap(CodeDispatchFailed, "send-keys failed", errors.New("exit status 1")),
			expected: "dispatch.failed: send-keys failed (exit status 1)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestCodedError_Unwrap(t *testing.T) {
	cause := errors.New("original error")
	err := Wrap(CodeInternal, "wrapped", cause)

	if err.Unwrap() != cause {
		t.Error("Unwrap() should return the original cause")
	}

	err2 := New(CodeActionExpired, "expired")
	if err2.Unwrap() != nil {
		t.Error("Unwrap() should return nil when no cause")
	}
}

func TestGetCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{
			name:     "nil error",
			err:      nil,
			expected: "",
		},
		{
			name:     "CodedError",
			err:      MissingToken(),
			expected: CodeActionMissingToken,
		},
		{
			name:     "wrapped CodedError",
			err:      Wrap(CodeDispatchFailed, "failed", errors.New("cause")),
			expected: CodeDispatchFailed,
		},
		{
			name:     "plain error",
			err:      errors.New("some error"),
			expected: CodeUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetCode(tt.err); got != tt.expected {
				t.Errorf("GetCode() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestToCodeAndMessage(t *testing.T) {
	code, message := ToCodeAndMessage(ActionExpired("tok-1"))
	if code != CodeActionExpired {
		t.Errorf("code = %q", code)
	}
	if message == "" {
		t.Error("message should not be empty")
	}

	code, message = ToCodeAndMessage(errors.New("raw failure"))
	if code != CodeUnknown || message != "raw failure" {
		t.Errorf("plain error mapped to %q/%q", code, message)
	}

	if code, message = ToCodeAndMessage(nil); code != "" || message != "" {
		t.Error("nil error should map to empty code and message")
	}
}

func TestIsCode(t *testing.T) {
	if !IsCode(EmptyText(), CodeActionEmptyText) {
		t.Error("IsCode should match the constructor's code")
	}
	if IsCode(EmptyText(), CodeActionExpired) {
		t.Error("IsCode should not match a different code")
	}
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		err  *CodedError
		code string
	}{
		{SessionMissing(), CodeSessionMissing},
		{MissingToken(), CodeActionMissingToken},
		{ActionExpired("tok"), CodeActionExpired},
		{EmptyText(), CodeActionEmptyText},
		{BadVerdict("maybe"), CodeActionBadVerdict},
		{TmuxMissing(), CodeDispatchTmuxMissing},
		{InvalidRequest("bad body"), CodeServerInvalidRequest},
	}
	for _, tt := range tests {
		if tt.err.Code != tt.code {
			t.Errorf("constructor produced code %q, want %q", tt.err.Code, tt.code)
		}
		if tt.err.Message == "" {
			t.Errorf("constructor for %q has empty message", tt.code)
		}
	}
}
