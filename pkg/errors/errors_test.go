package errors

import (
	"errors"
	"testing"
)

func TestNew(t *testing.T) {
	err := New(ErrCodeInvalidInput, "test message: %s", "value")

	if err.Code != ErrCodeInvalidInput {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeInvalidInput)
	}

	if err.Message != "test message: value" {
		t.Errorf("Message = %v, want %v", err.Message, "test message: value")
	}

	expected := "INVALID_INPUT: test message: value"
	if err.Error() != expected {
		t.Errorf("Error() = %v, want %v", err.Error(), expected)
	}
}

func TestWrap(t *testing.T) {
	cause := errors.New("exit status 2")
	err := Wrap(ErrCodeSource, cause, "make failed")

	if err.Code != ErrCodeSource {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeSource)
	}

	if err.Cause != cause {
		t.Errorf("Cause = %v, want %v", err.Cause, cause)
	}

	if unwrapped := errors.Unwrap(err); unwrapped != cause {
		t.Errorf("Unwrap() = %v, want %v", unwrapped, cause)
	}

	if !errors.Is(err, cause) {
		t.Error("errors.Is(err, cause) = false, want true")
	}

	expected := "SOURCE_ERROR: make failed: exit status 2"
	if err.Error() != expected {
		t.Errorf("Error() = %v, want %v", err.Error(), expected)
	}
}

func TestIs(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		code     Code
		expected bool
	}{
		{
			name:     "matching code",
			err:      New(ErrCodeSource, "test"),
			code:     ErrCodeSource,
			expected: true,
		},
		{
			name:     "non-matching code",
			err:      New(ErrCodeSource, "test"),
			code:     ErrCodeRender,
			expected: false,
		},
		{
			name:     "wrapped error",
			err:      Wrap(ErrCodeRender, New(ErrCodeInvalidInput, "inner"), "outer"),
			code:     ErrCodeRender,
			expected: true,
		},
		{
			name:     "fmt wrapped",
			err:      fmtWrap(New(ErrCodeSource, "inner")),
			code:     ErrCodeSource,
			expected: true,
		},
		{
			name:     "non-Error type",
			err:      errors.New("plain error"),
			code:     ErrCodeInvalidInput,
			expected: false,
		},
		{
			name:     "nil error",
			err:      nil,
			code:     ErrCodeInvalidInput,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Is(tt.err, tt.code); got != tt.expected {
				t.Errorf("Is() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func fmtWrap(err error) error {
	return errors.Join(errors.New("context"), err)
}

func TestGetCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected Code
	}{
		{"Error type", New(ErrCodeRender, "test"), ErrCodeRender},
		{"plain error", errors.New("plain"), ""},
		{"nil", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetCode(tt.err); got != tt.expected {
				t.Errorf("GetCode() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"Error type", New(ErrCodeInvalidInput, "friendly message"), "friendly message"},
		{"with cause", Wrap(ErrCodeSource, errors.New("no such file"), "read Makefile"), "read Makefile: no such file"},
		{"plain error", errors.New("plain error"), "plain error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := UserMessage(tt.err); got != tt.expected {
				t.Errorf("UserMessage() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestWarningString(t *testing.T) {
	w := Warning{Code: WarnCodeParse, Origin: "Makefile:3", Message: "missing ':' separator"}
	if got := w.String(); got != "Makefile:3: missing ':' separator" {
		t.Errorf("String() = %q", got)
	}

	w.Origin = ""
	if got := w.String(); got != "missing ':' separator" {
		t.Errorf("String() without origin = %q", got)
	}
}

func TestCountWarnings(t *testing.T) {
	ws := []Warning{
		{Code: WarnCodeParse},
		{Code: WarnCodeCycle},
		{Code: WarnCodeParse},
	}
	if got := CountWarnings(ws, WarnCodeParse); got != 2 {
		t.Errorf("CountWarnings(parse) = %d, want 2", got)
	}
	if got := CountWarnings(ws, WarnCodeCycle); got != 1 {
		t.Errorf("CountWarnings(cycle) = %d, want 1", got)
	}
	if got := CountWarnings(nil, WarnCodeCycle); got != 0 {
		t.Errorf("CountWarnings(nil) = %d, want 0", got)
	}
}

func TestErrorCodesAreUnique(t *testing.T) {
	codes := []Code{
		ErrCodeInvalidInput,
		ErrCodeInvalidFormat,
		ErrCodeInvalidPath,
		ErrCodeFileNotFound,
		ErrCodeSource,
		ErrCodeRender,
		ErrCodeTimeout,
		ErrCodeInternal,
		ErrCodeUnsupported,
		WarnCodeParse,
		WarnCodeCycle,
	}

	seen := make(map[Code]bool)
	for _, code := range codes {
		if seen[code] {
			t.Errorf("Duplicate error code: %s", code)
		}
		seen[code] = true
	}
}
