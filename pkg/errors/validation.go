package errors

import (
	"strings"
	"unicode"
)

// ValidateMakefilePath validates a Makefile path supplied on the command line.
//
// Validation rules:
//   - Path cannot be empty
//   - Maximum length of 4096 characters
//   - No null bytes or control characters
//
// Existence is checked later by the rule source so that a missing file
// surfaces as a SOURCE_ERROR.
func ValidateMakefilePath(path string) error {
	if strings.TrimSpace(path) == "" {
		return New(ErrCodeInvalidPath, "makefile path cannot be empty")
	}

	const maxPathLength = 4096
	if len(path) > maxPathLength {
		return New(ErrCodeInvalidPath, "path too long (max %d characters)", maxPathLength)
	}

	for _, r := range path {
		if r == '\x00' || unicode.IsControl(r) {
			return New(ErrCodeInvalidPath, "path contains invalid characters")
		}
	}

	return nil
}

// ValidateTargetName validates a make target name used for focusing.
// Target names may contain almost anything except whitespace, colons and
// control characters.
func ValidateTargetName(name string) error {
	if name == "" {
		return New(ErrCodeInvalidInput, "target name cannot be empty")
	}
	for _, r := range name {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return New(ErrCodeInvalidInput, "target name contains whitespace or control characters: %q", name)
		}
	}
	if strings.Contains(name, ":") {
		return New(ErrCodeInvalidInput, "target name cannot contain ':': %q", name)
	}
	return nil
}
