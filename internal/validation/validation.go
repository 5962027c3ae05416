// Package validation checks user input before it reaches the store or the
// network.
package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	mgErrors "github.com/ZaguanLabs/mathgpt/internal/errors"
)

// Validation constants
const (
	MaxMessageLength = 4000 // characters, counted after NFC normalisation
	MinMessageLength = 1
	MaxCommandLength = 1000
	MaxPathLength    = 500
	MaxModelLength   = 200
)

// Validation patterns
var (
	// Slash commands: "/name" followed by optional arguments.
	CommandPattern = regexp.MustCompile(`^/[a-z][a-z0-9_-]*(\s.*)?$`)

	URLPattern = regexp.MustCompile(`^https?://[a-zA-Z0-9\-._~:/?#\[\]@!$&'()*+,;=%]+$`)

	ModelNamePattern = regexp.MustCompile(`^[a-zA-Z0-9\-._/:]+$`)
)

// ValidateMessage trims and NFC-normalises a chat message and checks its
// length. It returns the normalised text to send.
func ValidateMessage(message string) (string, error) {
	normalized := norm.NFC.String(strings.TrimSpace(message))

	if strings.ContainsRune(normalized, 0) {
		return "", mgErrors.NewValidationError("message", "message contains null bytes", nil, nil)
	}

	n := utf8.RuneCountInString(normalized)
	if n < MinMessageLength {
		return "", mgErrors.NewValidationError("message", "message cannot be empty", nil, nil)
	}
	if n > MaxMessageLength {
		return "", mgErrors.NewValidationError("message",
			fmt.Sprintf("message too long (%d characters, max %d)", n, MaxMessageLength), n, nil)
	}
	return normalized, nil
}

// ValidateCommand validates slash-command input
func ValidateCommand(input string) error {
	if input == "" {
		return mgErrors.NewValidationError("command", "command cannot be empty", nil, nil)
	}

	if len(input) > MaxCommandLength {
		return mgErrors.NewValidationError("command", fmt.Sprintf("command too long (max %d characters)", MaxCommandLength), nil, nil)
	}

	if !CommandPattern.MatchString(input) {
		return mgErrors.NewValidationError("command", "not a command", input, nil)
	}

	return ValidatePrintable(input)
}

// ValidatePath validates a directory given on the command line
func ValidatePath(path string) error {
	if strings.TrimSpace(path) == "" {
		return mgErrors.NewValidationError("path", "path cannot be empty", nil, nil)
	}

	if len(path) > MaxPathLength {
		return mgErrors.NewValidationError("path", fmt.Sprintf("path too long (max %d characters)", MaxPathLength), nil, nil)
	}

	return ValidatePrintable(path)
}

// ValidateURL validates URLs
func ValidateURL(url string) error {
	if url == "" {
		return mgErrors.NewValidationError("url", "URL cannot be empty", nil, nil)
	}

	if len(url) > 1000 {
		return mgErrors.NewValidationError("url", "URL too long", nil, nil)
	}

	if !URLPattern.MatchString(url) {
		return mgErrors.NewValidationError("url", "invalid URL format", nil, nil)
	}

	return nil
}

// ValidateModelName validates completion model names
func ValidateModelName(model string) error {
	if model == "" {
		return mgErrors.NewValidationError("model", "model name cannot be empty", nil, nil)
	}

	if len(model) > MaxModelLength {
		return mgErrors.NewValidationError("model", fmt.Sprintf("model name too long (max %d characters)", MaxModelLength), nil, nil)
	}

	if !ModelNamePattern.MatchString(model) {
		return mgErrors.NewValidationError("model", "model name contains invalid characters", model, nil)
	}

	return nil
}

// ValidateTemperature validates temperature parameter
func ValidateTemperature(temp float64) error {
	if temp < 0.0 || temp > 2.0 {
		return mgErrors.NewValidationError("temperature", fmt.Sprintf("temperature must be between 0.0 and 2.0, got %.2f", temp), temp, nil)
	}

	return nil
}

// IsPrintable checks if string contains only printable characters
func IsPrintable(s string) bool {
	for _, r := range s {
		if !unicode.IsPrint(r) && r != '\n' && r != '\r' && r != '\t' {
			return false
		}
	}
	return true
}

// ValidatePrintable validates that input contains only printable characters
func ValidatePrintable(input string) error {
	if !IsPrintable(input) {
		return mgErrors.NewValidationError("input", "input contains non-printable characters", nil, nil)
	}
	return nil
}
