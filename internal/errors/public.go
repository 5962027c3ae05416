package errors

import (
	"context"
	stderrors "errors"
	"regexp"
	"sync/atomic"
)

// SecurityLevel controls how much error detail reaches the user.
type SecurityLevel int32

const (
	// LevelDebug shows the full error chain.
	LevelDebug SecurityLevel = iota
	// LevelProduction shows a sanitized summary.
	LevelProduction
)

var securityLevel atomic.Int32

func init() {
	securityLevel.Store(int32(LevelProduction))
}

// SetSecurityLevel sets the detail level used by PublicMessage.
func SetSecurityLevel(level SecurityLevel) {
	securityLevel.Store(int32(level))
}

var (
	rePath       = regexp.MustCompile(`[a-zA-Z]:\\[^\s]+|(?:^|\s)/[^\s]+`)
	reIP         = regexp.MustCompile(`\b(?:[0-9]{1,3}\.){3}[0-9]{1,3}\b`)
	reEmail      = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
	reCredential = regexp.MustCompile(`(?i)(api[_-]?key|secret|password|token|bearer)["\s]*[:=]?["\s]*[a-zA-Z0-9_\-.]{8,}`)
	reSKKey      = regexp.MustCompile(`\bsk-[a-zA-Z0-9_\-]{8,}`)
	reURL        = regexp.MustCompile(`(?i)\bhttps?://[^\s"]+`)
)

// Sanitize removes paths, addresses, URLs and credentials from msg.
func Sanitize(msg string) string {
	if msg == "" {
		return ""
	}
	s := reURL.ReplaceAllString(msg, "[URL]")
	s = reCredential.ReplaceAllString(s, "[CREDENTIAL]")
	s = reSKKey.ReplaceAllString(s, "[CREDENTIAL]")
	s = reEmail.ReplaceAllString(s, "[EMAIL]")
	s = reIP.ReplaceAllString(s, "[IP]")
	s = rePath.ReplaceAllStringFunc(s, func(m string) string {
		if len(m) > 0 && (m[0] == ' ' || m[0] == '\t' || m[0] == '\n') {
			return m[:1] + "[PATH]"
		}
		return "[PATH]"
	})
	return s
}

// PublicMessage returns text suitable for showing err to a user.
func PublicMessage(err error) string {
	if err == nil {
		return ""
	}
	if SecurityLevel(securityLevel.Load()) == LevelDebug {
		return err.Error()
	}

	var (
		validationErr *ValidationError
		apiErr        *APIError
		networkErr    *NetworkError
		timeoutErr    *TimeoutError
		storageErr    *StorageError
		configErr     *ConfigError
		commandErr    *CommandError
	)
	switch {
	case stderrors.As(err, &validationErr):
		return validationErr.message
	case stderrors.As(err, &timeoutErr), stderrors.Is(err, context.DeadlineExceeded):
		return "The tutor took too long to answer. Please try again."
	case stderrors.As(err, &apiErr):
		if apiErr.message != "" {
			return "The tutor service returned an error: " + Sanitize(apiErr.message)
		}
		return "The tutor service returned an error."
	case stderrors.As(err, &networkErr):
		return "Could not reach the tutor service. Check your connection and try again."
	case stderrors.As(err, &storageErr):
		return "The conversation could not be saved or cleared. Please try again."
	case stderrors.As(err, &configErr):
		return "Configuration problem in " + configErr.field + ": " + Sanitize(configErr.message)
	case stderrors.As(err, &commandErr):
		return commandErr.message
	case stderrors.Is(err, context.Canceled):
		return "Request cancelled."
	}
	return Sanitize(err.Error())
}
