// Package storage provides durable key/value slots for the conversation
// store: SQLite, plain files and memory.
package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	mgErrors "github.com/ZaguanLabs/mathgpt/internal/errors"
)

const (
	DriverSQLite = "sqlite"
	DriverFile   = "file"
	DriverMemory = "memory"

	defaultDirName  = ".local/share/mathgpt"
	defaultFileName = "mathgpt.db"

	maxKeyLength   = 200
	maxValueLength = 32 << 20
)

// Backend is a key/value slot store.
type Backend interface {
	Get(key string) ([]byte, bool, error)
	Set(key string, value []byte) error
	Delete(key string) error
	Close() error
}

// Open returns the backend for driver. path is the database file for
// sqlite, the directory for file and ignored for memory.
func Open(driver, path string) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", DriverSQLite:
		return OpenSQLite(path)
	case DriverFile:
		return OpenFile(path)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, mgErrors.NewConfigError("storage.driver", fmt.Sprintf("unknown driver %q", driver), nil)
	}
}

// Retry runs op until it succeeds or maxRetries attempts fail, sleeping
// base, 2*base, 4*base... between attempts. Validation errors are not
// retried.
func Retry(ctx context.Context, maxRetries int, base time.Duration, op func() error) error {
	if maxRetries < 1 {
		maxRetries = 1
	}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		err := op()
		if err == nil {
			return nil
		}
		lastErr = err

		var ve *mgErrors.ValidationError
		if errors.As(err, &ve) {
			return err
		}

		if attempt < maxRetries-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(1<<attempt) * base):
			}
		}
	}
	return fmt.Errorf("failed after %d attempts: %w", maxRetries, lastErr)
}

func resolvePath(path, fileName string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		trimmed = filepath.Join(home, defaultDirName, fileName)
	}

	absPath, err := filepath.Abs(trimmed)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path: %w", err)
	}

	dir := absPath
	if fileName != "" {
		dir = filepath.Dir(absPath)
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("create storage directory: %w", err)
	}

	return absPath, nil
}

// validateKey keeps keys usable as file names and table keys.
func validateKey(key string) error {
	if key == "" {
		return mgErrors.NewValidationError("key", "cannot be empty", nil, nil)
	}
	if len(key) > maxKeyLength {
		return mgErrors.NewValidationError("key", fmt.Sprintf("too long (max %d characters)", maxKeyLength), nil, nil)
	}
	if key == "." || key == ".." {
		return mgErrors.NewValidationError("key", "invalid key", key, nil)
	}
	for _, char := range key {
		if !((char >= 'a' && char <= 'z') || (char >= 'A' && char <= 'Z') ||
			(char >= '0' && char <= '9') || char == '-' || char == '_' || char == '.') {
			return mgErrors.NewValidationError("key", "contains invalid characters", key, nil)
		}
	}
	return nil
}

func validateValue(value []byte) error {
	if len(value) > maxValueLength {
		return mgErrors.NewValidationError("value", fmt.Sprintf("too large (max %d bytes)", maxValueLength), nil, nil)
	}
	return nil
}
