package types

import (
	"errors"
	"fmt"
)

// ConfigError is a fatal configuration failure: a missing or unresolvable
// container, invalid lifecycle exports, or conflicting options. It prevents
// the affected application from mounting; other applications are untouched.
type ConfigError struct {
	err error
}

// ConfigErrorf builds a ConfigError from a format string. %w wrapping works
// as with fmt.Errorf.
func ConfigErrorf(format string, args ...interface{}) *ConfigError {
	return &ConfigError{err: fmt.Errorf(format, args...)}
}

func (e *ConfigError) Error() string { return e.err.Error() }

func (e *ConfigError) Unwrap() error { return e.err }

// IsConfigError reports whether any error in the chain is a ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}
