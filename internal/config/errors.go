package config

import "fmt"

// ConfigError describes a malformed or incomplete configuration. It is
// always fatal and surfaced before any resolution or execution starts.
type ConfigError struct {
	// Key is the configuration key or list entry the error concerns.
	Key string
	Msg string
	Err error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("config: %s: %s", e.Key, e.Msg)
	}
	return "config: " + e.Msg
}

// Unwrap returns the underlying cause, if any.
func (e *ConfigError) Unwrap() error {
	return e.Err
}

func errf(key, format string, args ...any) *ConfigError {
	return &ConfigError{Key: key, Msg: fmt.Sprintf(format, args...)}
}
