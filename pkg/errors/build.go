package errors

import (
	"fmt"
	"strings"
)

// ResolutionError reports an import specifier that matched no file on disk.
type ResolutionError struct {
	Specifier string   // Import text as written in the importing module
	From      string   // Importing module or directory (empty for entries)
	Tried     []string // Candidate paths checked, in order
	Cause     error
}

// Error implements the error interface.
func (e *ResolutionError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "cannot resolve %q", e.Specifier)
	if e.From != "" {
		fmt.Fprintf(&b, " from %s", e.From)
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *ResolutionError) Unwrap() error { return e.Cause }

// Code returns the error code for this error type.
func (e *ResolutionError) Code() Code { return ErrCodeResolution }

// ParseError reports a module whose imports could not be extracted.
type ParseError struct {
	Path     string
	Messages []string
	Cause    error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	msg := "syntax error"
	if len(e.Messages) > 0 {
		msg = strings.Join(e.Messages, "; ")
	} else if e.Cause != nil {
		msg = e.Cause.Error()
	}
	return fmt.Sprintf("parse %s: %s", e.Path, msg)
}

// Unwrap returns the underlying cause.
func (e *ParseError) Unwrap() error { return e.Cause }

// Code returns the error code for this error type.
func (e *ParseError) Code() Code { return ErrCodeParse }

// TransformError reports a failed step of a module's transform chain.
type TransformError struct {
	Path  string
	Step  string
	Cause error
}

// Error implements the error interface.
func (e *TransformError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("transform %s (%s) failed", e.Path, e.Step)
	}
	return fmt.Sprintf("transform %s (%s): %v", e.Path, e.Step, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *TransformError) Unwrap() error { return e.Cause }

// Code returns the error code for this error type.
func (e *TransformError) Code() Code { return ErrCodeTransform }

// EmitError reports an artifact that could not be written.
type EmitError struct {
	Path  string
	Cause error
}

// Error implements the error interface.
func (e *EmitError) Error() string {
	return fmt.Sprintf("emit %s: %v", e.Path, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *EmitError) Unwrap() error { return e.Cause }

// Code returns the error code for this error type.
func (e *EmitError) Code() Code { return ErrCodeEmit }

// ConfigError reports an unusable configuration value.
type ConfigError struct {
	Key     string
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Key == "" {
		return "config: " + e.Message
	}
	return fmt.Sprintf("config %s: %s", e.Key, e.Message)
}

// Code returns the error code for this error type.
func (e *ConfigError) Code() Code { return ErrCodeInvalidConfig }

// Configf builds a ConfigError for key.
func Configf(key, format string, args ...any) *ConfigError {
	return &ConfigError{Key: key, Message: fmt.Sprintf(format, args...)}
}
