// internal/core/errors.go
package core

import "fmt"

// Error represents a structured error with code and optional cause.
type Error struct {
	Code    string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is matching by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// WrapError creates a new error with the same code but with a cause.
func WrapError(base *Error, cause error) *Error {
	return &Error{
		Code:    base.Code,
		Message: base.Message,
		Cause:   cause,
	}
}

// Errorf wraps base with a formatted cause.
func Errorf(base *Error, format string, args ...any) *Error {
	return WrapError(base, fmt.Errorf(format, args...))
}

// Predefined errors
var (
	// Data errors
	ErrSymbolNotFound     = &Error{Code: "SYMBOL_NOT_FOUND", Message: "symbol not found"}
	ErrNoData             = &Error{Code: "NO_DATA", Message: "no data available"}
	ErrInvalidPriceSeries = &Error{Code: "INVALID_PRICE_SERIES", Message: "invalid price series"}

	// Collector errors
	ErrCollectorFailed = &Error{Code: "COLLECTOR_FAILED", Message: "collector failed"}

	// Strategy errors
	ErrInvalidWindow    = &Error{Code: "INVALID_WINDOW", Message: "invalid moving average windows"}
	ErrInsufficientData = &Error{Code: "INSUFFICIENT_DATA", Message: "insufficient data for analysis"}

	// Simulation errors
	ErrInsufficientCapital = &Error{Code: "INSUFFICIENT_CAPITAL", Message: "initial capital must be positive"}
	ErrSignalMismatch      = &Error{Code: "SIGNAL_MISMATCH", Message: "signals do not line up with price series"}

	// Config errors
	ErrConfigInvalid = &Error{Code: "CONFIG_INVALID", Message: "configuration invalid"}
	ErrConfigMissing = &Error{Code: "CONFIG_MISSING", Message: "required configuration missing"}

	// Output errors
	ErrExportFailed = &Error{Code: "EXPORT_FAILED", Message: "export failed"}
)
