// Package errors provides structured error handling with typed error codes.
//
// Error codes are organized into categories:
//   - General errors (1-99): Unknown and general errors
//   - Configuration errors (100-199): Invalid parameters and parameter combinations
//   - Data/Feed errors (200-299): Malformed or out-of-order market data
//   - Strategy errors (300-399): Strategy decision failures
//   - Execution errors (400-499): Order execution and ledger errors
//   - Backtest run errors (500-599): Runner lifecycle errors
//   - Metrics errors (600-699): Performance statistics errors
//   - Result store errors (700-799): Result persistence errors
//
// Usage:
//
//	// Create a new error
//	err := errors.New(errors.ErrCodeInvalidParameter, "invalid parameter value")
//
//	// Create a formatted error
//	err := errors.Newf(errors.ErrCodeDataNotFound, "no bars found in %s", path)
//
//	// Wrap an existing error
//	err := errors.Wrap(errors.ErrCodeDataQueryFailed, "failed to execute query", originalErr)
//
//	// Check error code
//	if errors.HasCode(err, errors.ErrCodeDataOutOfOrder) { ... }
package errors

import (
	"errors"
	"fmt"
	"time"
)

// Error represents a structured error with an error code and message.
type Error struct {
	Code    ErrorCode
	Message string
	Cause   error
}

// New creates a new Error with the given code and message.
func New(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   nil,
	}
}

// Newf creates a new Error with the given code and formatted message.
func Newf(code ErrorCode, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   nil,
	}
}

// Wrap wraps an existing error with a new Error containing the given code and message.
func Wrap(code ErrorCode, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Wrapf wraps an existing error with a new Error containing the given code and formatted message.
func Wrapf(code ErrorCode, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%d] %s: %v", e.Code, e.Message, e.Cause)
	}

	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether any error in err's chain matches target.
// This is a convenience wrapper around the standard errors.Is function.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
// This is a convenience wrapper around the standard errors.As function.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// GetCode extracts the ErrorCode from an error if it's an *Error type.
// Returns ErrCodeUnknown if the error is not an *Error type.
func GetCode(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}

	return ErrCodeUnknown
}

// HasCode checks if an error has a specific ErrorCode.
func HasCode(err error, code ErrorCode) bool {
	return GetCode(err) == code
}

// DataOrderError reports a bar whose timestamp is not strictly greater than
// its predecessor. It is fatal: the run aborts with zero fills recorded for
// the offending bar.
type DataOrderError struct {
	BarIndex  int       // Index of the offending bar in the feed
	Previous  time.Time // Timestamp of the preceding bar
	Timestamp time.Time // Timestamp of the offending bar
}

// NewDataOrderError creates a new DataOrderError.
func NewDataOrderError(barIndex int, previous, timestamp time.Time) *DataOrderError {
	return &DataOrderError{
		BarIndex:  barIndex,
		Previous:  previous,
		Timestamp: timestamp,
	}
}

// Error implements the error interface.
func (e *DataOrderError) Error() string {
	return fmt.Sprintf("bar %d timestamp %s is not after previous bar timestamp %s",
		e.BarIndex, e.Timestamp.Format(time.RFC3339), e.Previous.Format(time.RFC3339))
}

// IsDataOrderError checks if an error is a DataOrderError.
// It uses errors.As to check the error chain.
func IsDataOrderError(err error) bool {
	var orderErr *DataOrderError

	return errors.As(err, &orderErr)
}

// InsufficientLiquidityError reports an order rejected in strict liquidity
// mode because its quantity exceeds the configured fraction of bar volume.
type InsufficientLiquidityError struct {
	Requested float64   // Requested order quantity
	Available float64   // Maximum quantity the liquidity cap allows
	Timestamp time.Time // Bar timestamp the order executed against
}

// NewInsufficientLiquidityError creates a new InsufficientLiquidityError.
func NewInsufficientLiquidityError(requested, available float64, timestamp time.Time) *InsufficientLiquidityError {
	return &InsufficientLiquidityError{
		Requested: requested,
		Available: available,
		Timestamp: timestamp,
	}
}

// Error implements the error interface.
func (e *InsufficientLiquidityError) Error() string {
	return fmt.Sprintf("order quantity %.4f exceeds available liquidity %.4f at %s",
		e.Requested, e.Available, e.Timestamp.Format(time.RFC3339))
}

// IsInsufficientLiquidityError checks if an error is an InsufficientLiquidityError.
func IsInsufficientLiquidityError(err error) bool {
	var liqErr *InsufficientLiquidityError

	return errors.As(err, &liqErr)
}

// InsufficientDataError represents an error when there is not enough data
// for a calculation (e.g., metrics requiring at least two equity points).
type InsufficientDataError struct {
	Required int    // Minimum data points required
	Actual   int    // Actual data points available
	Message  string // Human-readable message
}

// NewInsufficientDataError creates a new InsufficientDataError.
func NewInsufficientDataError(required, actual int, message string) *InsufficientDataError {
	return &InsufficientDataError{
		Required: required,
		Actual:   actual,
		Message:  message,
	}
}

// NewInsufficientDataErrorf creates a new InsufficientDataError with a formatted message.
func NewInsufficientDataErrorf(required, actual int, format string, args ...any) *InsufficientDataError {
	return &InsufficientDataError{
		Required: required,
		Actual:   actual,
		Message:  fmt.Sprintf(format, args...),
	}
}

// Error implements the error interface.
func (e *InsufficientDataError) Error() string {
	return e.Message
}

// IsInsufficientDataError checks if an error is an InsufficientDataError.
// It uses errors.As to check the error chain.
func IsInsufficientDataError(err error) bool {
	var insufficientErr *InsufficientDataError

	return errors.As(err, &insufficientErr)
}

// ConfigurationError reports an invalid parameter combination detected
// before a run starts.
type ConfigurationError struct {
	Field   string // Configuration field that failed validation
	Message string // Human-readable message
}

// NewConfigurationError creates a new ConfigurationError.
func NewConfigurationError(field, message string) *ConfigurationError {
	return &ConfigurationError{
		Field:   field,
		Message: message,
	}
}

// NewConfigurationErrorf creates a new ConfigurationError with a formatted message.
func NewConfigurationErrorf(field, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{
		Field:   field,
		Message: fmt.Sprintf(format, args...),
	}
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid configuration for %s: %s", e.Field, e.Message)
	}

	return fmt.Sprintf("invalid configuration: %s", e.Message)
}

// IsConfigurationError checks if an error is a ConfigurationError.
func IsConfigurationError(err error) bool {
	var cfgErr *ConfigurationError

	return errors.As(err, &cfgErr)
}
