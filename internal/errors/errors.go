package errors

import (
	"fmt"
)

// QueryError is the structured error type for docquery.
// It provides context for error handling, logging, and partial-success reporting.
type QueryError struct {
	// Code is the unique error code (e.g., "ERR_402_EXTRACTION_FAILED").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, IO, Network, Extraction, Internal).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// SourceID is the document or chunk the error concerns, when per-item.
	SourceID string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool
}

// Error implements the error interface.
func (e *QueryError) Error() string {
	if e.SourceID != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.SourceID, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *QueryError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with QueryError.
func (e *QueryError) Is(target error) bool {
	if t, ok := target.(*QueryError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithSource attaches the offending source id to the error.
// Returns the error for method chaining.
func (e *QueryError) WithSource(sourceID string) *QueryError {
	e.SourceID = sourceID
	return e
}

// New creates a new QueryError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *QueryError {
	return &QueryError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a QueryError from an existing error.
// The error's message becomes the QueryError message.
func Wrap(code string, err error) *QueryError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ExtractionError creates a per-source extraction error.
func ExtractionError(sourceID string, cause error) *QueryError {
	return Wrap(ErrCodeExtractionFailed, cause).WithSource(sourceID)
}

// NetworkError creates a network-related error. Network errors are retryable.
func NetworkError(message string, cause error) *QueryError {
	return New(ErrCodeNetworkTimeout, message, cause)
}

// CorruptIndexError creates a fatal corrupt-index error.
func CorruptIndexError(message string, cause error) *QueryError {
	return New(ErrCodeCorruptIndex, message, cause)
}

// IsRetryable checks if an error is retryable.
// Returns true if the error is a QueryError with Retryable flag set.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if qe, ok := err.(*QueryError); ok {
		return qe.Retryable
	}
	return false
}

// IsFatal checks if an error has fatal severity.
// Fatal errors should abort the current operation.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if qe, ok := err.(*QueryError); ok {
		return qe.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code from a QueryError.
// Returns empty string if not a QueryError.
func GetCode(err error) string {
	if qe, ok := err.(*QueryError); ok {
		return qe.Code
	}
	return ""
}
