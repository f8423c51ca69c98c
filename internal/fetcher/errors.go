package fetcher

import (
	"errors"
	"fmt"
)

// ErrorType represents the category of error returned by a statement extractor
type ErrorType string

const (
	// ErrorTypeNotFound indicates the upstream has no filings for the company or period
	ErrorTypeNotFound ErrorType = "not_found"
	// ErrorTypeBasisNotFound indicates nothing was filed on the requested statement basis
	ErrorTypeBasisNotFound ErrorType = "basis_not_found"
	// ErrorTypeTransient indicates a network, timeout, rate limit or 5xx failure
	ErrorTypeTransient ErrorType = "transient"
	// ErrorTypeClient indicates the upstream rejected the request (bad key, bad arguments)
	ErrorTypeClient ErrorType = "client"
	// ErrorTypeValidation indicates the response was received but could not be used
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeEmpty indicates the computed record carries no value at all
	ErrorTypeEmpty ErrorType = "empty"
)

// FetchError represents a structured error from a fetch attempt
type FetchError struct {
	Type       ErrorType
	Retryable  bool
	StatusCode int
	Message    string
	Cause      error
}

// Error implements the error interface
func (e *FetchError) Error() string {
	msg := e.Message
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s error (status %d): %s", e.Type, e.StatusCode, msg)
	}
	return fmt.Sprintf("%s error: %s", e.Type, msg)
}

// Unwrap implements error unwrapping for errors.Is and errors.As
func (e *FetchError) Unwrap() error {
	return e.Cause
}

// NewNotFoundError creates a not-found error. It ends the current attempt
// without a basis switch.
func NewNotFoundError(message string) *FetchError {
	return &FetchError{
		Type:    ErrorTypeNotFound,
		Message: message,
	}
}

// NewBasisNotFoundError reports that nothing was filed on basis
func NewBasisNotFoundError(basis string) *FetchError {
	return &FetchError{
		Type:    ErrorTypeBasisNotFound,
		Message: "no statements filed on " + basis + " basis",
	}
}

// NewTransientError creates a retryable error. statusCode may be zero.
func NewTransientError(cause error, statusCode int) *FetchError {
	return &FetchError{
		Type:       ErrorTypeTransient,
		Retryable:  true,
		StatusCode: statusCode,
		Message:    "upstream request failed",
		Cause:      cause,
	}
}

// NewClientError creates a client error
func NewClientError(statusCode int, message string) *FetchError {
	return &FetchError{
		Type:       ErrorTypeClient,
		StatusCode: statusCode,
		Message:    message,
	}
}

// NewValidationError creates a validation error
func NewValidationError(message string) *FetchError {
	return &FetchError{
		Type:    ErrorTypeValidation,
		Message: message,
	}
}

// NewEmptyError reports a record without any computable field. It is
// retried like a transient failure.
func NewEmptyError() *FetchError {
	return &FetchError{
		Type:      ErrorTypeEmpty,
		Retryable: true,
		Message:   "no field could be computed",
	}
}

// ClassifyHTTPError classifies an HTTP status code into an appropriate FetchError
func ClassifyHTTPError(statusCode int) *FetchError {
	switch {
	case statusCode == 429 || statusCode == 408 || statusCode >= 500:
		return NewTransientError(nil, statusCode)
	case statusCode == 404:
		return &FetchError{Type: ErrorTypeNotFound, StatusCode: statusCode, Message: "resource not found"}
	case statusCode >= 400:
		return NewClientError(statusCode, fmt.Sprintf("client error: HTTP %d", statusCode))
	default:
		return &FetchError{
			Type:       ErrorTypeValidation,
			StatusCode: statusCode,
			Message:    fmt.Sprintf("unexpected status code: %d", statusCode),
		}
	}
}

// TypeOf returns the ErrorType carried by err. Errors that are not a
// FetchError are reported as transient.
func TypeOf(err error) ErrorType {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Type
	}
	return ErrorTypeTransient
}

// IsRetryable reports whether another attempt could succeed. Untyped errors
// are retried.
func IsRetryable(err error) bool {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Retryable
	}
	return err != nil
}

// IsBasisNotFound reports whether err asks for the opposite statement basis
func IsBasisNotFound(err error) bool {
	return err != nil && TypeOf(err) == ErrorTypeBasisNotFound
}
