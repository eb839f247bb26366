// Package service implements the application services that tie the
// spaced-repetition scheduler, the content catalog, and the knowledge
// stores together. Services own transactions; stores own SQL.
package service

import (
	"fmt"
)

// ServiceError is the error type wrapped around unexpected failures in
// the service layer. Expected conditions (not found, validation) pass
// through as their sentinel errors so callers can errors.Is them.
type ServiceError struct {
	Operation string
	Message   string
	Err       error
}

// Error implements the error interface for ServiceError.
func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("service %s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("service %s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *ServiceError) Unwrap() error {
	return e.Err
}

// NewServiceError creates a new ServiceError.
func NewServiceError(operation, message string, err error) *ServiceError {
	return &ServiceError{
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}
