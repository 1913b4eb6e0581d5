package model

import (
	"errors"
	"fmt"
)

// Standard error codes carried to the API boundary.
const (
	ErrCodeInvalidTransition = "INVALID_TRANSITION"
	ErrCodeValidation        = "VALIDATION_ERROR"
	ErrCodeCapacityExceeded  = "CAPACITY_EXCEEDED"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeConflict          = "CONFLICT"
)

// DomainError is a business-rule violation. All aggregate methods fail
// fast with one of these before mutating any state.
type DomainError struct {
	Code    string
	Message string
}

func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError creates a new domain error.
func NewDomainError(code, message string) *DomainError {
	return &DomainError{Code: code, Message: message}
}

// NewInvalidTransition reports a status change not permitted from the
// current state.
func NewInvalidTransition(from, to string) *DomainError {
	return &DomainError{
		Code:    ErrCodeInvalidTransition,
		Message: fmt.Sprintf("invalid status transition from %s to %s", from, to),
	}
}

// NewValidationError reports a construction-time invariant violation.
func NewValidationError(format string, args ...any) *DomainError {
	return &DomainError{Code: ErrCodeValidation, Message: fmt.Sprintf(format, args...)}
}

// ErrorCode extracts the domain error code from an error chain, or
// returns an empty string for non-domain errors.
func ErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// Common domain errors
var (
	ErrCartNotFound          = NewDomainError(ErrCodeNotFound, "cart not found")
	ErrCartItemNotFound      = NewDomainError(ErrCodeNotFound, "item not found in cart")
	ErrOrderNotFound         = NewDomainError(ErrCodeNotFound, "order not found")
	ErrPaymentNotFound       = NewDomainError(ErrCodeNotFound, "payment not found")
	ErrConcurrentUpdate      = NewDomainError(ErrCodeConflict, "aggregate was modified concurrently")
	ErrDuplicatePayment      = NewDomainError(ErrCodeConflict, "order already has a successful payment")
	ErrCartEmpty             = NewDomainError(ErrCodeValidation, "cart has no items")
	ErrCartNotActive         = NewDomainError(ErrCodeInvalidTransition, "cart is not active")
	ErrTooManyCartItems      = NewDomainError(ErrCodeCapacityExceeded, "cart cannot hold more than 10 distinct products")
	ErrQuantityLimitExceeded = NewDomainError(ErrCodeCapacityExceeded, "product quantity cannot exceed 99")
)
