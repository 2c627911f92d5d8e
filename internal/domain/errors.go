package domain

import (
	"errors"
	"strings"
)

// Common errors
var (
	ErrNotFound           = errors.New("record not found")
	ErrValidation         = errors.New("validation failed")
	ErrConflict           = errors.New("record already exists")
	ErrEmptyCart          = errors.New("cart is empty")
	ErrCartNotPersisted   = errors.New("cart change kept in session but not persisted")
	ErrPaymentUnavailable = errors.New("payment system unavailable")
	ErrPaymentDeclined    = errors.New("payment declined")
	ErrPromoExhausted     = errors.New("promo code usage limit reached")
	ErrReconciliation     = errors.New("order reconciliation failed")
	ErrInvalidTransition  = errors.New("invalid order status transition")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// ValidationError lists every problem found in a submission
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Fields, "; ")
}

// Unwrap lets errors.Is match ErrValidation
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// NewValidationError returns nil when no field messages are given
func NewValidationError(fields ...string) error {
	if len(fields) == 0 {
		return nil
	}
	return &ValidationError{Fields: fields}
}
