package ledger

import (
	"errors"
	"fmt"
)

// Domain-level error values returned by the ledger service.
var (
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrInvalidUserID        = errors.New("invalid user id")
	ErrInvalidAmountCents   = errors.New("invalid amount cents")
	ErrInvalidBalance       = errors.New("invalid balance")
	ErrInvalidEntryType     = errors.New("invalid entry type")
	ErrInvalidMetadataJSON  = errors.New("invalid metadata json")
	ErrInvalidServiceConfig = errors.New("invalid service config")
)

// InsufficientFundsError reports how far short the balance fell.
type InsufficientFundsError struct {
	RequestedCents int64
	AvailableCents int64
}

// Error returns the formatted error message.
func (shortfall InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: requested %d, available %d (short %d)",
		shortfall.RequestedCents, shortfall.AvailableCents, shortfall.ShortfallCents())
}

// Unwrap ties the typed error to the ErrInsufficientFunds sentinel.
func (shortfall InsufficientFundsError) Unwrap() error {
	return ErrInsufficientFunds
}

// ShortfallCents returns the missing amount.
func (shortfall InsufficientFundsError) ShortfallCents() int64 {
	return shortfall.RequestedCents - shortfall.AvailableCents
}

// OperationError wraps a failure with a stable operation code.
type OperationError struct {
	operation string
	subject   string
	code      string
	err       error
}

// Error returns the formatted error message.
func (operationError OperationError) Error() string {
	return fmt.Sprintf("%s.%s.%s: %v", operationError.operation, operationError.subject, operationError.code, operationError.err)
}

// Unwrap returns the underlying error.
func (operationError OperationError) Unwrap() error {
	return operationError.err
}

// Operation returns the operation segment.
func (operationError OperationError) Operation() string {
	return operationError.operation
}

// Subject returns the subject segment.
func (operationError OperationError) Subject() string {
	return operationError.subject
}

// Code returns the stable error code segment.
func (operationError OperationError) Code() string {
	return operationError.code
}

// WrapError wraps an error with operation, subject, and code metadata.
func WrapError(operation string, subject string, code string, err error) error {
	if err == nil {
		return nil
	}
	return OperationError{
		operation: operation,
		subject:   subject,
		code:      code,
		err:       err,
	}
}
