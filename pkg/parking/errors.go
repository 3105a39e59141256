package parking

import (
	"errors"
	"fmt"
)

// Error kinds reported to callers.
var (
	ErrNotFound         = errors.New("not found")
	ErrLotFull          = errors.New("lot full")
	ErrInvalidDuration  = errors.New("invalid duration")
	ErrConflict         = errors.New("conflict")
	ErrStoreUnavailable = errors.New("store unavailable")
)

// Domain-level error values returned by the parking service.
var (
	ErrUnknownLot     = fmt.Errorf("%w: lot", ErrNotFound)
	ErrUnknownVehicle = fmt.Errorf("%w: vehicle", ErrNotFound)
	ErrUnknownSession = fmt.Errorf("%w: session", ErrNotFound)
	ErrUnknownAccount = fmt.Errorf("%w: account", ErrNotFound)

	ErrSessionClosed     = fmt.Errorf("%w: session closed", ErrConflict)
	ErrVehicleParked     = fmt.Errorf("%w: vehicle already parked", ErrConflict)
	ErrPlateTaken        = fmt.Errorf("%w: plate already registered", ErrConflict)
	ErrAccountExists     = fmt.Errorf("%w: account already exists", ErrConflict)
	ErrWriteConflict     = fmt.Errorf("%w: concurrent write", ErrConflict)
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrForbidden         = errors.New("forbidden")
	ErrVehicleNotOwned   = fmt.Errorf("%w: vehicle not owned by account", ErrForbidden)

	ErrInvalidAccountID     = errors.New("invalid account id")
	ErrInvalidLotID         = errors.New("invalid lot id")
	ErrInvalidVehicleID     = errors.New("invalid vehicle id")
	ErrInvalidSessionID     = errors.New("invalid session id")
	ErrInvalidPlate         = errors.New("invalid plate")
	ErrInvalidRole          = errors.New("invalid role")
	ErrInvalidSessionStatus = errors.New("invalid session status")
	ErrInvalidAmountCents   = errors.New("invalid amount cents")
	ErrInvalidHourlyRate    = errors.New("invalid hourly rate")
	ErrInvalidSpaces        = errors.New("invalid total spaces")
	ErrInvalidEmail         = errors.New("invalid email")
	ErrInvalidLotName       = errors.New("invalid lot name")
	ErrInvalidMetadataJSON  = errors.New("invalid metadata json")
	ErrInvalidServiceConfig = errors.New("invalid service config")
)

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

// Unavailable marks a raw storage failure as ErrStoreUnavailable while keeping the driver error inspectable.
func Unavailable(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
}
