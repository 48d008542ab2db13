package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrAlreadyProcessed   = errors.New("payment already processed")
	ErrUnsupportedInput   = errors.New("unsupported input")
	ErrUnauthorized       = errors.New("caller is not an administrator")
	ErrExternalFetch      = errors.New("external fetch failed")
	ErrNoActiveFlow       = errors.New("no conversation flow in progress")
	ErrOperationFailed    = errors.New("operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrInvalidExecContext = errors.New("invalid query execution context")
	ErrLockHeld           = errors.New("resource is locked by another worker")
)
