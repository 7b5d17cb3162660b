package device

import "errors"

// Domain-specific errors for device operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrNotFound is returned when a device does not exist in the store.
	ErrNotFound = errors.New("device: not found")

	// ErrExists is returned when creating a device whose MAC is already adopted.
	ErrExists = errors.New("device: already exists")

	// ErrInvalidRecord is returned when a record fails validation before persistence.
	ErrInvalidRecord = errors.New("device: invalid record")
)
