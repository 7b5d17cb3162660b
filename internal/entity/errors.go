package entity

import "errors"

var (
	// ErrReadOnly is returned when SetValue is called on a sensor.
	ErrReadOnly = errors.New("entity: read-only")

	// ErrInvalidValue is returned when a write value cannot be coerced
	// to the adapter's type.
	ErrInvalidValue = errors.New("entity: invalid value")

	// ErrPublishFailed wraps transport failures on the write path.
	ErrPublishFailed = errors.New("entity: publish failed")
)
