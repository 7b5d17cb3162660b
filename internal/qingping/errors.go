package qingping

import "errors"

// Domain-specific errors for protocol handling.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrInvalidMAC is returned when a MAC address fails validation
	// after normalisation (must be 12 hex digits).
	ErrInvalidMAC = errors.New("qingping: invalid MAC address")

	// ErrMalformedPayload is returned when a message payload cannot be
	// decoded as a device envelope.
	ErrMalformedPayload = errors.New("qingping: malformed payload")

	// ErrUnknownSetting is returned when a setting key is not in the
	// catalogue of writable settings.
	ErrUnknownSetting = errors.New("qingping: unknown setting")

	// ErrValueOutOfRange is returned when a setting value falls outside
	// its permitted domain.
	ErrValueOutOfRange = errors.New("qingping: value out of range")
)
