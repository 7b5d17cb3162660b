package cloud

import "errors"

var (
	// ErrMissingCredentials is returned when a client is built without
	// the credentials it needs.
	ErrMissingCredentials = errors.New("cloud: missing credentials")

	// ErrAuthFailed is returned when token acquisition fails.
	ErrAuthFailed = errors.New("cloud: authentication failed")

	// ErrRequestFailed wraps non-2xx responses and transport errors.
	ErrRequestFailed = errors.New("cloud: request failed")

	// ErrNotLoggedIn is returned by portal calls made before Login.
	ErrNotLoggedIn = errors.New("cloud: not logged in")

	// ErrPortalRejected is returned when the portal envelope carries a
	// non-success code.
	ErrPortalRejected = errors.New("cloud: portal rejected request")

	// ErrNotBound is returned when a device has no private config.
	ErrNotBound = errors.New("cloud: device not bound to a config")
)
