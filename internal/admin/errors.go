package admin

import "errors"

// Domain errors for the admin channel client.
var (
	// ErrNotConnected is returned when an operation requires an open
	// session but Open was never called or failed.
	ErrNotConnected = errors.New("admin: not connected")

	// ErrConnectionFailed is returned when dialing the device fails.
	ErrConnectionFailed = errors.New("admin: connection failed")

	// ErrTimeout is returned when an operation exceeds its deadline.
	ErrTimeout = errors.New("admin: operation timed out")

	// ErrConnectionReset is returned when the device drops the connection
	// mid-operation.
	ErrConnectionReset = errors.New("admin: connection reset")

	// ErrUnexpectedResponse is returned when a response cannot be parsed
	// into the expected shape.
	ErrUnexpectedResponse = errors.New("admin: unexpected response")
)
