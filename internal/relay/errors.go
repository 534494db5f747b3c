package relay

import "errors"

// Domain errors for the MITM relay.
var (
	// ErrBindExhausted is returned when every bind/rebind attempt fails;
	// the supervisor treats this as fatal and restarts the relay.
	ErrBindExhausted = errors.New("relay: exhausted socket bind attempts")

	// ErrErrorBudgetExceeded is returned by Run when a datagram dropped on
	// a full handler queue takes the rolling error window over its bound,
	// ending the receive loop so the supervisor restarts it. Handler
	// errors that take the window over its bound are logged only.
	ErrErrorBudgetExceeded = errors.New("relay: error budget exceeded")

	// ErrSendRetriesExhausted is returned when send() fails after all
	// retry attempts.
	ErrSendRetriesExhausted = errors.New("relay: send retries exhausted")
)
