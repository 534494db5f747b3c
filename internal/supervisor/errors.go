package supervisor

import "errors"

// ErrRestartsExhausted is returned by Run when the configured restart
// bound is exceeded; the caller should exit the process non-zero.
var ErrRestartsExhausted = errors.New("supervisor: max restart attempts exceeded")
