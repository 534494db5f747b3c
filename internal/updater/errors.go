package updater

import "errors"

// Domain errors for the destination updater package.
var (
	// ErrNoAdminSession is returned when the updater cannot establish an
	// admin session within an iteration's watchdog window.
	ErrNoAdminSession = errors.New("updater: could not open admin session")
)
