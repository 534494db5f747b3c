package synth

import "errors"

// Domain errors for the command synthesizer package.
var (
	// ErrEncryptedStatus is returned when asked to synthesize a reply to
	// an encrypted status frame, which cannot be decoded.
	ErrEncryptedStatus = errors.New("synth: cannot synthesize from an encrypted status frame")

	// ErrSetpointsUndefined is returned when new_values is requested (or
	// forced, on the first command) but one or both setpoints are not
	// yet known.
	ErrSetpointsUndefined = errors.New("synth: current_max_online_set/current_max_offline_set not yet defined")

	// ErrNoPriorCommand is returned when amperages must be copied from a
	// previous command frame but none exists.
	ErrNoPriorCommand = errors.New("synth: no prior command frame to copy amperages from")
)
