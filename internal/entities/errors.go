package entities

import "errors"

// Domain errors for the entity bus adapter.
var (
	// ErrOutOfRange is returned when an inbound numeric write falls
	// outside an entity's configured bounds.
	ErrOutOfRange = errors.New("entities: value out of range")

	// ErrUnknownSwitchValue is returned when a switch command payload is
	// neither a recognized on/off string nor "true"/"false".
	ErrUnknownSwitchValue = errors.New("entities: unrecognized switch value")
)
