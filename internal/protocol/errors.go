package protocol

import "errors"

// Domain errors for the protocol package.
var (
	// ErrMalformedFrame is returned when a datagram cannot be classified
	// or tokenized as any known frame shape.
	ErrMalformedFrame = errors.New("protocol: malformed frame")

	// ErrBadChecksum is returned when a frame's checksum field does not
	// match the computed checksum of its payload.
	ErrBadChecksum = errors.New("protocol: checksum mismatch")

	// ErrUnsupportedEncryptedVersion is returned when an encrypted-looking
	// frame does not advertise the only recognized encrypted version.
	ErrUnsupportedEncryptedVersion = errors.New("protocol: unsupported encrypted frame version")
)
