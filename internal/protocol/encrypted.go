package protocol

import (
	"fmt"
	"regexp"
)

// encryptedHeaderLen is how much of an encrypted datagram is actually
// legible: enough to recover the serial and protocol version.
const encryptedHeaderLen = 33

var encryptedHeaderPattern = regexp.MustCompile(`^([0-9]+):(v[0-9]+[eu]?)`)

// Encrypted is an encrypted-dialect frame. Only its header (serial and
// protocol version) is recovered; the payload is not decoded — decoding
// v09e is explicitly out of scope.
type Encrypted struct {
	Serial          string
	ProtocolVersion string
	Raw             []byte
}

// ParseEncrypted recovers the serial and version from the first
// encryptedHeaderLen bytes of data, and rejects anything other than the
// one recognized encrypted version, "v09e".
func ParseEncrypted(data []byte) (*Encrypted, error) {
	header := data
	if len(header) > encryptedHeaderLen {
		header = header[:encryptedHeaderLen]
	}

	m := encryptedHeaderPattern.FindSubmatch(header)
	if m == nil {
		return nil, fmt.Errorf("%w: %q", ErrMalformedFrame, header)
	}
	version := string(m[2])
	if version != "v09e" {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedEncryptedVersion, version)
	}

	return &Encrypted{
		Serial:          string(m[1]),
		ProtocolVersion: version,
		Raw:             data,
	}, nil
}

// Build returns the original bytes, unmodified — the frame is recognized,
// never decoded or rebuilt.
func (e *Encrypted) Build() string {
	return string(e.Raw)
}

// ToSimpleMap surfaces only what was recoverable from the header.
func (e *Encrypted) ToSimpleMap() map[string]any {
	return map[string]any{
		"type":             "encrypted",
		"serial":           e.Serial,
		"protocol_version": e.ProtocolVersion,
	}
}
