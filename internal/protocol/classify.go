package protocol

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	versionedTelemetryPattern = regexp.MustCompile(`^[0-9]+:v[0-9]+[eu]?`)
	debugPattern              = regexp.MustCompile(`^[0-9]+:DBG,`)
	legacyTelemetryPattern    = regexp.MustCompile(`^[0-9]+:`)
)

// Classify inspects a raw inbound datagram and dispatches it to the
// matching frame parser. Order matters: encrypted detection and the "CMD"
// prefix are checked before anything else is attempted.
func Classify(data []byte) (Frame, error) {
	if !utf8.Valid(data) {
		return ParseEncrypted(data)
	}

	s := string(data)

	if strings.HasPrefix(s, "CMD") {
		return ParseCommand(s)
	}

	if versionedTelemetryPattern.MatchString(s) {
		t, err := ParseTelemetry(s)
		if err != nil {
			return nil, err
		}
		if t.ProtocolVersion == "09e" {
			return ParseEncrypted(data)
		}
		return t, nil
	}

	if debugPattern.MatchString(s) {
		return ParseDebug(s)
	}

	if legacyTelemetryPattern.MatchString(s) {
		return ParseTelemetry(s)
	}

	return nil, fmt.Errorf("%w: %q", ErrMalformedFrame, s)
}
