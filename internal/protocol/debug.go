package protocol

import "strings"

// Debug is a device-originated diagnostic frame, sent during boot or when
// the device rejects a malformed command (e.g. a missing checksum).
type Debug struct {
	Serial  string
	Level   string // INFO, WARNING, ERROR, or the raw abbreviation if unrecognized
	Text    string
	IsBoot  bool
	payload string
}

var debugLevelNames = map[string]string{
	"NFO": "INFO",
	"WRN": "WARNING",
	"ERR": "ERROR",
}

// ParseDebug parses a debug frame, e.g. "0910...:DBG,NFO:some text" or
// "0910...:DBG,NFO:BOT:booted up:".
func ParseDebug(raw string) (*Debug, error) {
	serial, body, ok := splitSerialBody(raw)
	if !ok {
		return nil, ErrMalformedFrame
	}
	body = strings.TrimSuffix(body, ":")

	rest := strings.TrimPrefix(body, "DBG,")
	abbr, text, ok := strings.Cut(rest, ":")
	if !ok {
		return nil, ErrMalformedFrame
	}

	level, known := debugLevelNames[abbr]
	if !known {
		level = abbr
	}

	return &Debug{
		Serial:  serial,
		Level:   level,
		Text:    text,
		IsBoot:  strings.HasPrefix(text, "BOT:"),
		payload: body,
	}, nil
}

// Build renders the frame back to its exact wire form.
func (d *Debug) Build() string {
	return d.Serial + ":" + d.payload + ":"
}

// ToSimpleMap renders the debug message for publication to the
// debug_message diagnostic entity.
func (d *Debug) ToSimpleMap() map[string]any {
	return map[string]any{
		"type":          "debug",
		"debug_message": d.Level + ": " + d.Text,
		"boot":          d.IsBoot,
	}
}
