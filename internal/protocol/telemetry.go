package protocol

import (
	"fmt"
	"strings"
)

// Telemetry is a device-originated status frame: a serial, an optional
// dialect-version field, and an ordered set of measurement fields.
type Telemetry struct {
	Serial          string
	ProtocolVersion string // raw "v" field value, e.g. "09u"; "" for legacy dialect
	Fields          []Field
	ChecksumPresent bool
	Checksum        string

	payload    string // the exact pre-"!" payload string, kept for byte-exact rebuild
	wireSerial string // the literal serial prefix as transmitted, for byte-exact rebuild
}

// ParseTelemetry parses a telemetry frame from its full wire form, e.g.
// "0910...:v09u,s627,...,B0000000!S1H:" or the legacy, checksum-less
// "0910...:V247,L11097,S0,T34,E14,i84,e1,t30:".
func ParseTelemetry(raw string) (*Telemetry, error) {
	outerSerial, body, ok := splitSerialBody(raw)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrMalformedFrame, raw)
	}
	serial := outerSerial

	body = strings.TrimSuffix(body, ":")

	payload := body
	checksum := ""
	checksumPresent := false
	if idx := strings.IndexByte(body, '!'); idx >= 0 {
		payload = body[:idx]
		checksum = body[idx+1:]
		checksumPresent = true
	}

	fields, innerSerial, err := tokenizeFields(payload)
	if err != nil {
		return nil, err
	}
	if innerSerial != "" {
		serial = innerSerial
	}

	t := &Telemetry{
		Serial:          serial,
		Fields:          fields,
		ChecksumPresent: checksumPresent,
		Checksum:        checksum,
		payload:         payload,
		wireSerial:      outerSerial,
	}
	if v, ok := t.rawField("v"); ok {
		t.ProtocolVersion = v
	}

	if t.IsLegacy() && checksumPresent {
		return nil, fmt.Errorf("%w: legacy frame carries a checksum: %q", ErrMalformedFrame, raw)
	}
	if !t.IsLegacy() && !checksumPresent {
		return nil, fmt.Errorf("%w: modern frame missing checksum: %q", ErrMalformedFrame, raw)
	}

	if checksumPresent {
		// The device computes the checksum over the entire pre-"!" string,
		// including the literal "<serial>:" prefix as transmitted — not
		// over any inline serial tokenizeFields may have since unwrapped.
		checksumInput := outerSerial + ":" + payload
		if Checksum([]byte(checksumInput)) != checksum {
			return nil, fmt.Errorf("%w: want %q computed %q", ErrBadChecksum, checksum, Checksum([]byte(checksumInput)))
		}
	}

	return t, nil
}

// splitSerialBody splits "<serial>:<body>" on the first colon, requiring
// serial to be all digits.
func splitSerialBody(raw string) (serial, body string, ok bool) {
	idx := strings.IndexByte(raw, ':')
	if idx <= 0 {
		return "", "", false
	}
	serial = raw[:idx]
	for i := 0; i < len(serial); i++ {
		if serial[i] < '0' || serial[i] > '9' {
			return "", "", false
		}
	}
	return serial, raw[idx+1:], true
}

// IsLegacy reports whether this frame carries no dialect-version field.
func (t *Telemetry) IsLegacy() bool {
	return t.ProtocolVersion == ""
}

// Build renders the frame back to its exact wire form.
func (t *Telemetry) Build() string {
	if t.ChecksumPresent {
		return fmt.Sprintf("%s:%s!%s:", t.wireSerial, t.payload, t.Checksum)
	}
	return t.wireSerial + ":" + t.payload + ":"
}

func (t *Telemetry) rawField(key string) (string, bool) {
	for _, f := range t.Fields {
		if f.Key == key {
			return f.Raw, true
		}
	}
	return "", false
}

// ToSimpleMap renders the processed measurement map published to the
// entity bus: type "basic", current/energy_session defaulted to zero,
// status inferred when absent (legacy dialect), derived power when both
// voltage and current are known.
func (t *Telemetry) ToSimpleMap() map[string]any {
	data := map[string]any{
		"type":           "basic",
		"current":        0.0,
		"energy_session": 0,
	}

	for _, f := range t.Fields {
		base := fieldBaseKey(f.Key)
		if base == "S" {
			continue // handled below, with legacy inference
		}
		if def, ok := fieldTable[base]; ok {
			name := def.name
			if base != f.Key { // preserve duplicate suffix, e.g. "energy_session:1"
				name = name + f.Key[len(base):]
			}
			v, err := def.process(f.Raw)
			if err != nil {
				continue
			}
			data[name] = v
		} else {
			data["unknown_"+f.Key] = f.Raw
		}
	}

	data["status"] = t.status()

	if v, ok := data["voltage"]; ok {
		if c, ok := data["current"]; ok {
			data["power"] = round0(toFloat(v) * toFloat(c))
		}
	}

	return data
}

// status resolves the device's current/plugged state: the S field when
// present, else (legacy dialect only) inferred from the current field —
// zero amps means plugged in, any positive current means charging.
func (t *Telemetry) status() string {
	raw, ok := t.rawField("S")
	if ok {
		if n, err := processInt(raw); err == nil {
			if name, known := statusName[n.(int)]; known {
				return name
			}
		}
		return "unknown " + raw
	}

	if raw, ok := t.rawField("A"); ok && t.IsLegacy() {
		n, err := processInt(raw)
		if err == nil {
			if n.(int) == 0 {
				return "PluggedIn"
			}
			return "Charging"
		}
	}

	return "unknown "
}

func round0(v float64) float64 {
	return float64(int(v + 0.5))
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	default:
		return 0
	}
}
