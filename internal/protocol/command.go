package protocol

import (
	"fmt"
	"strconv"
	"strings"
)

// maxCounter is the point at which the synthesizer's rolling counter wraps
// back to 1.
const maxCounter = 999

// Command is a cloud-originated (or bridge-synthesized) control frame.
type Command struct {
	Weekday         int // 0=Sunday .. 6=Saturday
	HHMM            string
	InstantAmperage int
	OfflineAmperage int
	CommandCode     int
	Counter         int
	Dialect         Dialect
}

// NextCounter returns the next counter value following prev, wrapping
// 999 -> 1.
func NextCounter(prev int) int {
	if prev >= maxCounter {
		return 1
	}
	return prev + 1
}

// Build renders the command to its wire form:
// CMD<w><HHMM>A<instant>M<offline>C<cmd:03d>S<ctr:03d>!<checksum>$, with
// A/M widths set by Dialect (2/2 legacy, 4/3 modern).
func (c *Command) Build() string {
	payload := fmt.Sprintf("CMD%d%s", c.Weekday, c.HHMM)
	if c.Dialect == DialectModern {
		payload += fmt.Sprintf("A%04dM%03d", c.InstantAmperage, c.OfflineAmperage)
	} else {
		payload += fmt.Sprintf("A%02dM%02d", c.InstantAmperage, c.OfflineAmperage)
	}
	payload += fmt.Sprintf("C%03dS%03d", c.CommandCode, c.Counter)
	return payload + "!" + Checksum([]byte(payload)) + "$"
}

// ToSimpleMap renders the command's fields for diagnostics/history; it is
// never published to the entity bus as a measurement.
func (c *Command) ToSimpleMap() map[string]any {
	return map[string]any{
		"type":             "command",
		"weekday":          c.Weekday,
		"hhmm":             c.HHMM,
		"instant_amperage": c.InstantAmperage,
		"offline_amperage": c.OfflineAmperage,
		"command_code":     c.CommandCode,
		"counter":          c.Counter,
		"dialect":          c.Dialect.String(),
	}
}

// ParseCommand parses a command frame from its full wire form, e.g.
// "CMD52324A20M16C006S001!5RE$". Dialect is inferred from the width of the
// A/M fields: 4/3 digits is modern, anything else is treated as legacy.
func ParseCommand(raw string) (*Command, error) {
	body := strings.TrimSuffix(raw, "$")

	payload := body
	checksum := ""
	checksumPresent := false
	if idx := strings.IndexByte(body, '!'); idx >= 0 {
		payload = body[:idx]
		checksum = body[idx+1:]
		checksumPresent = true
	}

	fields, _, err := tokenizeFields(payload)
	if err != nil {
		return nil, err
	}

	cmdRaw, ok := fieldsGet(fields, "CMD")
	if !ok || len(cmdRaw) < 2 {
		return nil, fmt.Errorf("%w: missing CMD field in %q", ErrMalformedFrame, raw)
	}
	weekday, err := strconv.Atoi(cmdRaw[:1])
	if err != nil {
		return nil, fmt.Errorf("%w: bad weekday in %q", ErrMalformedFrame, raw)
	}
	hhmm := cmdRaw[1:]

	aRaw, _ := fieldsGet(fields, "A")
	mRaw, _ := fieldsGet(fields, "M")
	cRaw, _ := fieldsGet(fields, "C")
	sRaw, _ := fieldsGet(fields, "S")

	instant, _ := strconv.Atoi(aRaw)
	offline, _ := strconv.Atoi(mRaw)
	cmdCode, _ := strconv.Atoi(cRaw)
	counter, _ := strconv.Atoi(sRaw)

	dialect := DialectLegacy
	if len(aRaw) == 4 && len(mRaw) == 3 {
		dialect = DialectModern
	}

	c := &Command{
		Weekday:         weekday,
		HHMM:            hhmm,
		InstantAmperage: instant,
		OfflineAmperage: offline,
		CommandCode:     cmdCode,
		Counter:         counter,
		Dialect:         dialect,
	}

	if checksumPresent && Checksum([]byte(payload)) != checksum {
		return nil, fmt.Errorf("%w: want %q computed %q", ErrBadChecksum, checksum, Checksum([]byte(payload)))
	}

	return c, nil
}

func fieldsGet(fields []Field, key string) (string, bool) {
	for _, f := range fields {
		if f.Key == key {
			return f.Raw, true
		}
	}
	return "", false
}
