package protocol

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// fieldDef describes how to turn one raw telemetry field into its
// processed, human-meaningful form. Replaces a per-field if/elif chain
// with a single compile-time table keyed by the field's wire letter.
type fieldDef struct {
	name    string
	unit    string
	process func(raw string) (any, error)
}

// fieldTable is the field semantics table: raw wire key -> {name, process,
// unit}. Keys not present here fall through to the "unknown" bucket in
// Telemetry.ToSimpleMap.
var fieldTable = map[string]fieldDef{
	"A": {name: "current", unit: "A", process: processTenth1},
	"C": {name: "current_max_offline", unit: "A", process: processInt},
	"E": {name: "energy_session", unit: "Wh", process: processInt},
	"f": {name: "frequency", unit: "Hz", process: processHundredth},
	"i": {name: "interval", unit: "", process: processInt},
	"L": {name: "energy_lifetime", unit: "Wh", process: processInt},
	"m": {name: "current_rating", unit: "A", process: processInt},
	"M": {name: "current_max_online", unit: "A", process: processInt},
	"t": {name: "report_time", unit: "", process: processRaw},
	"T": {name: "temperature", unit: "°F", process: processTemperature},
	"u": {name: "loop_counter", unit: "", process: processRaw},
	"v": {name: "protocol_version", unit: "", process: processRaw},
	"V": {name: "voltage", unit: "V", process: processVoltage},
}

func processRaw(raw string) (any, error) {
	return raw, nil
}

func processInt(raw string) (any, error) {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil, fmt.Errorf("protocol: parsing int field %q: %w", raw, err)
	}
	return n, nil
}

// processTenth1 renders amps: 0.1 x int, 1 decimal.
func processTenth1(raw string) (any, error) {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil, fmt.Errorf("protocol: parsing current field %q: %w", raw, err)
	}
	return round1(float64(n) * 0.1), nil
}

// processHundredth renders frequency: 0.01 x int, 2 decimals.
func processHundredth(raw string) (any, error) {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil, fmt.Errorf("protocol: parsing frequency field %q: %w", raw, err)
	}
	return round2(float64(n) * 0.01), nil
}

// processTemperature renders Celsius-tenths-as-int into Fahrenheit: °F =
// round(1.8*int + 32, 2).
func processTemperature(raw string) (any, error) {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil, fmt.Errorf("protocol: parsing temperature field %q: %w", raw, err)
	}
	return round2(1.8*float64(n) + 32), nil
}

// processVoltage scales by 0.1 unless the raw value already carries fewer
// than 4 digits, in which case older devices sent it unscaled.
func processVoltage(raw string) (any, error) {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil, fmt.Errorf("protocol: parsing voltage field %q: %w", raw, err)
	}
	if len(strings.TrimLeft(raw, "-")) < 4 {
		return float64(n), nil
	}
	return round1(float64(n) * 0.1), nil
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// statusName maps the S field's numeric code (any digit width: "0", "00",
// "S01", ...) to its human status.
var statusName = map[int]string{
	0: "Unplugged",
	1: "PluggedIn",
	2: "Charging",
	5: "Error",
}
