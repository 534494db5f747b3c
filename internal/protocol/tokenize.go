package protocol

import (
	"fmt"
)

// tokenizeFields walks a telemetry payload left to right, consuming one
// field per iteration: optional leading "<digits>:" (an inline serial,
// captured only once, on the first field), optional comma separator,
// one-or-more letters (the key), then a signed integer with an optional
// trailing "u" (the raw value).
//
// Duplicate keys are stored under a ":1" suffix the first time a key
// repeats; a key repeating a second time has nowhere further to go and is
// dropped, matching the device's own tolerance for this edge case.
func tokenizeFields(payload string) (fields []Field, innerSerial string, err error) {
	counts := map[string]int{}
	i := 0
	n := len(payload)

	for i < n {
		if payload[i] == ',' {
			i++
			continue
		}

		if i == 0 {
			if serial, rest, ok := consumeInlineSerial(payload); ok {
				innerSerial = serial
				payload = rest
				n = len(payload)
				continue
			}
		}

		start := i
		for i < n && isLetter(payload[i]) {
			i++
		}
		if i == start {
			return nil, "", fmt.Errorf("%w: unable to tokenize field at %q", ErrMalformedFrame, payload[i:])
		}
		key := payload[start:i]

		valStart := i
		if i < n && payload[i] == '-' {
			i++
		}
		for i < n && payload[i] >= '0' && payload[i] <= '9' {
			i++
		}
		if i < n && payload[i] == 'u' {
			i++
		}
		if i == valStart {
			return nil, "", fmt.Errorf("%w: missing value for field %q", ErrMalformedFrame, key)
		}
		raw := payload[valStart:i]

		if storeKey, ok := storeField(counts, key); ok {
			fields = append(fields, Field{Key: storeKey, Raw: raw})
		}
	}

	return fields, innerSerial, nil
}

// consumeInlineSerial strips a leading "<digits>:" prefix, if present,
// returning the serial and the remaining payload.
func consumeInlineSerial(payload string) (serial, rest string, ok bool) {
	i := 0
	for i < len(payload) && payload[i] >= '0' && payload[i] <= '9' {
		i++
	}
	if i == 0 || i >= len(payload) || payload[i] != ':' {
		return "", payload, false
	}
	return payload[:i], payload[i+1:], true
}

func storeField(counts map[string]int, key string) (string, bool) {
	counts[key]++
	switch counts[key] {
	case 1:
		return key, true
	case 2:
		return key + ":1", true
	default:
		return "", false
	}
}

func isLetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

// fieldBaseKey strips any ":N" duplicate suffix, for looking a key up in
// fieldTable.
func fieldBaseKey(key string) string {
	for i := 0; i < len(key); i++ {
		if key[i] == ':' {
			return key[:i]
		}
	}
	return key
}
