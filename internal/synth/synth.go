// Package synth implements the command synthesizer: given the
// device's last status frame and the bridge's current setpoints, builds
// the next outbound command frame with a correctly advanced counter.
package synth

import (
	"fmt"
	"time"

	"juicebridge/internal/protocol"
)

// defaultCommandCode is the command code used for ordinary
// amperage-update frames.
const defaultCommandCode = 6

const (
	modernVersionMarker = "09u"

	// BootWindow is how recently a boot debug frame must have arrived for
	// SeedSetpoints to treat the device as freshly booted.
	BootWindow = 30 * time.Second

	onlineObservationWait = 600 * time.Second
	offlineFallbackWait   = 6 * time.Minute
)

// Setpoints holds the bridge's current idea of the device's amperage
// limits. A nil pointer means "not yet defined".
type Setpoints struct {
	CurrentMaxOnlineSet  *int
	CurrentMaxOfflineSet *int
}

// State is everything the synthesizer needs to build the next command.
type State struct {
	LastStatusFrame protocol.Frame
	LastCommand     *protocol.Command
	Setpoints       Setpoints
	NewValues       bool
}

// Synthesize builds the next command frame from state, advancing the
// counter and filling amperages from the current setpoints. It mutates
// neither its argument nor package state; callers are responsible for
// remembering the result as the new LastCommand.
func Synthesize(state State, now time.Time) (*protocol.Command, error) {
	status, ok := state.LastStatusFrame.(*protocol.Telemetry)
	if !ok {
		return nil, ErrEncryptedStatus
	}

	dialect := protocol.DialectLegacy
	if status.ProtocolVersion == modernVersionMarker {
		dialect = protocol.DialectModern
	}

	newValues := state.NewValues
	counter := 1
	if state.LastCommand != nil {
		counter = protocol.NextCounter(state.LastCommand.Counter)
	} else {
		newValues = true
	}

	var instant, offline int
	if newValues {
		if state.Setpoints.CurrentMaxOnlineSet == nil || state.Setpoints.CurrentMaxOfflineSet == nil {
			return nil, ErrSetpointsUndefined
		}
		instant = *state.Setpoints.CurrentMaxOnlineSet
		offline = *state.Setpoints.CurrentMaxOfflineSet
	} else {
		if state.LastCommand == nil {
			return nil, ErrNoPriorCommand
		}
		instant = state.LastCommand.InstantAmperage
		offline = state.LastCommand.OfflineAmperage
	}

	cmd := &protocol.Command{
		Weekday:         int(now.Weekday()),
		HHMM:            now.Format("1504"),
		InstantAmperage: instant,
		OfflineAmperage: offline,
		CommandCode:     defaultCommandCode,
		Counter:         counter,
		Dialect:         dialect,
	}
	return cmd, nil
}

// SeedSetpoints fills any undefined setpoint from the latest telemetry
// snapshot. snapshot is the processed map produced by
// Telemetry.ToSimpleMap. firstSeen is when this session first observed
// the device; recentlyBooted reports whether a boot debug frame arrived
// within the boot window, independent of firstSeen — a device that
// reboots mid-session is "recently booted" even though the session's
// first-seen timestamp is long past, and a bridge that has just
// restarted against an already-running device is not. now is the
// current time.
func SeedSetpoints(sp *Setpoints, snapshot map[string]any, firstSeen time.Time, recentlyBooted bool, now time.Time) {
	if sp.CurrentMaxOnlineSet == nil {
		if v, ok := intField(snapshot, "current_max_online"); ok {
			sp.CurrentMaxOnlineSet = &v
		} else if recentlyBooted || now.Sub(firstSeen) >= onlineObservationWait {
			if v, ok := intField(snapshot, "current_rating"); ok {
				sp.CurrentMaxOnlineSet = &v
			}
		}
	}

	if sp.CurrentMaxOfflineSet == nil {
		if v, ok := intField(snapshot, "current_max_offline"); ok {
			sp.CurrentMaxOfflineSet = &v
		} else if recentlyBooted || now.Sub(firstSeen) >= offlineFallbackWait {
			if v, ok := intField(snapshot, "current_max_online"); ok {
				sp.CurrentMaxOfflineSet = &v
			}
		}
	}
}

func intField(snapshot map[string]any, key string) (int, bool) {
	v, ok := snapshot[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return n, true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

// Describe renders a compact human summary of a synthesized command,
// for logging alongside the wire frame.
func Describe(c *protocol.Command) string {
	return fmt.Sprintf("instant=%dA offline=%dA counter=%d dialect=%s", c.InstantAmperage, c.OfflineAmperage, c.Counter, c.Dialect)
}
