// Package entities implements the entity bus adapter: a fixed
// catalogue of Home Assistant MQTT-discoverable sensor/number/switch/text
// entities, publishing device measurements and accepting inbound
// setpoint/switch/text writes via command callbacks.
package entities

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"juicebridge/internal/infrastructure/mqtt"
	"juicebridge/internal/store"
)

// persistedSensors names the measurement entities that survive a
// restart via the config store: current_rating and current_max_offline.
var persistedSensors = map[string]bool{
	"current_rating":      true,
	"current_max_offline": true,
}

// Logger is the subset of structured-logging methods the adapter needs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// InjectFunc forwards a free-text command payload to the relay, for
// diagnostic injection as a raw outbound datagram.
type InjectFunc func(raw string) error

// CommandFunc asks the relay to send a fresh command frame with
// newValues=true, after a setpoint write updates adapter state. Switch
// writes do not call it.
type CommandFunc func() error

// Config configures one device's entity bus adapter.
type Config struct {
	Serial          string
	Version         string
	DiscoveryPrefix string
	QoS             byte
}

// Adapter owns every Home Assistant entity for a single JuiceBox.
type Adapter struct {
	cfg   Config
	mq    *mqtt.Client
	store *store.Store
	log   Logger
	topic mqtt.Topics

	onCommand CommandFunc
	onInject  InjectFunc

	mu             sync.RWMutex
	currentMaxOnline  *int
	currentMaxOffline *int
	actAsServer       bool
}

// New builds an Adapter backed by an already-connected mqtt.Client and a
// config store for the small set of entities that persist across restart.
func New(cfg Config, mq *mqtt.Client, st *store.Store, log Logger) *Adapter {
	return &Adapter{
		cfg:         cfg,
		mq:          mq,
		store:       st,
		log:         log,
		topic:       mqtt.Topics{DiscoveryPrefix: cfg.DiscoveryPrefix},
		actAsServer: true,
	}
}

// SetCallbacks wires the adapter's command callbacks to the relay/synth
// layer. Must be called before Start.
func (a *Adapter) SetCallbacks(onCommand CommandFunc, onInject InjectFunc) {
	a.onCommand = onCommand
	a.onInject = onInject
}

// Start publishes discovery configs for every entity, seeds initial
// state from the config store, and subscribes to command topics.
func (a *Adapter) Start(ctx context.Context) error {
	info := newDeviceInfo(a.cfg.Serial, a.cfg.Version)

	for _, s := range sensorCatalog {
		if err := a.publishSensorDiscovery(s, info); err != nil {
			return fmt.Errorf("entities: publishing sensor discovery %s: %w", s.objectID, err)
		}
		if persistedSensors[s.objectID] {
			v := a.store.GetDevice(a.cfg.Serial, s.objectID+"_initial_state", "")
			if v == "" {
				v = a.store.GetDevice(a.cfg.Serial, s.objectID, "")
			}
			if v != "" {
				a.publishState(s.objectID, v)
			}
		}
	}
	for _, n := range numberCatalog {
		if err := a.publishNumberDiscovery(n, info); err != nil {
			return fmt.Errorf("entities: publishing number discovery %s: %w", n.objectID, err)
		}
		if err := a.subscribeNumber(n); err != nil {
			return fmt.Errorf("entities: subscribing number %s: %w", n.objectID, err)
		}
	}
	for _, sw := range switchCatalog {
		if err := a.publishSwitchDiscovery(sw, info); err != nil {
			return fmt.Errorf("entities: publishing switch discovery %s: %w", sw.objectID, err)
		}
		if err := a.subscribeSwitch(sw); err != nil {
			return fmt.Errorf("entities: subscribing switch %s: %w", sw.objectID, err)
		}
		a.publishState(sw.objectID, boolToOnOff(a.actAsServer))
	}
	for _, tx := range textCatalog {
		if err := a.publishTextDiscovery(tx, info); err != nil {
			return fmt.Errorf("entities: publishing text discovery %s: %w", tx.objectID, err)
		}
		if err := a.subscribeText(tx); err != nil {
			return fmt.Errorf("entities: subscribing text %s: %w", tx.objectID, err)
		}
	}

	return nil
}

// Run publishes discovery/initial state and subscribes command topics
// via Start, then blocks until ctx is canceled. It gives the adapter the
// same blocking Run(ctx) error shape as the updater and relay, so the
// supervisor can wire all three uniformly.
func (a *Adapter) Run(ctx context.Context) error {
	if err := a.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	return ctx.Err()
}

// PublishSnapshot publishes a processed telemetry snapshot (the output
// of protocol.Telemetry.ToSimpleMap) to every matching sensor entity,
// persisting the handful of entities the store tracks across restarts.
func (a *Adapter) PublishSnapshot(snapshot map[string]any) {
	for _, s := range sensorCatalog {
		v, ok := snapshot[s.objectID]
		if !ok {
			continue
		}
		rendered := renderValue(v)
		a.publishState(s.objectID, rendered)

		if persistedSensors[s.objectID] {
			a.store.SetDevice(a.cfg.Serial, s.objectID, rendered)
			if err := a.store.FlushIfDirty(); err != nil {
				a.log.Warn("entities: flushing store failed", "error", err)
			}
		}
	}

	if status, ok := snapshot["status"]; ok {
		a.publishState("status", renderValue(status))
	}
}

// PublishDebugMessage publishes one debug-frame line to the diagnostic
// sensor.
func (a *Adapter) PublishDebugMessage(level, text string) {
	a.publishState("debug_message", level+": "+text)
}

// PublishRawFrame echoes a raw wire-form datagram to the matching
// diagnostic entity. side is "device" or "cloud".
func (a *Adapter) PublishRawFrame(side, raw string) {
	switch side {
	case "device":
		a.publishState("last_device_frame", raw)
	case "cloud":
		a.publishState("last_cloud_frame", raw)
	}
}

// Setpoints returns the adapter's current view of the amperage
// setpoints, for the synthesizer to read.
func (a *Adapter) Setpoints() (onlineSet, offlineSet *int) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.currentMaxOnline, a.currentMaxOffline
}

// SeedSetpoint sets a setpoint from the relay's observation heuristics,
// only if it is not already defined.
func (a *Adapter) SeedSetpoint(online, offline *int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.currentMaxOnline == nil && online != nil {
		v := *online
		a.currentMaxOnline = &v
		a.publishState("current_max_online_set", strconv.Itoa(v))
	}
	if a.currentMaxOffline == nil && offline != nil {
		v := *offline
		a.currentMaxOffline = &v
		a.publishState("current_max_offline_set", strconv.Itoa(v))
	}
}

// ActAsServer reports whether the bridge should synthesize commands in
// place of the cloud.
func (a *Adapter) ActAsServer() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.actAsServer
}

func (a *Adapter) publishState(objectID, value string) {
	topic := a.topic.State(a.cfg.Serial, objectID)
	if err := a.mq.PublishString(topic, value, a.cfg.QoS, true); err != nil {
		a.log.Warn("entities: publish failed", "topic", topic, "error", err)
	}
}

func (a *Adapter) subscribeNumber(n numberDef) error {
	topic := a.topic.Command(a.cfg.Serial, n.objectID)
	return a.mq.Subscribe(topic, a.cfg.QoS, func(_ string, payload []byte) error {
		f, err := strconv.ParseFloat(strings.TrimSpace(string(payload)), 64)
		if err != nil {
			return fmt.Errorf("entities: parsing %s: %w", n.objectID, err)
		}
		if f < n.min || f > n.max {
			return fmt.Errorf("%w: %s=%v not in [%v,%v]", ErrOutOfRange, n.objectID, f, n.min, n.max)
		}

		v := int(f)
		a.mu.Lock()
		switch n.objectID {
		case "current_max_online_set":
			a.currentMaxOnline = &v
		case "current_max_offline_set":
			a.currentMaxOffline = &v
		}
		a.mu.Unlock()

		a.publishState(n.objectID, strconv.Itoa(v))
		return a.requestCommand()
	})
}

func (a *Adapter) subscribeSwitch(sw switchDef) error {
	topic := a.topic.Command(a.cfg.Serial, sw.objectID)
	return a.mq.Subscribe(topic, a.cfg.QoS, func(_ string, payload []byte) error {
		on, err := parseOnOff(string(payload))
		if err != nil {
			return err
		}

		a.mu.Lock()
		if sw.objectID == "act_as_server" {
			a.actAsServer = on
		}
		a.mu.Unlock()

		a.publishState(sw.objectID, boolToOnOff(on))
		return nil
	})
}

func (a *Adapter) subscribeText(tx textDef) error {
	topic := a.topic.Command(a.cfg.Serial, tx.objectID)
	return a.mq.Subscribe(topic, a.cfg.QoS, func(_ string, payload []byte) error {
		if a.onInject == nil {
			return nil
		}
		return a.onInject(string(payload))
	})
}

func (a *Adapter) requestCommand() error {
	if a.onCommand == nil {
		return nil
	}
	return a.onCommand()
}

func parseOnOff(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "on", "true", "1":
		return true, nil
	case "off", "false", "0":
		return false, nil
	default:
		return false, fmt.Errorf("%w: %q", ErrUnknownSwitchValue, s)
	}
}

func boolToOnOff(b bool) string {
	if b {
		return "ON"
	}
	return "OFF"
}

func renderValue(v any) string {
	switch n := v.(type) {
	case string:
		return n
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64)
	case int:
		return strconv.Itoa(n)
	default:
		b, err := json.Marshal(n)
		if err != nil {
			return fmt.Sprintf("%v", n)
		}
		return string(b)
	}
}
