package mqtt

import "fmt"

// Topic scheme implements the Home Assistant MQTT discovery convention:
// discovery config topics are rooted at a configurable prefix (default
// "homeassistant"), state/command/availability topics live under a
// per-device node id.
//
//	<discovery_prefix>/<component>/<node_id>/<object_id>/config
//	juicebridge/<node_id>/<object_id>/state
//	juicebridge/<node_id>/<object_id>/set
//	juicebridge/<node_id>/availability
const (
	// DefaultDiscoveryPrefix is the Home Assistant discovery root used
	// when none is configured.
	DefaultDiscoveryPrefix = "homeassistant"

	// statePrefix roots every non-discovery topic this bridge publishes.
	statePrefix = "juicebridge"
)

// Topics builds discovery/state/command/availability topics for one
// discovery prefix. The zero value uses DefaultDiscoveryPrefix.
type Topics struct {
	DiscoveryPrefix string
}

func (t Topics) prefix() string {
	if t.DiscoveryPrefix == "" {
		return DefaultDiscoveryPrefix
	}
	return t.DiscoveryPrefix
}

// DiscoveryConfig returns the retained config topic Home Assistant
// watches to learn about one entity, e.g.
// "homeassistant/sensor/0910.../current/config".
func (t Topics) DiscoveryConfig(component, nodeID, objectID string) string {
	return fmt.Sprintf("%s/%s/%s/%s/config", t.prefix(), component, nodeID, objectID)
}

// State returns the topic an entity publishes its current value to.
func (Topics) State(nodeID, objectID string) string {
	return fmt.Sprintf("%s/%s/%s/state", statePrefix, nodeID, objectID)
}

// Command returns the topic a mutable entity subscribes to for inbound
// writes.
func (Topics) Command(nodeID, objectID string) string {
	return fmt.Sprintf("%s/%s/%s/set", statePrefix, nodeID, objectID)
}

// Availability returns the per-device LWT/online topic.
func (Topics) Availability(nodeID string) string {
	return fmt.Sprintf("%s/%s/availability", statePrefix, nodeID)
}
