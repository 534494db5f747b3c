package entities

import "encoding/json"

// discoveryPayload is the common shape of a Home Assistant MQTT
// discovery config document; entity-specific fields are added by each
// publishXDiscovery helper via a plain map before marshalling.
type discoveryPayload map[string]any

func (a *Adapter) basePayload(objectID, name string, info deviceInfo) discoveryPayload {
	return discoveryPayload{
		"name":        name,
		"unique_id":   a.cfg.Serial + "_" + objectID,
		"object_id":   a.cfg.Serial + "_" + objectID,
		"state_topic": a.topic.State(a.cfg.Serial, objectID),
		"device":      info,
	}
}

func (a *Adapter) publishDiscovery(component, objectID string, payload discoveryPayload) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	topic := a.topic.DiscoveryConfig(component, a.cfg.Serial, objectID)
	return a.mq.PublishRetained(topic, b)
}

func (a *Adapter) publishSensorDiscovery(s sensorDef, info deviceInfo) error {
	p := a.basePayload(s.objectID, s.name, info)
	if s.unit != "" {
		p["unit_of_measurement"] = s.unit
	}
	if s.deviceClass != "" {
		p["device_class"] = s.deviceClass
	}
	if s.stateClass != "" {
		p["state_class"] = s.stateClass
	}
	if s.icon != "" {
		p["icon"] = s.icon
	}
	if s.entityCategory != "" {
		p["entity_category"] = s.entityCategory
	}
	if s.expireAfterSecond > 0 {
		p["expire_after"] = s.expireAfterSecond
	}
	p["enabled_by_default"] = s.enabledByDefault
	return a.publishDiscovery("sensor", s.objectID, p)
}

func (a *Adapter) publishNumberDiscovery(n numberDef, info deviceInfo) error {
	p := a.basePayload(n.objectID, n.name, info)
	p["command_topic"] = a.topic.Command(a.cfg.Serial, n.objectID)
	p["min"] = n.min
	p["max"] = n.max
	if n.unit != "" {
		p["unit_of_measurement"] = n.unit
	}
	if n.icon != "" {
		p["icon"] = n.icon
	}
	return a.publishDiscovery("number", n.objectID, p)
}

func (a *Adapter) publishSwitchDiscovery(s switchDef, info deviceInfo) error {
	p := a.basePayload(s.objectID, s.name, info)
	p["command_topic"] = a.topic.Command(a.cfg.Serial, s.objectID)
	p["payload_on"] = "ON"
	p["payload_off"] = "OFF"
	if s.icon != "" {
		p["icon"] = s.icon
	}
	return a.publishDiscovery("switch", s.objectID, p)
}

func (a *Adapter) publishTextDiscovery(t textDef, info deviceInfo) error {
	p := a.basePayload(t.objectID, t.name, info)
	p["command_topic"] = a.topic.Command(a.cfg.Serial, t.objectID)
	if t.icon != "" {
		p["icon"] = t.icon
	}
	return a.publishDiscovery("text", t.objectID, p)
}
