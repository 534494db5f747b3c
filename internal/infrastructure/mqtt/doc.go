// Package mqtt provides MQTT client connectivity for the bridge.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Architecture
//
// The bridge uses MQTT as its one outward-facing protocol: the entity
// adapter publishes Home Assistant discovery configs and state over
// it, and accepts inbound setpoint/switch/text writes the same way.
//
//	JuiceBox ↔ Relay ↔ Entity Adapter ↔ MQTT Broker ↔ Home Assistant
//
// # Security Considerations
//
//   - TLS is optional (cfg.Broker.TLS=true) for brokers that require it
//   - Credentials are validated against broker ACL
//   - Message payloads are not encrypted beyond TLS transport
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Subscribe to an entity's command topic
//	err = client.Subscribe(mqtt.Topics{}.Command("0910...", "current_max_online_set"), 1,
//	    func(topic string, payload []byte) error {
//	        log.Printf("Received: %s = %s", topic, payload)
//	        return nil
//	    })
//
//	// Publish a discovery config
//	topic := mqtt.Topics{}.DiscoveryConfig("sensor", "0910...", "current")
//	client.Publish(topic, []byte(`{"name":"Current","unit_of_measurement":"A"}`), 1, true)
package mqtt
