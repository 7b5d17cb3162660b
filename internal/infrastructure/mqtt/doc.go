// Package mqtt provides MQTT client connectivity for the Qingping bridge.
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
// Qingping monitors provisioned for private MQTT publish uplink frames on
// qingping/{MAC}/up and accept commands on qingping/{MAC}/down. The bridge
// sits on the same broker, decodes uplinks, and publishes its own state
// and alert topics under qingping/bridge/.
//
//	Qingping monitors ↔ MQTT Broker ↔ Bridge ↔ Consumers
//
// # Security Considerations
//
//   - TLS is required for production deployments (cfg.Broker.TLS=true)
//   - Credentials are validated against broker ACL
//   - Anonymous access is only for local development
//   - Message payloads are not encrypted beyond TLS transport
//
// # Performance Characteristics
//
//   - Connection: <1 second to local broker
//   - Publish latency: <10ms for QoS 1 to local broker
//   - Reconnect: Exponential backoff 1s-60s
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Subscribe to all device uplinks
//	err = client.Subscribe(mqtt.Topics{}.AllDeviceUp(), 0,
//	    func(topic string, payload []byte) error {
//	        log.Printf("Received: %s = %s", topic, payload)
//	        return nil
//	    })
//
//	// Send a downlink
//	topic := mqtt.Topics{}.DeviceDown("AABBCCDDEEFF")
//	client.Publish(topic, payload, 0, false)
package mqtt
