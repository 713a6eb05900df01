// Package mqtt provides MQTT client connectivity for the Stanmore bridge.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for availability detection
//   - Connection health monitoring
//
// # Architecture
//
// The bridge uses MQTT as its outward-facing surface: commands arrive
// on {prefix}/command/{action} topics and decoded speaker state is
// published on {prefix}/info/{field} topics. The {prefix}/lwt topic
// carries "online"/"offline" and mirrors the BLE link, with the will
// covering bridge crashes.
//
//	Home automation ↔ MQTT Broker ↔ Stanmore bridge ↔ BLE speaker
//
// # Security Considerations
//
//   - TLS is recommended for non-local brokers (cfg.Broker.TLS=true)
//   - Credentials are validated against broker ACL
//   - Anonymous access is only for local development
//   - Message payloads are not encrypted beyond TLS transport
//
// # Performance Characteristics
//
//   - Connection: <1 second to local broker
//   - Publish latency: <10ms for QoS 1 to local broker
//   - Reconnect: Exponential backoff per config (initial_delay-max_delay)
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Subscribe to all commands
//	topics := client.Topics()
//	err = client.Subscribe(topics.CommandWildcard(), 1,
//	    func(topic string, payload []byte) error {
//	        log.Printf("Received: %s = %s", topic, payload)
//	        return nil
//	    })
//
//	// Publish a state field
//	client.Publish(topics.Info("volume"), []byte("17"), 1, true)
package mqtt
