// Package bridge connects the MQTT command surface to the BLE
// connection supervisor and publishes decoded speaker state back out.
//
// # Architecture
//
// Three pieces cooperate:
//
//   - Router: parses {prefix}/command/{action}[/{subpath}] topics and
//     payloads into validated speaker.Commands. A static action table
//     drives parsing; unknown actions and malformed payloads are
//     rejected before any device interaction.
//   - Publisher: maps state fields to {prefix}/info/{field} topics and
//     formats their payloads, including the derived eq_preset and the
//     per-band eq_profile/{hz} topics.
//   - Bridge: the orchestrator. It subscribes to commands, feeds
//     decoded device updates into the state model, drives the
//     Publisher, mirrors BLE link transitions onto the LWT topic and
//     optionally records published values into the history store.
//
// # Data Flow
//
//	MQTT command → Router → speaker.Command → supervisor (BLE write)
//	BLE update → state model → Publisher → MQTT info topics
//	BLE link change → LWT "online"/"offline"
//
// Get actions are served from the state model when the field is
// already known; otherwise a just-in-time device read is submitted and
// the answer is published when the read completes.
package bridge
