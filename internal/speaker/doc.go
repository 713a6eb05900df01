// Package speaker implements the Marshall Stanmore II device protocol:
// the typed state model, the equaliser preset tables, and the binary
// codec for the speaker's GATT characteristics.
//
// The codec is deliberately device-specific. It translates between
// logical commands (set volume, select source, transport control) and
// the exact byte frames the speaker's characteristics expect, and
// decodes notification/read payloads back into typed updates. Both
// directions are pure transforms with no I/O.
//
// # State Model
//
// State is the canonical in-memory snapshot of everything the speaker
// reports. It is populated by decoded updates and read by the status
// publisher. The derived equaliser preset is never stored; it is
// recomputed from the profile on every read so the two can never
// diverge.
//
// # Related Components
//
//   - internal/ble — executes encoded frames against the device
//   - internal/bridge — routes MQTT commands and publishes state
package speaker
