// Package ble owns the speaker's BLE link: the BlueZ D-Bus transport
// and the connection supervisor built on top of it.
//
// The supervisor is the only component that touches the link. It
// serializes all outgoing characteristic writes and reads (at most one
// in flight at any instant), retries the connection with exponential
// backoff when the link drops, and feeds decoded notifications into the
// state-update callback. Commands submitted while the link is down are
// dropped and reported as delivery failures rather than queued; a stale
// command replayed against a reconnected device could apply outdated
// intent.
//
// Entering pairing mode is terminal: the speaker drops the BLE link as
// a side effect of the pairing write, so the supervisor disconnects
// deliberately and invokes the exit callback instead of reconnecting.
//
// # Architecture
//
//	MQTT command → bridge → Supervisor.Submit → serialized write queue → device
//	device notification → Transport callback → Supervisor → decoded Update → bridge
//
// The Transport interface isolates the BlueZ specifics so the
// supervisor can be tested against an instrumented fake.
package ble
