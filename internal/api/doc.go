// Package api provides a small read-only HTTP API for the bridge.
//
// It exposes the bridge's health, the current speaker state snapshot,
// and recorded field history. All mutation goes through MQTT; the HTTP
// surface exists for dashboards and debugging.
//
// The server follows the same lifecycle pattern as other infrastructure
// components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api
