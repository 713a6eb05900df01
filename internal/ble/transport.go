package ble

import (
	"context"

	"github.com/nerrad567/stanmore-bridge/internal/speaker"
)

// Logger interface for optional logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Transport is the GATT operations surface the supervisor drives.
// The production implementation talks to BlueZ over D-Bus; tests use
// an instrumented fake.
//
// Implementations must deliver notifications and disconnect events via
// the registered callbacks; both may be invoked from transport-owned
// goroutines.
type Transport interface {
	// Connect establishes the BLE link and resolves the speaker's
	// characteristics. It blocks until connected or ctx expires.
	Connect(ctx context.Context) error

	// Disconnect drops the link deliberately. The disconnect callback
	// is not invoked for deliberate disconnects.
	Disconnect() error

	// Write writes a payload to a characteristic with response.
	Write(ctx context.Context, char speaker.Characteristic, payload []byte) error

	// Read reads the current value of a characteristic.
	Read(ctx context.Context, char speaker.Characteristic) ([]byte, error)

	// SetOnNotify registers the notification callback. Must be called
	// before Connect.
	SetOnNotify(func(char speaker.Characteristic, data []byte))

	// SetOnDisconnect registers the link-loss callback. Must be called
	// before Connect.
	SetOnDisconnect(func(err error))

	// Close releases transport resources. The transport cannot be
	// reused afterwards.
	Close() error
}
