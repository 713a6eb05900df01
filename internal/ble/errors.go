package ble

import "errors"

// Domain errors for the BLE package.
var (
	// ErrNotConnected is returned when an operation requires a live
	// link but the supervisor is not connected.
	ErrNotConnected = errors.New("ble: not connected")

	// ErrConnectionFailed is returned when a connection attempt fails.
	ErrConnectionFailed = errors.New("ble: connection failed")

	// ErrWriteFailed is returned when a characteristic write fails.
	ErrWriteFailed = errors.New("ble: write failed")

	// ErrReadFailed is returned when a characteristic read fails.
	ErrReadFailed = errors.New("ble: read failed")

	// ErrCharacteristicNotFound is returned when a characteristic UUID
	// cannot be resolved on the connected device.
	ErrCharacteristicNotFound = errors.New("ble: characteristic not found")

	// ErrQueueFull is returned when the command queue cannot accept
	// another operation.
	ErrQueueFull = errors.New("ble: operation queue full")

	// ErrShuttingDown is returned when an operation is submitted after
	// the supervisor has begun shutdown.
	ErrShuttingDown = errors.New("ble: supervisor shutting down")
)
