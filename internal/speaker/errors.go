package speaker

import "errors"

// Domain errors for the speaker package.
var (
	// ErrInvalidFrame is returned when a payload for a known
	// characteristic cannot be decoded.
	ErrInvalidFrame = errors.New("speaker: invalid frame")

	// ErrValueOutOfRange is returned when a numeric field is outside
	// the range the device accepts.
	ErrValueOutOfRange = errors.New("speaker: value out of range")

	// ErrInvalidDeviceName is returned when a device name does not fit
	// the 1-17 byte UTF-8 limit of the name characteristic.
	ErrInvalidDeviceName = errors.New("speaker: invalid device name")

	// ErrUnknownCommand is returned when a command kind has no frame
	// encoding.
	ErrUnknownCommand = errors.New("speaker: unknown command")
)
