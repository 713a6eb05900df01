package bridge

import "errors"

// Domain-specific errors for command routing.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrUnknownAction is returned for command topics naming no
	// supported action.
	ErrUnknownAction = errors.New("bridge: unknown action")

	// ErrInvalidPayload is returned when a payload fails validation
	// for its action (wrong shape, out of range, bad enum value).
	ErrInvalidPayload = errors.New("bridge: invalid payload")

	// ErrPairingDisabled is returned when enter_pairing_mode arrives
	// but pairing is not enabled in configuration.
	ErrPairingDisabled = errors.New("bridge: pairing is disabled")
)
