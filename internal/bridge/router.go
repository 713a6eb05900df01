package bridge

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/nerrad567/stanmore-bridge/internal/speaker"
)

// Router turns command topic suffixes and payloads into validated
// logical commands. Validation happens entirely here: a command that
// leaves the Router never fails encoding for range reasons.
type Router struct {
	allowPairing bool
}

// NewRouter creates a router. allowPairing gates the
// enter_pairing_mode action.
func NewRouter(allowPairing bool) *Router {
	return &Router{allowPairing: allowPairing}
}

// parser validates one action's subpath and payload and builds the
// command. The payload arrives whitespace-trimmed.
type parser func(r *Router, subpath, payload string) (speaker.Command, error)

// actionParsers is the closed set of supported actions. Topics naming
// anything else are rejected with ErrUnknownAction.
var actionParsers = map[string]parser{
	"set_volume":            parseSetVolume,
	"get_volume":            parseGet(speaker.ActionGetVolume),
	"set_eq_preset":         parseSetEqPreset,
	"get_eq_preset":         parseGet(speaker.ActionGetEqPreset),
	"set_eq_profile":        parseSetEqProfile,
	"get_eq_profile":        parseGet(speaker.ActionGetEqProfile),
	"set_device_name":       parseSetDeviceName,
	"get_device_name":       parseGet(speaker.ActionGetDeviceName),
	"set_led_brightness":    parseSetLedBrightness,
	"get_led_brightness":    parseGet(speaker.ActionGetLedBrightness),
	"play":                  parseTransport(speaker.ActionPlay),
	"pause":                 parseTransport(speaker.ActionPause),
	"next":                  parseTransport(speaker.ActionNext),
	"previous":              parseTransport(speaker.ActionPrevious),
	"set_interaction_sound": parseSetInteractionSound,
	"get_status":            parseGet(speaker.ActionGetStatus),
	"set_source":            parseSetSource,
	"enter_pairing_mode":    parseEnterPairingMode,
}

// Route parses a command received on {prefix}/command/{action}[/{subpath}].
//
// Parameters:
//   - action: The topic segment after "command/"
//   - subpath: Remaining topic segments, "" when absent
//   - payload: Raw message payload
//
// Returns:
//   - speaker.Command: Validated command carrying a fresh correlation ID
//   - error: ErrUnknownAction, ErrInvalidPayload or ErrPairingDisabled
func (r *Router) Route(action, subpath string, payload []byte) (speaker.Command, error) {
	p, ok := actionParsers[action]
	if !ok {
		return speaker.Command{}, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}

	cmd, err := p(r, subpath, strings.TrimSpace(string(payload)))
	if err != nil {
		return speaker.Command{}, err
	}

	cmd.ID = uuid.NewString()
	return cmd, nil
}

func noSubpath(action, subpath string) error {
	if subpath != "" {
		return fmt.Errorf("%w: %s takes no subpath, got %q", ErrInvalidPayload, action, subpath)
	}
	return nil
}

func parseSetVolume(_ *Router, subpath, payload string) (speaker.Command, error) {
	if err := noSubpath("set_volume", subpath); err != nil {
		return speaker.Command{}, err
	}
	v, err := parseRangedInt(payload, 0, speaker.MaxVolume, "volume")
	if err != nil {
		return speaker.Command{}, err
	}
	return speaker.Command{Action: speaker.ActionSetVolume, Volume: v}, nil
}

// parseGet builds a parser for an argument-free get action. A
// non-empty payload is a validation error, not ignored noise.
func parseGet(action speaker.Action) parser {
	return func(_ *Router, subpath, payload string) (speaker.Command, error) {
		if err := noSubpath(string(action), subpath); err != nil {
			return speaker.Command{}, err
		}
		if payload != "" {
			return speaker.Command{}, fmt.Errorf("%w: %s takes no payload, got %q", ErrInvalidPayload, action, payload)
		}
		return speaker.Command{Action: action}, nil
	}
}

// parseTransport builds a parser for play/pause/next/previous.
func parseTransport(action speaker.Action) parser {
	return func(_ *Router, subpath, payload string) (speaker.Command, error) {
		if err := noSubpath(string(action), subpath); err != nil {
			return speaker.Command{}, err
		}
		if payload != "" {
			return speaker.Command{}, fmt.Errorf("%w: %s takes no payload, got %q", ErrInvalidPayload, action, payload)
		}
		return speaker.Command{Action: action}, nil
	}
}

func parseSetEqPreset(_ *Router, subpath, payload string) (speaker.Command, error) {
	if err := noSubpath("set_eq_preset", subpath); err != nil {
		return speaker.Command{}, err
	}
	preset, ok := speaker.ParseEqPreset(payload)
	if !ok {
		return speaker.Command{}, fmt.Errorf("%w: unknown preset %q", ErrInvalidPayload, payload)
	}
	return speaker.Command{Action: speaker.ActionSetEqPreset, Preset: preset}, nil
}

// parseSetEqProfile handles both the full five-band payload
// ("5 5 5 5 5") and the per-band form, where the band is addressed by
// a frequency subpath such as set_eq_profile/160hz with a single
// integer payload.
func parseSetEqProfile(_ *Router, subpath, payload string) (speaker.Command, error) {
	if subpath != "" {
		band, ok := bandIndex(subpath)
		if !ok {
			return speaker.Command{}, fmt.Errorf("%w: unknown equaliser band %q", ErrInvalidPayload, subpath)
		}
		level, err := parseRangedInt(payload, 0, speaker.MaxBandLevel, "band level")
		if err != nil {
			return speaker.Command{}, err
		}
		return speaker.Command{Action: speaker.ActionSetEqBand, Band: band, Level: level}, nil
	}

	profile, err := speaker.ParseEqProfile(payload)
	if err != nil {
		return speaker.Command{}, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	return speaker.Command{Action: speaker.ActionSetEqProfile, Profile: profile}, nil
}

func parseSetDeviceName(_ *Router, subpath, payload string) (speaker.Command, error) {
	if err := noSubpath("set_device_name", subpath); err != nil {
		return speaker.Command{}, err
	}
	if n := len(payload); n == 0 || n > speaker.MaxDeviceNameBytes {
		return speaker.Command{}, fmt.Errorf("%w: device name must be 1-%d bytes, got %d", ErrInvalidPayload, speaker.MaxDeviceNameBytes, n)
	}
	return speaker.Command{Action: speaker.ActionSetDeviceName, Name: payload}, nil
}

func parseSetLedBrightness(_ *Router, subpath, payload string) (speaker.Command, error) {
	if err := noSubpath("set_led_brightness", subpath); err != nil {
		return speaker.Command{}, err
	}
	v, err := parseRangedInt(payload, 0, speaker.MaxBrightness, "brightness")
	if err != nil {
		return speaker.Command{}, err
	}
	return speaker.Command{Action: speaker.ActionSetLedBrightness, Brightness: v}, nil
}

func parseSetInteractionSound(_ *Router, subpath, payload string) (speaker.Command, error) {
	if err := noSubpath("set_interaction_sound", subpath); err != nil {
		return speaker.Command{}, err
	}
	enabled, err := parseBool(payload)
	if err != nil {
		return speaker.Command{}, err
	}
	return speaker.Command{Action: speaker.ActionSetInteractionSound, Enabled: enabled}, nil
}

func parseSetSource(_ *Router, subpath, payload string) (speaker.Command, error) {
	if err := noSubpath("set_source", subpath); err != nil {
		return speaker.Command{}, err
	}
	src, ok := speaker.ParseAudioSource(payload)
	if !ok {
		return speaker.Command{}, fmt.Errorf("%w: unknown source %q", ErrInvalidPayload, payload)
	}
	return speaker.Command{Action: speaker.ActionSetSource, Source: src}, nil
}

func parseEnterPairingMode(r *Router, subpath, payload string) (speaker.Command, error) {
	if err := noSubpath("enter_pairing_mode", subpath); err != nil {
		return speaker.Command{}, err
	}
	if payload != "" {
		return speaker.Command{}, fmt.Errorf("%w: enter_pairing_mode takes no payload, got %q", ErrInvalidPayload, payload)
	}
	if !r.allowPairing {
		return speaker.Command{}, ErrPairingDisabled
	}
	return speaker.Command{Action: speaker.ActionEnterPairingMode}, nil
}

func parseRangedInt(payload string, lo, hi int, what string) (int, error) {
	v, err := strconv.Atoi(payload)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q is not an integer", ErrInvalidPayload, what, payload)
	}
	if v < lo || v > hi {
		return 0, fmt.Errorf("%w: %s %d not in %d-%d", ErrInvalidPayload, what, v, lo, hi)
	}
	return v, nil
}

func parseBool(payload string) (bool, error) {
	switch strings.ToLower(payload) {
	case "true", "on", "1":
		return true, nil
	case "false", "off", "0":
		return false, nil
	default:
		return false, fmt.Errorf("%w: %q is not a boolean", ErrInvalidPayload, payload)
	}
}

// bandIndex maps a frequency subpath like "160hz" to its profile
// index.
func bandIndex(subpath string) (int, bool) {
	name := strings.ToLower(subpath)
	for i, hz := range speaker.BandFrequencies {
		if name == fmt.Sprintf("%dhz", hz) {
			return i, true
		}
	}
	return 0, false
}
