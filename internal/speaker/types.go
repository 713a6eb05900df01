package speaker

import (
	"fmt"
	"strconv"
	"strings"
)

// Device value ranges.
const (
	// MaxVolume is the highest volume step the speaker accepts.
	MaxVolume = 32

	// MaxBrightness is the highest LED brightness step.
	MaxBrightness = 35

	// MaxBandLevel is the highest level for a single equaliser band.
	MaxBandLevel = 10

	// NumBands is the number of equaliser bands.
	NumBands = 5

	// MaxDeviceNameBytes is the longest device name the name
	// characteristic accepts, in UTF-8 encoded bytes.
	MaxDeviceNameBytes = 17
)

// BandFrequencies lists the centre frequency of each equaliser band in
// Hz, in profile order.
var BandFrequencies = [NumBands]int{160, 400, 1000, 2500, 6250}

// EqProfile is a raw 5-band equaliser configuration. Index 0 is the
// 160Hz band, index 4 the 6.25kHz band. Each level is 0-10.
type EqProfile [NumBands]int

// ParseEqProfile parses a whitespace-delimited 5-integer profile string
// (e.g. "5 5 5 5 5").
//
// Returns:
//   - EqProfile: Parsed profile
//   - error: ErrValueOutOfRange or a parse error if the payload is malformed
func ParseEqProfile(s string) (EqProfile, error) {
	fields := strings.Fields(s)
	if len(fields) != NumBands {
		return EqProfile{}, fmt.Errorf("%w: want %d bands, got %d", ErrValueOutOfRange, NumBands, len(fields))
	}

	var p EqProfile
	for i, f := range fields {
		v, err := strconv.Atoi(f)
		if err != nil {
			return EqProfile{}, fmt.Errorf("%w: band %dhz: %q is not an integer", ErrValueOutOfRange, BandFrequencies[i], f)
		}
		if v < 0 || v > MaxBandLevel {
			return EqProfile{}, fmt.Errorf("%w: band %dhz: %d not in 0-%d", ErrValueOutOfRange, BandFrequencies[i], v, MaxBandLevel)
		}
		p[i] = v
	}
	return p, nil
}

// String formats the profile as the MQTT payload representation
// ("5 5 5 5 5").
func (p EqProfile) String() string {
	parts := make([]string, NumBands)
	for i, v := range p {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, " ")
}

// Valid reports whether every band level is within range.
func (p EqProfile) Valid() bool {
	for _, v := range p {
		if v < 0 || v > MaxBandLevel {
			return false
		}
	}
	return true
}

// EqPreset is a named equaliser configuration. PresetCustom means the
// current profile matches no named preset.
type EqPreset string

// Named equaliser presets and their reference profiles.
const (
	PresetFlat       EqPreset = "flat"
	PresetRock       EqPreset = "rock"
	PresetMetal      EqPreset = "metal"
	PresetPop        EqPreset = "pop"
	PresetHipHop     EqPreset = "hiphop"
	PresetElectronic EqPreset = "electronic"
	PresetJazz       EqPreset = "jazz"
	PresetCustom     EqPreset = "custom"
)

// presetProfiles maps each named preset to its reference profile.
// PresetCustom has no reference profile by definition.
var presetProfiles = map[EqPreset]EqProfile{
	PresetFlat:       {5, 5, 5, 5, 5},
	PresetRock:       {8, 6, 3, 5, 7},
	PresetMetal:      {8, 3, 5, 7, 8},
	PresetPop:        {6, 7, 8, 4, 5},
	PresetHipHop:     {8, 7, 6, 5, 5},
	PresetElectronic: {7, 4, 4, 7, 6},
	PresetJazz:       {4, 7, 5, 4, 5},
}

// PresetFor returns the named preset whose reference profile equals p,
// or PresetCustom when none matches. The preset is always derived this
// way and never stored independently.
func PresetFor(p EqProfile) EqPreset {
	for preset, ref := range presetProfiles {
		if ref == p {
			return preset
		}
	}
	return PresetCustom
}

// ParseEqPreset matches a preset name case-insensitively. PresetCustom
// is not accepted as an input: it cannot be written to the device.
func ParseEqPreset(name string) (EqPreset, bool) {
	preset := EqPreset(strings.ToLower(strings.TrimSpace(name)))
	_, ok := presetProfiles[preset]
	return preset, ok
}

// ProfileFor returns the reference profile for a named preset.
func ProfileFor(preset EqPreset) (EqProfile, bool) {
	p, ok := presetProfiles[preset]
	return p, ok
}

// AudioSource is the speaker's active input.
type AudioSource string

// Audio input sources.
const (
	SourceBluetooth AudioSource = "bluetooth"
	SourceAux       AudioSource = "aux"
	SourceRCA       AudioSource = "rca"
)

// ParseAudioSource matches a source name case-insensitively.
func ParseAudioSource(name string) (AudioSource, bool) {
	src := AudioSource(strings.ToLower(strings.TrimSpace(name)))
	switch src {
	case SourceBluetooth, SourceAux, SourceRCA:
		return src, true
	default:
		return "", false
	}
}

// PlayStatus is the speaker's transport state.
type PlayStatus string

// Transport states.
const (
	PlayStatusPlay    PlayStatus = "play"
	PlayStatusPause   PlayStatus = "pause"
	PlayStatusStopped PlayStatus = "stopped"
)

// Status is the bundle of fields carried by the control
// characteristic's status frame.
type Status struct {
	Source           AudioSource
	Play             PlayStatus
	InteractionSound bool
}

// MediaInfo holds track metadata reported over the media-info
// characteristic. Fields may be empty when the source does not report
// them.
type MediaInfo struct {
	Title  string
	Artist string
	Album  string
}
