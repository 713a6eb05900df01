package speaker

import (
	"bytes"
	"fmt"
	"unicode/utf8"
)

// Characteristic identifies a GATT characteristic on the speaker by its
// UUID, exactly as the device advertises it.
type Characteristic string

// GATT characteristics exposed by the speaker's control service.
const (
	// CharVolume carries the volume level (write, read, notify).
	CharVolume Characteristic = "44fa-50b2-d0a3-472e-a939-d80c-f176-38bb"

	// CharControl carries transport/source/interaction-sound opcodes on
	// write and the combined status frame on read/notify.
	CharControl Characteristic = "4446-cf5f-12f2-4c1e-afe1-b157-9753-5ba8"

	// CharLedBrightness carries the LED brightness (write, read).
	CharLedBrightness Characteristic = "35e3-b090-1d43-35ae-af35-d254-b153-fc36"

	// CharDeviceName carries the Bluetooth device name (write, read).
	CharDeviceName Characteristic = "3ba9-1c2e-8b08-4c27-9d4e-4936-a793-fcfb"

	// CharEqualiser carries the 5-band equaliser profile (write, read,
	// notify).
	CharEqualiser Characteristic = "31fb-b033-1013-bd3e-a249-d856-f156-a319"

	// CharPairing triggers Bluetooth pairing mode (write). Writing it
	// drops the BLE link as a side effect.
	CharPairing Characteristic = "4a75-c20f-13bd-44a1-b39d-a70f-86f6-07a2"

	// CharMediaInfo streams track metadata segments (notify).
	CharMediaInfo Characteristic = "95c0-9f26-95a4-4597-a798-b8e4-08f5-ca66"
)

// Control characteristic opcodes.
const (
	opPause           byte = 0x00
	opPlay            byte = 0x01
	opPrevious        byte = 0x02
	opNext            byte = 0x03
	opSourceBluetooth byte = 0x0C
	opSourceAux       byte = 0x0D
	opSourceRCA       byte = 0x0E
	opSoundOff        byte = 0x10
	opSoundOn         byte = 0x11
)

// Status frame layout (read/notify on CharControl).
const (
	statusIdxSource      = 0
	statusIdxPlay        = 1
	statusIdxInteraction = 3
	statusFrameMinLen    = 4
)

// brightnessOffset is added to the logical brightness on write; reads
// report the offset value back.
const brightnessOffset = 35

// nameFrameHeaderLen is the header of a device-name frame (marker byte
// plus length byte).
const nameFrameHeaderLen = 2

// Action names the logical operation a Command performs. The set is
// closed: the router only produces actions listed here.
type Action string

// Logical command actions.
const (
	ActionSetVolume           Action = "set_volume"
	ActionGetVolume           Action = "get_volume"
	ActionSetEqPreset         Action = "set_eq_preset"
	ActionGetEqPreset         Action = "get_eq_preset"
	ActionSetEqProfile        Action = "set_eq_profile"
	ActionSetEqBand           Action = "set_eq_band"
	ActionGetEqProfile        Action = "get_eq_profile"
	ActionSetDeviceName       Action = "set_device_name"
	ActionGetDeviceName       Action = "get_device_name"
	ActionSetLedBrightness    Action = "set_led_brightness"
	ActionGetLedBrightness    Action = "get_led_brightness"
	ActionPlay                Action = "play"
	ActionPause               Action = "pause"
	ActionNext                Action = "next"
	ActionPrevious            Action = "previous"
	ActionSetInteractionSound Action = "set_interaction_sound"
	ActionGetStatus           Action = "get_status"
	ActionSetSource           Action = "set_source"
	ActionEnterPairingMode    Action = "enter_pairing_mode"
)

// Command is a validated logical command, produced by the router and
// consumed once by the connection supervisor. Only the fields relevant
// to the Action are populated.
type Command struct {
	// ID correlates the command across log lines and history entries.
	ID string

	Action Action

	Volume     int
	Preset     EqPreset
	Profile    EqProfile
	Band       int // band index for ActionSetEqBand
	Level      int // band level for ActionSetEqBand
	Name       string
	Brightness int
	Enabled    bool
	Source     AudioSource
}

// IsGet reports whether the action only reads state.
func (c Command) IsGet() bool {
	switch c.Action {
	case ActionGetVolume, ActionGetEqPreset, ActionGetEqProfile,
		ActionGetDeviceName, ActionGetLedBrightness, ActionGetStatus:
		return true
	default:
		return false
	}
}

// Frame is the binary write a command translates to: a payload for one
// characteristic.
type Frame struct {
	Char    Characteristic
	Payload []byte
}

// Encode translates a validated command into the frame the device
// expects. It never fails for values the router has already validated;
// an error here means the command kind has no single-write encoding
// (get actions and per-band equaliser sets, which the supervisor
// handles as reads).
//
// Returns:
//   - Frame: Characteristic and payload to write
//   - error: ErrUnknownCommand for non-encodable actions,
//     ErrValueOutOfRange / ErrInvalidDeviceName for invalid values
func Encode(cmd Command) (Frame, error) {
	switch cmd.Action {
	case ActionSetVolume:
		if cmd.Volume < 0 || cmd.Volume > MaxVolume {
			return Frame{}, fmt.Errorf("%w: volume %d not in 0-%d", ErrValueOutOfRange, cmd.Volume, MaxVolume)
		}
		return Frame{Char: CharVolume, Payload: []byte{byte(cmd.Volume)}}, nil

	case ActionSetEqPreset:
		profile, ok := ProfileFor(cmd.Preset)
		if !ok {
			return Frame{}, fmt.Errorf("%w: preset %q has no reference profile", ErrValueOutOfRange, cmd.Preset)
		}
		return encodeProfile(profile)

	case ActionSetEqProfile:
		return encodeProfile(cmd.Profile)

	case ActionSetDeviceName:
		return encodeDeviceName(cmd.Name)

	case ActionSetLedBrightness:
		if cmd.Brightness < 0 || cmd.Brightness > MaxBrightness {
			return Frame{}, fmt.Errorf("%w: brightness %d not in 0-%d", ErrValueOutOfRange, cmd.Brightness, MaxBrightness)
		}
		return Frame{Char: CharLedBrightness, Payload: []byte{byte(cmd.Brightness + brightnessOffset)}}, nil

	case ActionPlay:
		return Frame{Char: CharControl, Payload: []byte{opPlay}}, nil
	case ActionPause:
		return Frame{Char: CharControl, Payload: []byte{opPause}}, nil
	case ActionNext:
		return Frame{Char: CharControl, Payload: []byte{opNext}}, nil
	case ActionPrevious:
		return Frame{Char: CharControl, Payload: []byte{opPrevious}}, nil

	case ActionSetInteractionSound:
		op := opSoundOff
		if cmd.Enabled {
			op = opSoundOn
		}
		return Frame{Char: CharControl, Payload: []byte{op}}, nil

	case ActionSetSource:
		op, ok := sourceOpcode(cmd.Source)
		if !ok {
			return Frame{}, fmt.Errorf("%w: source %q", ErrValueOutOfRange, cmd.Source)
		}
		return Frame{Char: CharControl, Payload: []byte{op}}, nil

	case ActionEnterPairingMode:
		return Frame{Char: CharPairing, Payload: []byte{0x00}}, nil

	default:
		return Frame{}, fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.Action)
	}
}

func encodeProfile(p EqProfile) (Frame, error) {
	if !p.Valid() {
		return Frame{}, fmt.Errorf("%w: profile %v", ErrValueOutOfRange, p)
	}
	payload := make([]byte, NumBands)
	for i, v := range p {
		payload[i] = byte(v)
	}
	return Frame{Char: CharEqualiser, Payload: payload}, nil
}

func encodeDeviceName(name string) (Frame, error) {
	encoded := []byte(name)
	if len(encoded) == 0 || len(encoded) > MaxDeviceNameBytes {
		return Frame{}, fmt.Errorf("%w: %d bytes, want 1-%d", ErrInvalidDeviceName, len(encoded), MaxDeviceNameBytes)
	}
	payload := make([]byte, 0, nameFrameHeaderLen+len(encoded))
	payload = append(payload, 0x01, byte(len(encoded)))
	payload = append(payload, encoded...)
	return Frame{Char: CharDeviceName, Payload: payload}, nil
}

func sourceOpcode(src AudioSource) (byte, bool) {
	switch src {
	case SourceBluetooth:
		return opSourceBluetooth, true
	case SourceAux:
		return opSourceAux, true
	case SourceRCA:
		return opSourceRCA, true
	default:
		return 0, false
	}
}

// CharacteristicForGet returns the characteristic a get action reads.
// The equaliser preset is served from the profile characteristic since
// the preset is derived, not stored on the device.
func CharacteristicForGet(action Action) (Characteristic, bool) {
	switch action {
	case ActionGetVolume:
		return CharVolume, true
	case ActionGetEqPreset, ActionGetEqProfile:
		return CharEqualiser, true
	case ActionGetDeviceName:
		return CharDeviceName, true
	case ActionGetLedBrightness:
		return CharLedBrightness, true
	case ActionGetStatus:
		return CharControl, true
	default:
		return "", false
	}
}

// UpdateKind identifies which state fields an Update carries.
type UpdateKind int

// Update kinds.
const (
	// UpdateNone is returned for characteristics the codec does not
	// know; the payload is ignored rather than treated as an error.
	UpdateNone UpdateKind = iota
	UpdateVolume
	UpdateEqProfile
	UpdateStatus
	UpdateDeviceName
	UpdateBrightness
	UpdateMedia
)

// Update is a decoded notification or read result: one or more typed
// fields plus the kind of update they represent.
type Update struct {
	Kind UpdateKind

	Volume     int
	Profile    EqProfile
	Status     Status
	Name       string
	Brightness int
	Media      MediaInfo
}

// Decode parses a notification or read payload from a characteristic
// into a typed update.
//
// Unknown characteristics decode to UpdateNone without error; malformed
// payloads for known characteristics return ErrInvalidFrame and must
// leave the caller's state untouched. Media-info payloads are streamed
// and must go through a MediaAssembler instead.
//
// Parameters:
//   - char: Source characteristic
//   - data: Raw payload bytes
//
// Returns:
//   - Update: Decoded fields
//   - error: Wrapped ErrInvalidFrame on malformed known payloads
func Decode(char Characteristic, data []byte) (Update, error) {
	switch char {
	case CharVolume:
		if len(data) < 1 {
			return Update{}, fmt.Errorf("%w: empty volume payload", ErrInvalidFrame)
		}
		return Update{Kind: UpdateVolume, Volume: int(data[0])}, nil

	case CharControl:
		status, err := decodeStatus(data)
		if err != nil {
			return Update{}, err
		}
		return Update{Kind: UpdateStatus, Status: status}, nil

	case CharEqualiser:
		profile, err := decodeProfile(data)
		if err != nil {
			return Update{}, err
		}
		return Update{Kind: UpdateEqProfile, Profile: profile}, nil

	case CharDeviceName:
		if len(data) < nameFrameHeaderLen {
			return Update{}, fmt.Errorf("%w: name payload %d bytes, want at least %d", ErrInvalidFrame, len(data), nameFrameHeaderLen)
		}
		name := string(data[nameFrameHeaderLen:])
		if !utf8.ValidString(name) {
			return Update{}, fmt.Errorf("%w: name is not valid UTF-8", ErrInvalidFrame)
		}
		return Update{Kind: UpdateDeviceName, Name: name}, nil

	case CharLedBrightness:
		if len(data) < 1 {
			return Update{}, fmt.Errorf("%w: empty brightness payload", ErrInvalidFrame)
		}
		return Update{Kind: UpdateBrightness, Brightness: int(data[0]) - brightnessOffset}, nil

	default:
		// Tolerate characteristics we do not understand.
		return Update{Kind: UpdateNone}, nil
	}
}

func decodeStatus(data []byte) (Status, error) {
	if len(data) < statusFrameMinLen {
		return Status{}, fmt.Errorf("%w: status frame %d bytes, want at least %d", ErrInvalidFrame, len(data), statusFrameMinLen)
	}

	var src AudioSource
	switch data[statusIdxSource] {
	case 0x03:
		src = SourceBluetooth
	case 0x01:
		src = SourceAux
	case 0x04:
		src = SourceRCA
	default:
		return Status{}, fmt.Errorf("%w: unknown source byte 0x%02X", ErrInvalidFrame, data[statusIdxSource])
	}

	var play PlayStatus
	switch data[statusIdxPlay] {
	case 0x00:
		play = PlayStatusPlay
	case 0x01:
		play = PlayStatusPause
	case 0x02:
		play = PlayStatusStopped
	default:
		return Status{}, fmt.Errorf("%w: unknown play-status byte 0x%02X", ErrInvalidFrame, data[statusIdxPlay])
	}

	return Status{
		Source:           src,
		Play:             play,
		InteractionSound: data[statusIdxInteraction] == 1,
	}, nil
}

func decodeProfile(data []byte) (EqProfile, error) {
	if len(data) < NumBands {
		return EqProfile{}, fmt.Errorf("%w: equaliser payload %d bytes, want %d", ErrInvalidFrame, len(data), NumBands)
	}
	var p EqProfile
	for i := 0; i < NumBands; i++ {
		v := int(data[i])
		if v > MaxBandLevel {
			return EqProfile{}, fmt.Errorf("%w: band %dhz level %d exceeds %d", ErrInvalidFrame, BandFrequencies[i], v, MaxBandLevel)
		}
		p[i] = v
	}
	return p, nil
}

// Media-info stream framing. Each segment starts with a fixed header
// whose fourth byte selects the field, followed by a length byte and
// that many bytes of UTF-8 text. The stream ends with a terminator
// sequence.
var (
	mediaTerminator = []byte{0x00, 0x00, 0x00, 0xFF, 0x00, 0x00, 0x00, 0x00}

	mediaTitleHeader  = []byte{0x00, 0x00, 0x00, 0x01, 0x00, 0x6A, 0x00}
	mediaArtistHeader = []byte{0x00, 0x00, 0x00, 0x02, 0x00, 0x6A, 0x00}
	mediaAlbumHeader  = []byte{0x00, 0x00, 0x00, 0x03, 0x00, 0x6A, 0x00}
)

// MediaAssembler reassembles track metadata from the media-info
// characteristic, which streams its payload across multiple
// notifications. Not safe for concurrent use; the supervisor feeds it
// from a single goroutine.
type MediaAssembler struct {
	buf bytes.Buffer
}

// Feed appends a notification payload to the stream buffer. When the
// payload completes a metadata packet (ends with the terminator), the
// assembled MediaInfo is returned with ok=true and the buffer is reset
// for the next packet.
func (a *MediaAssembler) Feed(data []byte) (MediaInfo, bool) {
	a.buf.Write(data)

	raw := a.buf.Bytes()
	if len(raw) < len(mediaTerminator) || !bytes.Equal(raw[len(raw)-len(mediaTerminator):], mediaTerminator) {
		return MediaInfo{}, false
	}

	info := MediaInfo{
		Title:  extractMediaField(raw, mediaTitleHeader),
		Artist: extractMediaField(raw, mediaArtistHeader),
		Album:  extractMediaField(raw, mediaAlbumHeader),
	}
	a.buf.Reset()
	return info, true
}

// Reset discards any partially assembled packet. Called when the link
// drops mid-stream.
func (a *MediaAssembler) Reset() {
	a.buf.Reset()
}

// extractMediaField locates a segment header and returns its text, or
// "" when the field is absent or truncated.
func extractMediaField(raw, header []byte) string {
	start := bytes.Index(raw, header)
	if start < 0 {
		return ""
	}
	lenPos := start + len(header)
	if lenPos >= len(raw) {
		return ""
	}
	n := int(raw[lenPos])
	dataStart := lenPos + 1
	if dataStart+n > len(raw) {
		return ""
	}
	return string(raw[dataStart : dataStart+n])
}
