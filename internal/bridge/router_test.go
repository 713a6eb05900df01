package bridge

import (
	"errors"
	"fmt"
	"strconv"
	"testing"

	"github.com/nerrad567/stanmore-bridge/internal/speaker"
)

func TestRouter_SetVolumeRange(t *testing.T) {
	r := NewRouter(false)

	for v := 0; v <= speaker.MaxVolume; v++ {
		cmd, err := r.Route("set_volume", "", []byte(strconv.Itoa(v)))
		if err != nil {
			t.Fatalf("Route(set_volume, %d) error = %v", v, err)
		}
		if cmd.Action != speaker.ActionSetVolume || cmd.Volume != v {
			t.Fatalf("Route(set_volume, %d) = %+v", v, cmd)
		}
		if cmd.ID == "" {
			t.Fatal("routed command has empty ID")
		}

		frame, err := speaker.Encode(cmd)
		if err != nil {
			t.Fatalf("Encode(set_volume %d) error = %v", v, err)
		}
		if frame.Char != speaker.CharVolume || len(frame.Payload) != 1 || frame.Payload[0] != byte(v) {
			t.Fatalf("Encode(set_volume %d) = %+v", v, frame)
		}
	}

	for _, payload := range []string{"-1", "33", "abc", "", "1.5"} {
		if _, err := r.Route("set_volume", "", []byte(payload)); !errors.Is(err, ErrInvalidPayload) {
			t.Errorf("Route(set_volume, %q) error = %v, want ErrInvalidPayload", payload, err)
		}
	}
}

func TestRouter_Route(t *testing.T) {
	tests := []struct {
		name         string
		action       string
		subpath      string
		payload      string
		allowPairing bool
		want         speaker.Command
		wantErr      error
	}{
		{
			name:    "set eq preset",
			action:  "set_eq_preset",
			payload: "Rock",
			want:    speaker.Command{Action: speaker.ActionSetEqPreset, Preset: speaker.PresetRock},
		},
		{
			name:    "custom preset rejected",
			action:  "set_eq_preset",
			payload: "custom",
			wantErr: ErrInvalidPayload,
		},
		{
			name:    "set eq profile",
			action:  "set_eq_profile",
			payload: "8 6 3 5 7",
			want:    speaker.Command{Action: speaker.ActionSetEqProfile, Profile: speaker.EqProfile{8, 6, 3, 5, 7}},
		},
		{
			name:    "eq profile wrong band count",
			action:  "set_eq_profile",
			payload: "5 5 5 5",
			wantErr: ErrInvalidPayload,
		},
		{
			name:    "eq profile out of range",
			action:  "set_eq_profile",
			payload: "5 5 11 5 5",
			wantErr: ErrInvalidPayload,
		},
		{
			name:    "per band set",
			action:  "set_eq_profile",
			subpath: "160hz",
			payload: "9",
			want:    speaker.Command{Action: speaker.ActionSetEqBand, Band: 0, Level: 9},
		},
		{
			name:    "per band highest frequency",
			action:  "set_eq_profile",
			subpath: "6250hz",
			payload: "2",
			want:    speaker.Command{Action: speaker.ActionSetEqBand, Band: 4, Level: 2},
		},
		{
			name:    "per band unknown frequency",
			action:  "set_eq_profile",
			subpath: "300hz",
			payload: "5",
			wantErr: ErrInvalidPayload,
		},
		{
			name:    "per band level out of range",
			action:  "set_eq_profile",
			subpath: "400hz",
			payload: "11",
			wantErr: ErrInvalidPayload,
		},
		{
			name:    "set device name",
			action:  "set_device_name",
			payload: "Living Room",
			want:    speaker.Command{Action: speaker.ActionSetDeviceName, Name: "Living Room"},
		},
		{
			name:    "device name too long",
			action:  "set_device_name",
			payload: "This Name Is Too Long",
			wantErr: ErrInvalidPayload,
		},
		{
			name:    "set led brightness",
			action:  "set_led_brightness",
			payload: "35",
			want:    speaker.Command{Action: speaker.ActionSetLedBrightness, Brightness: 35},
		},
		{
			name:    "brightness out of range",
			action:  "set_led_brightness",
			payload: "36",
			wantErr: ErrInvalidPayload,
		},
		{
			name:   "play",
			action: "play",
			want:   speaker.Command{Action: speaker.ActionPlay},
		},
		{
			name:    "play with payload rejected",
			action:  "play",
			payload: "now",
			wantErr: ErrInvalidPayload,
		},
		{
			name:    "interaction sound on",
			action:  "set_interaction_sound",
			payload: "ON",
			want:    speaker.Command{Action: speaker.ActionSetInteractionSound, Enabled: true},
		},
		{
			name:    "interaction sound false",
			action:  "set_interaction_sound",
			payload: "false",
			want:    speaker.Command{Action: speaker.ActionSetInteractionSound, Enabled: false},
		},
		{
			name:    "interaction sound garbage",
			action:  "set_interaction_sound",
			payload: "maybe",
			wantErr: ErrInvalidPayload,
		},
		{
			name:    "set source",
			action:  "set_source",
			payload: "AUX",
			want:    speaker.Command{Action: speaker.ActionSetSource, Source: speaker.SourceAux},
		},
		{
			name:    "unknown source",
			action:  "set_source",
			payload: "optical",
			wantErr: ErrInvalidPayload,
		},
		{
			name:   "get volume",
			action: "get_volume",
			want:   speaker.Command{Action: speaker.ActionGetVolume},
		},
		{
			name:    "get with payload rejected",
			action:  "get_volume",
			payload: "please",
			wantErr: ErrInvalidPayload,
		},
		{
			name:    "get with subpath rejected",
			action:  "get_status",
			subpath: "extra",
			wantErr: ErrInvalidPayload,
		},
		{
			name:    "pairing disabled",
			action:  "enter_pairing_mode",
			wantErr: ErrPairingDisabled,
		},
		{
			name:         "pairing enabled",
			action:       "enter_pairing_mode",
			allowPairing: true,
			want:         speaker.Command{Action: speaker.ActionEnterPairingMode},
		},
		{
			name:    "unknown action",
			action:  "self_destruct",
			wantErr: ErrUnknownAction,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRouter(tt.allowPairing)
			cmd, err := r.Route(tt.action, tt.subpath, []byte(tt.payload))

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Route() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Route() error = %v", err)
			}

			if cmd.ID == "" {
				t.Error("routed command has empty ID")
			}
			cmd.ID = ""
			if cmd != tt.want {
				t.Errorf("Route() = %+v, want %+v", cmd, tt.want)
			}
		})
	}
}

func TestRouter_PayloadTrimmed(t *testing.T) {
	r := NewRouter(false)

	cmd, err := r.Route("set_volume", "", []byte("  12\n"))
	if err != nil {
		t.Fatalf("Route() error = %v", err)
	}
	if cmd.Volume != 12 {
		t.Errorf("Volume = %d, want 12", cmd.Volume)
	}
}

func TestRouter_EncodeRoundTrip(t *testing.T) {
	r := NewRouter(true)

	tests := []struct {
		action  string
		payload string
		char    speaker.Characteristic
		bytes   []byte
	}{
		{"set_volume", "17", speaker.CharVolume, []byte{17}},
		{"set_source", "rca", speaker.CharControl, []byte{0x0E}},
		{"set_eq_preset", "flat", speaker.CharEqualiser, []byte{5, 5, 5, 5, 5}},
		{"set_led_brightness", "10", speaker.CharLedBrightness, []byte{45}},
		{"pause", "", speaker.CharControl, []byte{0x00}},
		{"set_device_name", "Desk", speaker.CharDeviceName, []byte{0x01, 0x04, 'D', 'e', 's', 'k'}},
	}

	for _, tt := range tests {
		t.Run(tt.action, func(t *testing.T) {
			cmd, err := r.Route(tt.action, "", []byte(tt.payload))
			if err != nil {
				t.Fatalf("Route() error = %v", err)
			}
			frame, err := speaker.Encode(cmd)
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}
			if frame.Char != tt.char {
				t.Errorf("characteristic = %s, want %s", frame.Char, tt.char)
			}
			if fmt.Sprintf("%x", frame.Payload) != fmt.Sprintf("%x", tt.bytes) {
				t.Errorf("payload = % x, want % x", frame.Payload, tt.bytes)
			}
		})
	}
}
