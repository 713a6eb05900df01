package api

import (
	"net/http"

	"github.com/nerrad567/stanmore-bridge/internal/speaker"
)

// mediaResponse is the media metadata portion of a state response.
type mediaResponse struct {
	Title  string `json:"title"`
	Artist string `json:"artist"`
	Album  string `json:"album"`
}

// stateResponse renders the speaker state snapshot. Fields still unknown
// (not yet read from the device) are omitted.
type stateResponse struct {
	SpeakerConnected bool           `json:"speaker_connected"`
	Volume           *int           `json:"volume,omitempty"`
	EqProfile        *string        `json:"eq_profile,omitempty"`
	EqPreset         *string        `json:"eq_preset,omitempty"`
	DeviceName       *string        `json:"device_name,omitempty"`
	LedBrightness    *int           `json:"led_brightness,omitempty"`
	PlayStatus       *string        `json:"play_status,omitempty"`
	AudioSource      *string        `json:"audio_source,omitempty"`
	InteractionSound *bool          `json:"interaction_sound_enabled,omitempty"`
	Media            *mediaResponse `json:"media,omitempty"`
}

// handleGetState returns the current speaker state snapshot.
func (s *Server) handleGetState(w http.ResponseWriter, _ *http.Request) {
	snap := s.state.Snapshot()

	resp := stateResponse{
		SpeakerConnected: s.speaker.Connected(),
	}

	if s.state.Known(speaker.FieldVolume) {
		resp.Volume = &snap.Volume
	}
	if s.state.Known(speaker.FieldEqProfile) {
		profile := snap.EqProfile.String()
		preset := string(snap.EqPreset)
		resp.EqProfile = &profile
		resp.EqPreset = &preset
	}
	if s.state.Known(speaker.FieldDeviceName) {
		resp.DeviceName = &snap.DeviceName
	}
	if s.state.Known(speaker.FieldLedBrightness) {
		resp.LedBrightness = &snap.LedBrightness
	}
	if s.state.Known(speaker.FieldPlayStatus) {
		status := string(snap.PlayStatus)
		resp.PlayStatus = &status
	}
	if s.state.Known(speaker.FieldAudioSource) {
		source := string(snap.AudioSource)
		resp.AudioSource = &source
	}
	if s.state.Known(speaker.FieldInteractionSound) {
		resp.InteractionSound = &snap.InteractionSound
	}
	if s.state.Known(speaker.FieldMedia) {
		resp.Media = &mediaResponse{
			Title:  snap.Media.Title,
			Artist: snap.Media.Artist,
			Album:  snap.Media.Album,
		}
	}

	writeJSON(w, http.StatusOK, resp)
}
