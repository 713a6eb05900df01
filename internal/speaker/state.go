package speaker

import "sync"

// Field identifies one publishable element of the speaker state.
type Field string

// State fields, named after their MQTT info topics.
const (
	FieldVolume           Field = "volume"
	FieldEqProfile        Field = "eq_profile"
	FieldDeviceName       Field = "device_name"
	FieldLedBrightness    Field = "led_brightness"
	FieldPlayStatus       Field = "play_status"
	FieldAudioSource      Field = "audio_source"
	FieldInteractionSound Field = "interaction_sound_enabled"
	FieldMedia            Field = "media"
)

// Snapshot is a point-in-time copy of the speaker state, safe to read
// without holding the model's lock.
type Snapshot struct {
	Volume           int
	EqProfile        EqProfile
	EqPreset         EqPreset
	DeviceName       string
	LedBrightness    int
	PlayStatus       PlayStatus
	AudioSource      AudioSource
	InteractionSound bool
	Media            MediaInfo
}

// State is the canonical in-memory model of everything the speaker
// reports. It starts unknown and is populated by decoded updates from
// the device-event path; the status publisher reads it.
//
// Thread Safety: all methods are safe for concurrent use. Updates are
// applied one at a time, so the single-writer discipline holds even
// though the notification and read-back paths run concurrently.
type State struct {
	mu sync.RWMutex

	volume           int
	eqProfile        EqProfile
	deviceName       string
	ledBrightness    int
	playStatus       PlayStatus
	audioSource      AudioSource
	interactionSound bool
	media            MediaInfo

	// known tracks which fields have been populated since startup.
	known map[Field]bool
}

// NewState creates an empty state model; every field is unknown until
// the first decoded update arrives.
func NewState() *State {
	return &State{known: make(map[Field]bool)}
}

// Apply merges a decoded update into the model and returns the fields
// whose values changed (or became known). Numeric values are clamped to
// their device ranges so the model never holds an out-of-range value.
func (s *State) Apply(u Update) []Field {
	s.mu.Lock()
	defer s.mu.Unlock()

	var changed []Field

	switch u.Kind {
	case UpdateVolume:
		v := clamp(u.Volume, 0, MaxVolume)
		if !s.known[FieldVolume] || s.volume != v {
			s.volume = v
			changed = append(changed, FieldVolume)
		}
		s.known[FieldVolume] = true

	case UpdateEqProfile:
		if !s.known[FieldEqProfile] || s.eqProfile != u.Profile {
			s.eqProfile = u.Profile
			changed = append(changed, FieldEqProfile)
		}
		s.known[FieldEqProfile] = true

	case UpdateStatus:
		if !s.known[FieldAudioSource] || s.audioSource != u.Status.Source {
			s.audioSource = u.Status.Source
			changed = append(changed, FieldAudioSource)
		}
		if !s.known[FieldPlayStatus] || s.playStatus != u.Status.Play {
			s.playStatus = u.Status.Play
			changed = append(changed, FieldPlayStatus)
		}
		if !s.known[FieldInteractionSound] || s.interactionSound != u.Status.InteractionSound {
			s.interactionSound = u.Status.InteractionSound
			changed = append(changed, FieldInteractionSound)
		}
		s.known[FieldAudioSource] = true
		s.known[FieldPlayStatus] = true
		s.known[FieldInteractionSound] = true

	case UpdateDeviceName:
		if !s.known[FieldDeviceName] || s.deviceName != u.Name {
			s.deviceName = u.Name
			changed = append(changed, FieldDeviceName)
		}
		s.known[FieldDeviceName] = true

	case UpdateBrightness:
		v := clamp(u.Brightness, 0, MaxBrightness)
		if !s.known[FieldLedBrightness] || s.ledBrightness != v {
			s.ledBrightness = v
			changed = append(changed, FieldLedBrightness)
		}
		s.known[FieldLedBrightness] = true

	case UpdateMedia:
		if !s.known[FieldMedia] || s.media != u.Media {
			s.media = u.Media
			changed = append(changed, FieldMedia)
		}
		s.known[FieldMedia] = true

	case UpdateNone:
		// Nothing to merge.
	}

	return changed
}

// Known reports whether a field has been populated since startup.
func (s *State) Known(f Field) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.known[f]
}

// Snapshot returns a copy of the current state. The equaliser preset is
// derived from the profile at read time, never stored.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Snapshot{
		Volume:           s.volume,
		EqProfile:        s.eqProfile,
		EqPreset:         PresetFor(s.eqProfile),
		DeviceName:       s.deviceName,
		LedBrightness:    s.ledBrightness,
		PlayStatus:       s.playStatus,
		AudioSource:      s.audioSource,
		InteractionSound: s.interactionSound,
		Media:            s.media,
	}
}

// EqProfile returns the current profile and whether it is known yet.
// The supervisor uses it for per-band read-modify-write.
func (s *State) EqProfile() (EqProfile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.eqProfile, s.known[FieldEqProfile]
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
