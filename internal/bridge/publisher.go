package bridge

import (
	"fmt"
	"strconv"

	"github.com/nerrad567/stanmore-bridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/stanmore-bridge/internal/speaker"
)

// Logger is the logging surface the bridge depends on. Satisfied by
// logging.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// InfoPublisher is the publishing surface the Publisher needs.
// Satisfied by mqtt.Client.
type InfoPublisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// HistoryRecorder receives every published field value. Satisfied by
// history.Store; a nil recorder disables recording.
type HistoryRecorder interface {
	Record(field, value string) error
}

// Publisher maps state model fields onto {prefix}/info topics.
//
// One state field can fan out to several topics: an equaliser profile
// change publishes the full profile, each per-band topic and the
// derived preset; a media change publishes title, artist and album.
type Publisher struct {
	client  InfoPublisher
	topics  mqtt.Topics
	state   *speaker.State
	qos     byte
	retain  bool
	history HistoryRecorder
	logger  Logger
}

// NewPublisher wires a publisher to the state model. history may be
// nil when the history store is disabled.
func NewPublisher(client InfoPublisher, topics mqtt.Topics, state *speaker.State, qos byte, retain bool, history HistoryRecorder, logger Logger) *Publisher {
	return &Publisher{
		client:  client,
		topics:  topics,
		state:   state,
		qos:     qos,
		retain:  retain,
		history: history,
		logger:  logger,
	}
}

// PublishFields emits the info topics covering the given state fields,
// reading current values from the state model.
func (p *Publisher) PublishFields(fields []speaker.Field) {
	if len(fields) == 0 {
		return
	}

	snap := p.state.Snapshot()
	for _, field := range fields {
		p.publishField(field, snap)
	}
}

func (p *Publisher) publishField(field speaker.Field, snap speaker.Snapshot) {
	switch field {
	case speaker.FieldVolume:
		p.publish(p.topics.Info("volume"), "volume", strconv.Itoa(snap.Volume))

	case speaker.FieldEqProfile:
		p.publish(p.topics.Info("eq_profile"), "eq_profile", snap.EqProfile.String())
		for i, hz := range speaker.BandFrequencies {
			band := fmt.Sprintf("%dhz", hz)
			p.publish(p.topics.Info("eq_profile", band), "eq_profile/"+band, strconv.Itoa(snap.EqProfile[i]))
		}
		p.publish(p.topics.Info("eq_preset"), "eq_preset", string(snap.EqPreset))

	case speaker.FieldDeviceName:
		p.publish(p.topics.Info("device_name"), "device_name", snap.DeviceName)

	case speaker.FieldLedBrightness:
		p.publish(p.topics.Info("led_brightness"), "led_brightness", strconv.Itoa(snap.LedBrightness))

	case speaker.FieldPlayStatus:
		p.publish(p.topics.Info("play_status"), "play_status", string(snap.PlayStatus))

	case speaker.FieldAudioSource:
		p.publish(p.topics.Info("audio_source"), "audio_source", string(snap.AudioSource))

	case speaker.FieldInteractionSound:
		// The device convention is numeric: "1" enabled, "0" disabled.
		p.publish(p.topics.Info("interaction_sound_enabled"), "interaction_sound_enabled", boolPayload(snap.InteractionSound))

	case speaker.FieldMedia:
		p.publish(p.topics.Info("media", "title"), "media/title", snap.Media.Title)
		p.publish(p.topics.Info("media", "artist"), "media/artist", snap.Media.Artist)
		p.publish(p.topics.Info("media", "album"), "media/album", snap.Media.Album)

	default:
		p.logger.Error("no info topic for field", "field", string(field))
	}
}

func boolPayload(v bool) string {
	if v {
		return "1"
	}
	return "0"
}

func (p *Publisher) publish(topic, field, value string) {
	if err := p.client.Publish(topic, []byte(value), p.qos, p.retain); err != nil {
		p.logger.Warn("info publish failed",
			"topic", topic,
			"error", err,
		)
		return
	}

	if p.history != nil {
		if err := p.history.Record(field, value); err != nil {
			p.logger.Warn("history record failed",
				"field", field,
				"error", err,
			)
		}
	}
}

// fieldsForGet maps a get action to the state fields its answer
// covers.
func fieldsForGet(action speaker.Action) []speaker.Field {
	switch action {
	case speaker.ActionGetVolume:
		return []speaker.Field{speaker.FieldVolume}
	case speaker.ActionGetEqPreset, speaker.ActionGetEqProfile:
		return []speaker.Field{speaker.FieldEqProfile}
	case speaker.ActionGetDeviceName:
		return []speaker.Field{speaker.FieldDeviceName}
	case speaker.ActionGetLedBrightness:
		return []speaker.Field{speaker.FieldLedBrightness}
	case speaker.ActionGetStatus:
		return []speaker.Field{speaker.FieldAudioSource, speaker.FieldPlayStatus, speaker.FieldInteractionSound}
	default:
		return nil
	}
}

// fieldsForUpdate maps an update kind to the fields it carries. Used
// to force a publish for command-correlated updates even when the
// value did not change.
func fieldsForUpdate(kind speaker.UpdateKind) []speaker.Field {
	switch kind {
	case speaker.UpdateVolume:
		return []speaker.Field{speaker.FieldVolume}
	case speaker.UpdateEqProfile:
		return []speaker.Field{speaker.FieldEqProfile}
	case speaker.UpdateStatus:
		return []speaker.Field{speaker.FieldAudioSource, speaker.FieldPlayStatus, speaker.FieldInteractionSound}
	case speaker.UpdateDeviceName:
		return []speaker.Field{speaker.FieldDeviceName}
	case speaker.UpdateBrightness:
		return []speaker.Field{speaker.FieldLedBrightness}
	case speaker.UpdateMedia:
		return []speaker.Field{speaker.FieldMedia}
	default:
		return nil
	}
}
