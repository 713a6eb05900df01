package bridge

import (
	"github.com/nerrad567/stanmore-bridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/stanmore-bridge/internal/speaker"
)

// CommandSink accepts validated commands for execution against the
// device. Satisfied by ble.Supervisor.
type CommandSink interface {
	Submit(cmd speaker.Command) error
	Connected() bool
}

// MQTTClient is the broker surface the bridge needs. Satisfied by
// mqtt.Client.
type MQTTClient interface {
	InfoPublisher
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	PublishAvailability(online bool) error
}

// Bridge wires the command and state paths together. It subscribes to
// the command namespace, routes messages into the supervisor, merges
// decoded device updates into the state model and publishes the
// results.
type Bridge struct {
	client    MQTTClient
	topics    mqtt.Topics
	router    *Router
	publisher *Publisher
	state     *speaker.State
	sink      CommandSink
	qos       byte
	logger    Logger
}

// New assembles a bridge. Wire OnUpdate and OnLinkChange into the
// supervisor's callbacks before calling Start.
func New(client MQTTClient, topics mqtt.Topics, router *Router, publisher *Publisher, state *speaker.State, sink CommandSink, qos byte, logger Logger) *Bridge {
	return &Bridge{
		client:    client,
		topics:    topics,
		router:    router,
		publisher: publisher,
		state:     state,
		sink:      sink,
		qos:       qos,
		logger:    logger,
	}
}

// Start publishes the initial offline availability and subscribes to
// the command namespace. The speaker stays "offline" until the BLE
// link comes up, regardless of broker connectivity.
func (b *Bridge) Start() error {
	if err := b.client.PublishAvailability(false); err != nil {
		b.logger.Warn("initial availability publish failed", "error", err)
	}

	return b.client.Subscribe(b.topics.CommandWildcard(), b.qos, b.handleMessage)
}

// handleMessage routes one inbound command message. Errors are logged
// and the message dropped; a bad payload never reaches the device.
func (b *Bridge) handleMessage(topic string, payload []byte) error {
	action, subpath, ok := b.topics.ParseCommand(topic)
	if !ok {
		b.logger.Debug("ignoring message outside command namespace", "topic", topic)
		return nil
	}

	cmd, err := b.router.Route(action, subpath, payload)
	if err != nil {
		b.logger.Warn("command rejected",
			"action", action,
			"error", err,
		)
		return nil
	}

	b.logger.Debug("command routed",
		"action", string(cmd.Action),
		"command_id", cmd.ID,
	)

	if cmd.IsGet() {
		b.handleGet(cmd)
		return nil
	}

	if err := b.sink.Submit(cmd); err != nil {
		b.logger.Warn("command dropped",
			"action", string(cmd.Action),
			"command_id", cmd.ID,
			"error", err,
		)
	}
	return nil
}

// handleGet answers a get action from the state model when every
// covered field is already known; otherwise it submits a just-in-time
// device read and the answer is published when the update arrives.
func (b *Bridge) handleGet(cmd speaker.Command) {
	fields := fieldsForGet(cmd.Action)

	known := true
	for _, f := range fields {
		if !b.state.Known(f) {
			known = false
			break
		}
	}

	if known {
		b.publisher.PublishFields(fields)
		return
	}

	if err := b.sink.Submit(cmd); err != nil {
		b.logger.Warn("device read for get dropped",
			"action", string(cmd.Action),
			"command_id", cmd.ID,
			"error", err,
		)
	}
}

// OnUpdate merges a decoded device update into the state model and
// publishes the result. Updates correlated to a command publish their
// fields even when the value did not change, so every get and set
// produces an answer on the info topics.
func (b *Bridge) OnUpdate(update speaker.Update, commandID string) {
	changed := b.state.Apply(update)

	if commandID != "" {
		b.publisher.PublishFields(fieldsForUpdate(update.Kind))
		return
	}
	b.publisher.PublishFields(changed)
}

// OnLinkChange mirrors BLE link transitions onto the LWT topic.
func (b *Bridge) OnLinkChange(connected bool) {
	if connected {
		b.logger.Info("speaker online")
	} else {
		b.logger.Info("speaker offline")
	}

	if err := b.client.PublishAvailability(connected); err != nil {
		b.logger.Warn("availability publish failed",
			"connected", connected,
			"error", err,
		)
	}
}
