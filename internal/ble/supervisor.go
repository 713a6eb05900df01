package ble

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/stanmore-bridge/internal/speaker"
)

// Reconnect backoff defaults.
const (
	defaultInitialBackoff = 5 * time.Second
	defaultMaxBackoff     = 2 * time.Minute
	backoffFactor         = 1.5
)

// settleDelay is how long to wait after a state-changing write before
// reading the characteristic back. The speaker applies writes
// asynchronously and reports stale values when read immediately.
const settleDelay = 500 * time.Millisecond

// Queue sizes. Commands beyond opQueueSize are rejected rather than
// queued indefinitely; notification bursts beyond notifyQueueSize are
// dropped with a warning.
const (
	opQueueSize     = 16
	notifyQueueSize = 32
)

// opTimeout bounds a single characteristic read or write.
const opTimeout = 10 * time.Second

// connectTimeout bounds one connection attempt including GATT
// discovery.
const connectTimeout = 30 * time.Second

// readbackChars maps state-changing actions to the characteristic read
// back after the settle delay to confirm the device applied the write.
// Transport actions (play, pause, next, previous) have no readback;
// their effect arrives as a status notification.
var readbackChars = map[speaker.Action]speaker.Characteristic{
	speaker.ActionSetVolume:           speaker.CharVolume,
	speaker.ActionSetEqPreset:         speaker.CharEqualiser,
	speaker.ActionSetEqProfile:        speaker.CharEqualiser,
	speaker.ActionSetEqBand:           speaker.CharEqualiser,
	speaker.ActionSetDeviceName:       speaker.CharDeviceName,
	speaker.ActionSetLedBrightness:    speaker.CharLedBrightness,
	speaker.ActionSetInteractionSound: speaker.CharControl,
	speaker.ActionSetSource:           speaker.CharControl,
}

// sweepChars are read on every fresh connection to seed the state
// model before any notification arrives.
var sweepChars = []speaker.Characteristic{
	speaker.CharControl,
	speaker.CharVolume,
	speaker.CharEqualiser,
	speaker.CharDeviceName,
	speaker.CharLedBrightness,
}

// Callbacks are invoked by the supervisor from its session goroutine.
// They must not block; hand off to a channel or goroutine if the work
// is slow.
type Callbacks struct {
	// OnUpdate delivers a decoded device update. commandID is the ID of
	// the command that triggered it, or "" for unsolicited
	// notifications and the initial sweep.
	OnUpdate func(update speaker.Update, commandID string)

	// OnLinkChange reports BLE link transitions.
	OnLinkChange func(connected bool)

	// OnPairingExit fires after a pairing-mode command completed and
	// the link was dropped deliberately. The supervisor does not
	// reconnect afterwards.
	OnPairingExit func()
}

// Supervisor owns the BLE link: it connects with backoff, serialises
// all characteristic traffic through a single session goroutine, and
// reconnects on link loss. At most one operation is in flight at any
// time, and notifications are decoded on the same goroutine, so the
// device never sees interleaved traffic.
type Supervisor struct {
	transport Transport
	callbacks Callbacks
	logger    Logger

	initialBackoff time.Duration
	maxBackoff     time.Duration

	ops      chan speaker.Command
	notifies chan rawNotify
	linkLost chan error

	assembler speaker.MediaAssembler

	connected bool
	connMu    sync.RWMutex

	done chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

type rawNotify struct {
	char speaker.Characteristic
	data []byte
}

// NewSupervisor wires a supervisor to a transport. Run must be called
// to start the connection loop.
func NewSupervisor(transport Transport, callbacks Callbacks, logger Logger) *Supervisor {
	s := &Supervisor{
		transport:      transport,
		callbacks:      callbacks,
		logger:         logger,
		initialBackoff: defaultInitialBackoff,
		maxBackoff:     defaultMaxBackoff,
		ops:            make(chan speaker.Command, opQueueSize),
		notifies:       make(chan rawNotify, notifyQueueSize),
		linkLost:       make(chan error, 1),
		done:           make(chan struct{}),
	}

	transport.SetOnNotify(s.enqueueNotify)
	transport.SetOnDisconnect(s.signalLinkLost)

	return s
}

// enqueueNotify hands a transport notification to the session
// goroutine. Bursts beyond the buffer are dropped; the speaker resends
// state on the next read or notification.
func (s *Supervisor) enqueueNotify(char speaker.Characteristic, data []byte) {
	buf := make([]byte, len(data))
	copy(buf, data)

	select {
	case s.notifies <- rawNotify{char: char, data: buf}:
	default:
		s.logger.Warn("notification dropped, queue full", "characteristic", string(char))
	}
}

func (s *Supervisor) signalLinkLost(err error) {
	select {
	case s.linkLost <- err:
	default:
	}
}

// Connected reports whether the BLE link is currently up.
func (s *Supervisor) Connected() bool {
	s.connMu.RLock()
	defer s.connMu.RUnlock()
	return s.connected
}

func (s *Supervisor) setConnected(v bool) {
	s.connMu.Lock()
	s.connected = v
	s.connMu.Unlock()

	if s.callbacks.OnLinkChange != nil {
		s.callbacks.OnLinkChange(v)
	}
}

// Submit queues a command for execution. Commands are rejected, not
// queued, while the link is down:
//
// Returns:
//   - error: ErrNotConnected while disconnected, ErrQueueFull when the
//     queue is saturated, ErrShuttingDown after Close
func (s *Supervisor) Submit(cmd speaker.Command) error {
	select {
	case <-s.done:
		return ErrShuttingDown
	default:
	}

	if !s.Connected() {
		return fmt.Errorf("%w: command %s dropped", ErrNotConnected, cmd.Action)
	}

	select {
	case s.ops <- cmd:
		return nil
	default:
		return fmt.Errorf("%w: command %s dropped", ErrQueueFull, cmd.Action)
	}
}

// Run connects to the speaker and services commands and notifications
// until ctx is cancelled, Close is called, or a pairing command ends
// the session. It blocks; call it from its own goroutine or use it as
// the main loop.
func (s *Supervisor) Run(ctx context.Context) error {
	backoff := s.initialBackoff

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.done:
			return nil
		default:
		}

		connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
		err := s.transport.Connect(connectCtx)
		cancel()
		if err != nil {
			s.logger.Warn("connection attempt failed",
				"error", err,
				"retry_in", backoff.String(),
			)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-s.done:
				return nil
			case <-time.After(backoff):
			}
			backoff = nextBackoff(backoff, s.maxBackoff)
			continue
		}

		s.logger.Info("speaker connected")
		backoff = s.initialBackoff
		s.drainStale()
		s.setConnected(true)

		s.initialSweep(ctx)

		terminal := s.session(ctx)

		s.setConnected(false)
		s.assembler.Reset()
		s.drainStale()

		if terminal {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.logger.Warn("speaker link lost, reconnecting")
	}
}

// drainStale discards notifications, link-lost signals, and queued
// commands left over from a previous session. A command accepted before
// the link dropped carries intent formed against stale state, so it is
// reported as lost rather than replayed against the next session.
func (s *Supervisor) drainStale() {
	for {
		select {
		case <-s.notifies:
		case <-s.linkLost:
		case cmd := <-s.ops:
			s.logger.Warn("dropping command queued before link loss",
				"action", string(cmd.Action),
				"command_id", cmd.ID,
			)
		default:
			return
		}
	}
}

// initialSweep reads every stateful characteristic once so the state
// model is seeded before any command or notification is processed.
// Individual read failures are logged and skipped; a notification will
// fill the gap later.
func (s *Supervisor) initialSweep(ctx context.Context) {
	for _, char := range sweepChars {
		update, err := s.readAndDecode(ctx, char)
		if err != nil {
			s.logger.Warn("initial read failed",
				"characteristic", string(char),
				"error", err,
			)
			continue
		}
		s.emit(update, "")
	}
}

// session services the connected link. Returns true when the session
// ended terminally (pairing mode) and the supervisor must not
// reconnect.
func (s *Supervisor) session(ctx context.Context) bool {
	for {
		// Link loss wins over queued work: once the transport reports
		// the link down, commands accepted earlier must not run.
		select {
		case err := <-s.linkLost:
			s.logger.Debug("transport reported link loss", "error", err)
			return false
		default:
		}

		select {
		case <-ctx.Done():
			s.deliberateDisconnect()
			return false
		case <-s.done:
			s.deliberateDisconnect()
			return false
		case err := <-s.linkLost:
			s.logger.Debug("transport reported link loss", "error", err)
			return false
		case n := <-s.notifies:
			s.handleNotify(n)
		case cmd := <-s.ops:
			if s.execute(ctx, cmd) {
				return true
			}
		}
	}
}

func (s *Supervisor) deliberateDisconnect() {
	if err := s.transport.Disconnect(); err != nil {
		s.logger.Debug("disconnect failed", "error", err)
	}
}

// handleNotify decodes an unsolicited notification and applies it.
// Media-info payloads stream across notifications and go through the
// assembler.
func (s *Supervisor) handleNotify(n rawNotify) {
	if n.char == speaker.CharMediaInfo {
		info, complete := s.assembler.Feed(n.data)
		if complete {
			s.emit(speaker.Update{Kind: speaker.UpdateMedia, Media: info}, "")
		}
		return
	}

	update, err := speaker.Decode(n.char, n.data)
	if err != nil {
		s.logger.Warn("malformed notification ignored",
			"characteristic", string(n.char),
			"error", err,
		)
		return
	}
	s.emit(update, "")
}

// execute runs one command against the device. Returns true when the
// command ends the session terminally (pairing mode).
func (s *Supervisor) execute(ctx context.Context, cmd speaker.Command) bool {
	switch {
	case cmd.IsGet():
		s.executeGet(ctx, cmd)
	case cmd.Action == speaker.ActionSetEqBand:
		s.executeSetBand(ctx, cmd)
	case cmd.Action == speaker.ActionEnterPairingMode:
		return s.executePairing(ctx, cmd)
	default:
		s.executeWrite(ctx, cmd)
	}
	return false
}

func (s *Supervisor) executeGet(ctx context.Context, cmd speaker.Command) {
	char, ok := speaker.CharacteristicForGet(cmd.Action)
	if !ok {
		s.logger.Error("get action has no characteristic", "action", string(cmd.Action))
		return
	}

	update, err := s.readAndDecode(ctx, char)
	if err != nil {
		s.logger.Warn("read failed",
			"action", string(cmd.Action),
			"command_id", cmd.ID,
			"error", err,
		)
		return
	}
	s.emit(update, cmd.ID)
}

func (s *Supervisor) executeWrite(ctx context.Context, cmd speaker.Command) {
	frame, err := speaker.Encode(cmd)
	if err != nil {
		s.logger.Error("command failed to encode",
			"action", string(cmd.Action),
			"command_id", cmd.ID,
			"error", err,
		)
		return
	}

	if err := s.write(ctx, frame.Char, frame.Payload); err != nil {
		s.logger.Warn("write failed",
			"action", string(cmd.Action),
			"command_id", cmd.ID,
			"error", err,
		)
		return
	}

	s.readback(ctx, cmd)
}

// executeSetBand adjusts a single equaliser band with a read-modify-
// write, since the device only accepts full five-band profiles.
func (s *Supervisor) executeSetBand(ctx context.Context, cmd speaker.Command) {
	update, err := s.readAndDecode(ctx, speaker.CharEqualiser)
	if err != nil {
		s.logger.Warn("equaliser read failed",
			"command_id", cmd.ID,
			"error", err,
		)
		return
	}

	profile := update.Profile
	if cmd.Band < 0 || cmd.Band >= speaker.NumBands {
		s.logger.Error("band index out of range",
			"band", cmd.Band,
			"command_id", cmd.ID,
		)
		return
	}
	profile[cmd.Band] = cmd.Level

	frame, err := speaker.Encode(speaker.Command{
		Action:  speaker.ActionSetEqProfile,
		Profile: profile,
	})
	if err != nil {
		s.logger.Error("band command failed to encode",
			"command_id", cmd.ID,
			"error", err,
		)
		return
	}

	if err := s.write(ctx, frame.Char, frame.Payload); err != nil {
		s.logger.Warn("equaliser write failed",
			"command_id", cmd.ID,
			"error", err,
		)
		return
	}

	s.readback(ctx, cmd)
}

// executePairing writes the pairing trigger and drops the link. The
// write itself makes the speaker discoverable and tears down the BLE
// session, so the supervisor treats pairing as terminal. Returns true
// unless the write failed before reaching the device.
func (s *Supervisor) executePairing(ctx context.Context, cmd speaker.Command) bool {
	frame, err := speaker.Encode(cmd)
	if err != nil {
		s.logger.Error("pairing command failed to encode",
			"command_id", cmd.ID,
			"error", err,
		)
		return false
	}

	if err := s.write(ctx, frame.Char, frame.Payload); err != nil {
		s.logger.Warn("pairing write failed",
			"command_id", cmd.ID,
			"error", err,
		)
		return false
	}

	s.logger.Info("pairing mode entered, releasing speaker", "command_id", cmd.ID)
	s.deliberateDisconnect()

	if s.callbacks.OnPairingExit != nil {
		s.callbacks.OnPairingExit()
	}
	return true
}

// readback re-reads the characteristic a set action changed, after a
// settle delay, and emits the confirmed value tagged with the command
// ID.
func (s *Supervisor) readback(ctx context.Context, cmd speaker.Command) {
	char, ok := readbackChars[cmd.Action]
	if !ok {
		return
	}

	select {
	case <-ctx.Done():
		return
	case <-time.After(settleDelay):
	}

	update, err := s.readAndDecode(ctx, char)
	if err != nil {
		s.logger.Warn("readback failed",
			"action", string(cmd.Action),
			"command_id", cmd.ID,
			"error", err,
		)
		return
	}
	s.emit(update, cmd.ID)
}

func (s *Supervisor) readAndDecode(ctx context.Context, char speaker.Characteristic) (speaker.Update, error) {
	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	data, err := s.transport.Read(opCtx, char)
	if err != nil {
		return speaker.Update{}, err
	}
	return speaker.Decode(char, data)
}

func (s *Supervisor) write(ctx context.Context, char speaker.Characteristic, payload []byte) error {
	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	return s.transport.Write(opCtx, char, payload)
}

func (s *Supervisor) emit(update speaker.Update, commandID string) {
	if update.Kind == speaker.UpdateNone {
		return
	}
	if s.callbacks.OnUpdate != nil {
		s.callbacks.OnUpdate(update, commandID)
	}
}

// Close stops the supervisor and releases the transport. Safe to call
// more than once.
func (s *Supervisor) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.transport.Close()
	})
	if err != nil && !errors.Is(err, ErrNotConnected) {
		return err
	}
	return nil
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := time.Duration(float64(current) * backoffFactor)
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}
