package bridge

import (
	"sync"
	"testing"

	"github.com/nerrad567/stanmore-bridge/internal/ble"
	"github.com/nerrad567/stanmore-bridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/stanmore-bridge/internal/speaker"
)

type fakeSink struct {
	mu        sync.Mutex
	submitted []speaker.Command
	connected bool
	err       error
}

func (f *fakeSink) Submit(cmd speaker.Command) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.submitted = append(f.submitted, cmd)
	return nil
}

func (f *fakeSink) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeSink) commands() []speaker.Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]speaker.Command, len(f.submitted))
	copy(out, f.submitted)
	return out
}

func newTestBridge(allowPairing bool) (*Bridge, *fakePublishClient, *fakeSink, *speaker.State) {
	client := newFakePublishClient()
	sink := &fakeSink{connected: true}
	state := speaker.NewState()
	topics := mqtt.Topics{Prefix: "test/stanmore"}
	publisher := NewPublisher(client, topics, state, 1, false, nil, nopLogger{})
	b := New(client, topics, NewRouter(allowPairing), publisher, state, sink, 1, nopLogger{})
	return b, client, sink, state
}

func TestBridge_StartSubscribesAndPublishesOffline(t *testing.T) {
	b, client, _, _ := newTestBridge(false)

	if err := b.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if len(client.subs) != 1 || client.subs[0] != "test/stanmore/command/#" {
		t.Errorf("subscriptions = %v, want command wildcard", client.subs)
	}
	if len(client.avail) != 1 || client.avail[0] {
		t.Errorf("availability = %v, want initial offline", client.avail)
	}
}

func TestBridge_RoutesSetCommandToSink(t *testing.T) {
	b, _, sink, _ := newTestBridge(false)

	if err := b.handleMessage("test/stanmore/command/set_volume", []byte("15")); err != nil {
		t.Fatalf("handleMessage() error = %v", err)
	}

	cmds := sink.commands()
	if len(cmds) != 1 {
		t.Fatalf("submitted = %d commands, want 1", len(cmds))
	}
	if cmds[0].Action != speaker.ActionSetVolume || cmds[0].Volume != 15 {
		t.Errorf("submitted = %+v", cmds[0])
	}
}

func TestBridge_RejectsInvalidPayloadWithoutDeviceInteraction(t *testing.T) {
	b, _, sink, _ := newTestBridge(false)

	if err := b.handleMessage("test/stanmore/command/set_volume", []byte("99")); err != nil {
		t.Fatalf("handleMessage() error = %v", err)
	}
	if err := b.handleMessage("test/stanmore/command/enter_pairing_mode", nil); err != nil {
		t.Fatalf("handleMessage() error = %v", err)
	}

	if n := len(sink.commands()); n != 0 {
		t.Errorf("submitted = %d commands, want 0", n)
	}
}

func TestBridge_GetServedFromKnownState(t *testing.T) {
	b, client, sink, state := newTestBridge(false)

	state.Apply(speaker.Update{Kind: speaker.UpdateVolume, Volume: 21})

	if err := b.handleMessage("test/stanmore/command/get_volume", nil); err != nil {
		t.Fatalf("handleMessage() error = %v", err)
	}

	if n := len(sink.commands()); n != 0 {
		t.Errorf("known get submitted %d device reads, want 0", n)
	}
	if got, _ := client.message("test/stanmore/info/volume"); got != "21" {
		t.Errorf("info/volume = %q, want 21", got)
	}
}

func TestBridge_GetUnknownTriggersDeviceRead(t *testing.T) {
	b, client, sink, _ := newTestBridge(false)

	if err := b.handleMessage("test/stanmore/command/get_volume", nil); err != nil {
		t.Fatalf("handleMessage() error = %v", err)
	}

	cmds := sink.commands()
	if len(cmds) != 1 || cmds[0].Action != speaker.ActionGetVolume {
		t.Fatalf("submitted = %+v, want single get_volume read", cmds)
	}
	if _, ok := client.message("test/stanmore/info/volume"); ok {
		t.Error("unknown get published before the device answered")
	}

	// The read completes and the answer is published.
	b.OnUpdate(speaker.Update{Kind: speaker.UpdateVolume, Volume: 4}, cmds[0].ID)
	if got, _ := client.message("test/stanmore/info/volume"); got != "4" {
		t.Errorf("info/volume = %q, want 4", got)
	}
}

func TestBridge_GetStatusNeedsAllStatusFields(t *testing.T) {
	b, _, sink, state := newTestBridge(false)

	state.Apply(speaker.Update{Kind: speaker.UpdateStatus, Status: speaker.Status{
		Source: speaker.SourceAux,
		Play:   speaker.PlayStatusPlay,
	}})

	if err := b.handleMessage("test/stanmore/command/get_status", nil); err != nil {
		t.Fatalf("handleMessage() error = %v", err)
	}
	if n := len(sink.commands()); n != 0 {
		t.Errorf("status known but %d device reads submitted", n)
	}
}

func TestBridge_UnsolicitedUpdatePublishesChangesOnly(t *testing.T) {
	b, client, _, _ := newTestBridge(false)

	b.OnUpdate(speaker.Update{Kind: speaker.UpdateVolume, Volume: 10}, "")
	if got, _ := client.message("test/stanmore/info/volume"); got != "10" {
		t.Fatalf("info/volume = %q, want 10", got)
	}

	client.mu.Lock()
	delete(client.messages, "test/stanmore/info/volume")
	client.mu.Unlock()

	// Same value again: nothing changed, nothing published.
	b.OnUpdate(speaker.Update{Kind: speaker.UpdateVolume, Volume: 10}, "")
	if _, ok := client.message("test/stanmore/info/volume"); ok {
		t.Error("unchanged unsolicited update was republished")
	}

	// Correlated update publishes even without a change.
	b.OnUpdate(speaker.Update{Kind: speaker.UpdateVolume, Volume: 10}, "cmd-9")
	if got, _ := client.message("test/stanmore/info/volume"); got != "10" {
		t.Errorf("correlated update not published, got %q", got)
	}
}

func TestBridge_PerBandUpdateRepublishesProfileAndBand(t *testing.T) {
	b, client, _, state := newTestBridge(false)

	state.Apply(speaker.Update{Kind: speaker.UpdateEqProfile, Profile: speaker.EqProfile{5, 5, 5, 5, 5}})

	b.OnUpdate(speaker.Update{Kind: speaker.UpdateEqProfile, Profile: speaker.EqProfile{9, 5, 5, 5, 5}}, "cmd-band")

	if got, _ := client.message("test/stanmore/info/eq_profile"); got != "9 5 5 5 5" {
		t.Errorf("eq_profile = %q, want 9 5 5 5 5", got)
	}
	if got, _ := client.message("test/stanmore/info/eq_profile/160hz"); got != "9" {
		t.Errorf("eq_profile/160hz = %q, want 9", got)
	}
	if got, _ := client.message("test/stanmore/info/eq_preset"); got != "custom" {
		t.Errorf("eq_preset = %q, want custom", got)
	}
}

func TestBridge_LinkChangeDrivesAvailability(t *testing.T) {
	b, client, _, _ := newTestBridge(false)

	b.OnLinkChange(true)
	b.OnLinkChange(false)

	client.mu.Lock()
	defer client.mu.Unlock()
	if len(client.avail) != 2 || !client.avail[0] || client.avail[1] {
		t.Errorf("availability sequence = %v, want [true false]", client.avail)
	}
}

func TestBridge_DroppedCommandWhileDisconnected(t *testing.T) {
	b, _, sink, _ := newTestBridge(false)
	sink.err = ble.ErrNotConnected

	// Must not error out of the handler; drop is logged only.
	if err := b.handleMessage("test/stanmore/command/play", nil); err != nil {
		t.Fatalf("handleMessage() error = %v", err)
	}
}

func TestBridge_IgnoresForeignTopics(t *testing.T) {
	b, _, sink, _ := newTestBridge(false)

	if err := b.handleMessage("other/prefix/command/play", nil); err != nil {
		t.Fatalf("handleMessage() error = %v", err)
	}
	if err := b.handleMessage("test/stanmore/info/volume", []byte("3")); err != nil {
		t.Fatalf("handleMessage() error = %v", err)
	}
	if n := len(sink.commands()); n != 0 {
		t.Errorf("foreign topics produced %d commands", n)
	}
}
