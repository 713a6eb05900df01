package ble

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/nerrad567/stanmore-bridge/internal/speaker"
)

// BlueZ D-Bus names.
const (
	bluezBusName   = "org.bluez"
	adapterPath    = "/org/bluez/hci0"
	deviceIface    = "org.bluez.Device1"
	gattCharIface  = "org.bluez.GattCharacteristic1"
	propsIface     = "org.freedesktop.DBus.Properties"
	objManagerPath = "/"
)

// resolvePollInterval is how often to check ServicesResolved while
// waiting for GATT discovery to finish after Connect.
const resolvePollInterval = 200 * time.Millisecond

// signalBufferSize is the buffer for the D-Bus signal channel.
const signalBufferSize = 32

// notifyCharacteristics are the characteristics we subscribe to on
// connect. Volume, status and equaliser changes arrive as value
// notifications; media info streams across several.
var notifyCharacteristics = []speaker.Characteristic{
	speaker.CharVolume,
	speaker.CharControl,
	speaker.CharEqualiser,
	speaker.CharMediaInfo,
}

// BluezTransport implements Transport against BlueZ's D-Bus API.
//
// Characteristic object paths are resolved by UUID after GATT discovery
// completes, and notifications arrive as PropertiesChanged signals on
// the characteristic objects.
type BluezTransport struct {
	addr       string
	devicePath dbus.ObjectPath

	conn   *dbus.Conn
	connMu sync.Mutex

	// charPaths maps characteristic UUIDs to their object paths, and
	// pathChars the reverse for notification routing.
	charPaths map[speaker.Characteristic]dbus.ObjectPath
	pathChars map[dbus.ObjectPath]speaker.Characteristic
	charMu    sync.RWMutex

	onNotify     func(speaker.Characteristic, []byte)
	onDisconnect func(error)
	callbackMu   sync.RWMutex

	// deliberate suppresses the disconnect callback for disconnects we
	// initiate ourselves (shutdown, pairing exit).
	deliberate atomic.Bool

	signals chan *dbus.Signal
	done    chan struct{}
	wg      sync.WaitGroup
	once    sync.Once

	logger Logger
}

var _ Transport = (*BluezTransport)(nil)

// NewBluezTransport creates a transport for the speaker at the given
// Bluetooth address (e.g. "AA:BB:CC:DD:EE:FF"). It connects to the
// system bus immediately; the BLE link itself is established by
// Connect.
func NewBluezTransport(addr string, logger Logger) (*BluezTransport, error) {
	conn, err := dbus.SystemBus()
	if err != nil {
		return nil, fmt.Errorf("%w: system bus: %w", ErrConnectionFailed, err)
	}

	t := &BluezTransport{
		addr:       addr,
		devicePath: deviceObjectPath(addr),
		conn:       conn,
		charPaths:  make(map[speaker.Characteristic]dbus.ObjectPath),
		pathChars:  make(map[dbus.ObjectPath]speaker.Characteristic),
		signals:    make(chan *dbus.Signal, signalBufferSize),
		done:       make(chan struct{}),
		logger:     logger,
	}

	if err := conn.AddMatchSignal(
		dbus.WithMatchInterface(propsIface),
		dbus.WithMatchMember("PropertiesChanged"),
		dbus.WithMatchPathNamespace(t.devicePath),
	); err != nil {
		return nil, fmt.Errorf("%w: add signal match: %w", ErrConnectionFailed, err)
	}
	conn.Signal(t.signals)

	t.wg.Add(1)
	go t.signalLoop()

	return t, nil
}

// deviceObjectPath converts a Bluetooth address like "AA:BB:CC:DD:EE:FF"
// to "/org/bluez/hci0/dev_AA_BB_CC_DD_EE_FF".
func deviceObjectPath(addr string) dbus.ObjectPath {
	escaped := strings.ReplaceAll(strings.ToUpper(addr), ":", "_")
	return dbus.ObjectPath(adapterPath + "/dev_" + escaped)
}

// normalizeUUID strips separators and lowercases so the speaker's UUID
// grouping and BlueZ's canonical form compare equal.
func normalizeUUID(uuid string) string {
	return strings.ToLower(strings.ReplaceAll(uuid, "-", ""))
}

// SetOnNotify registers the notification callback.
func (t *BluezTransport) SetOnNotify(cb func(speaker.Characteristic, []byte)) {
	t.callbackMu.Lock()
	t.onNotify = cb
	t.callbackMu.Unlock()
}

// SetOnDisconnect registers the link-loss callback.
func (t *BluezTransport) SetOnDisconnect(cb func(error)) {
	t.callbackMu.Lock()
	t.onDisconnect = cb
	t.callbackMu.Unlock()
}

// Connect establishes the BLE link, waits for GATT discovery, resolves
// the speaker's characteristics and subscribes to notifications.
func (t *BluezTransport) Connect(ctx context.Context) error {
	t.deliberate.Store(false)

	dev := t.conn.Object(bluezBusName, t.devicePath)
	if call := dev.CallWithContext(ctx, deviceIface+".Connect", 0); call.Err != nil {
		return fmt.Errorf("%w: %w", ErrConnectionFailed, call.Err)
	}

	if err := t.waitServicesResolved(ctx); err != nil {
		return err
	}

	if err := t.resolveCharacteristics(ctx); err != nil {
		return err
	}

	for _, char := range notifyCharacteristics {
		if err := t.startNotify(ctx, char); err != nil {
			return err
		}
	}

	return nil
}

// waitServicesResolved polls the ServicesResolved device property until
// GATT discovery completes or ctx expires.
func (t *BluezTransport) waitServicesResolved(ctx context.Context) error {
	dev := t.conn.Object(bluezBusName, t.devicePath)
	for {
		var v dbus.Variant
		err := dev.CallWithContext(ctx, propsIface+".Get", 0, deviceIface, "ServicesResolved").Store(&v)
		if err == nil {
			if resolved, ok := v.Value().(bool); ok && resolved {
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: waiting for service discovery: %w", ErrConnectionFailed, ctx.Err())
		case <-time.After(resolvePollInterval):
		}
	}
}

// resolveCharacteristics walks the object tree under the device and
// maps the speaker's characteristic UUIDs to their object paths.
func (t *BluezTransport) resolveCharacteristics(ctx context.Context) error {
	var objects map[dbus.ObjectPath]map[string]map[string]dbus.Variant
	err := t.conn.Object(bluezBusName, objManagerPath).
		CallWithContext(ctx, "org.freedesktop.DBus.ObjectManager.GetManagedObjects", 0).
		Store(&objects)
	if err != nil {
		return fmt.Errorf("%w: managed objects: %w", ErrConnectionFailed, err)
	}

	wanted := map[string]speaker.Characteristic{}
	for _, char := range []speaker.Characteristic{
		speaker.CharVolume, speaker.CharControl, speaker.CharLedBrightness,
		speaker.CharDeviceName, speaker.CharEqualiser, speaker.CharPairing,
		speaker.CharMediaInfo,
	} {
		wanted[normalizeUUID(string(char))] = char
	}

	t.charMu.Lock()
	defer t.charMu.Unlock()
	t.charPaths = make(map[speaker.Characteristic]dbus.ObjectPath)
	t.pathChars = make(map[dbus.ObjectPath]speaker.Characteristic)

	prefix := string(t.devicePath) + "/"
	for path, ifaces := range objects {
		if !strings.HasPrefix(string(path), prefix) {
			continue
		}
		props, ok := ifaces[gattCharIface]
		if !ok {
			continue
		}
		uuid, ok := props["UUID"].Value().(string)
		if !ok {
			continue
		}
		if char, ok := wanted[normalizeUUID(uuid)]; ok {
			t.charPaths[char] = path
			t.pathChars[path] = char
		}
	}

	for uuid, char := range wanted {
		if _, ok := t.charPaths[char]; !ok {
			return fmt.Errorf("%w: uuid %s", ErrCharacteristicNotFound, uuid)
		}
	}
	return nil
}

func (t *BluezTransport) charPath(char speaker.Characteristic) (dbus.ObjectPath, error) {
	t.charMu.RLock()
	defer t.charMu.RUnlock()
	path, ok := t.charPaths[char]
	if !ok {
		return "", fmt.Errorf("%w: uuid %s", ErrCharacteristicNotFound, char)
	}
	return path, nil
}

// startNotify subscribes to value notifications on a characteristic.
func (t *BluezTransport) startNotify(ctx context.Context, char speaker.Characteristic) error {
	path, err := t.charPath(char)
	if err != nil {
		return err
	}
	obj := t.conn.Object(bluezBusName, path)
	if call := obj.CallWithContext(ctx, gattCharIface+".StartNotify", 0); call.Err != nil {
		return fmt.Errorf("%w: start notify %s: %w", ErrConnectionFailed, char, call.Err)
	}
	return nil
}

// Write writes a payload to a characteristic with a write-request
// (acknowledged) operation.
func (t *BluezTransport) Write(ctx context.Context, char speaker.Characteristic, payload []byte) error {
	path, err := t.charPath(char)
	if err != nil {
		return err
	}

	options := map[string]dbus.Variant{"type": dbus.MakeVariant("request")}
	obj := t.conn.Object(bluezBusName, path)
	if call := obj.CallWithContext(ctx, gattCharIface+".WriteValue", 0, payload, options); call.Err != nil {
		return fmt.Errorf("%w: %s: %w", ErrWriteFailed, char, call.Err)
	}
	return nil
}

// Read reads the current value of a characteristic.
func (t *BluezTransport) Read(ctx context.Context, char speaker.Characteristic) ([]byte, error) {
	path, err := t.charPath(char)
	if err != nil {
		return nil, err
	}

	var data []byte
	options := map[string]dbus.Variant{}
	obj := t.conn.Object(bluezBusName, path)
	if err := obj.CallWithContext(ctx, gattCharIface+".ReadValue", 0, options).Store(&data); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrReadFailed, char, err)
	}
	return data, nil
}

// Disconnect drops the BLE link deliberately. The disconnect callback
// is suppressed.
func (t *BluezTransport) Disconnect() error {
	t.deliberate.Store(true)

	dev := t.conn.Object(bluezBusName, t.devicePath)
	if call := dev.Call(deviceIface+".Disconnect", 0); call.Err != nil {
		return fmt.Errorf("ble: disconnect: %w", call.Err)
	}
	return nil
}

// Close stops signal handling and releases the bus connection.
func (t *BluezTransport) Close() error {
	t.once.Do(func() {
		close(t.done)
		t.conn.RemoveSignal(t.signals)
	})
	t.wg.Wait()
	t.connMu.Lock()
	defer t.connMu.Unlock()
	return t.conn.Close()
}

// signalLoop routes PropertiesChanged signals into notification and
// disconnect callbacks.
func (t *BluezTransport) signalLoop() {
	defer t.wg.Done()

	for {
		select {
		case <-t.done:
			return
		case sig, ok := <-t.signals:
			if !ok {
				return
			}
			t.handleSignal(sig)
		}
	}
}

func (t *BluezTransport) handleSignal(sig *dbus.Signal) {
	if sig == nil || sig.Name != propsIface+".PropertiesChanged" || len(sig.Body) < 2 {
		return
	}

	iface, ok := sig.Body[0].(string)
	if !ok {
		return
	}
	changed, ok := sig.Body[1].(map[string]dbus.Variant)
	if !ok {
		return
	}

	switch iface {
	case gattCharIface:
		t.handleValueChange(sig.Path, changed)
	case deviceIface:
		t.handleDeviceChange(sig.Path, changed)
	}
}

func (t *BluezTransport) handleValueChange(path dbus.ObjectPath, changed map[string]dbus.Variant) {
	raw, ok := changed["Value"]
	if !ok {
		return
	}
	value, ok := raw.Value().([]byte)
	if !ok {
		return
	}

	t.charMu.RLock()
	char, known := t.pathChars[path]
	t.charMu.RUnlock()
	if !known {
		return
	}

	t.callbackMu.RLock()
	cb := t.onNotify
	t.callbackMu.RUnlock()
	if cb != nil {
		cb(char, value)
	}
}

func (t *BluezTransport) handleDeviceChange(path dbus.ObjectPath, changed map[string]dbus.Variant) {
	if path != t.devicePath {
		return
	}
	raw, ok := changed["Connected"]
	if !ok {
		return
	}
	connected, ok := raw.Value().(bool)
	if !ok || connected {
		return
	}
	if t.deliberate.Load() {
		return
	}

	t.callbackMu.RLock()
	cb := t.onDisconnect
	t.callbackMu.RUnlock()
	if cb != nil {
		cb(fmt.Errorf("%w: link lost", ErrNotConnected))
	}
}
