package mqtt

import "strings"

// Availability payloads published on the LWT topic. The broker
// publishes PayloadOffline via the will when the bridge dies; the
// bridge publishes them itself on BLE link transitions.
const (
	PayloadOnline  = "online"
	PayloadOffline = "offline"
)

// Topics builds bridge topic names under a configurable prefix.
//
// The bridge uses three namespaces:
//
//	{prefix}/command/{action}[/{subpath}]  inbound commands
//	{prefix}/info/{field}[/{subpath}]      outbound state
//	{prefix}/lwt                           availability
//
// Using these helpers keeps topic naming consistent across the
// codebase.
type Topics struct {
	Prefix string
}

// Command returns the topic a single command action is received on.
//
// Example: marshall/stanmore2/command/set_volume
func (t Topics) Command(action string) string {
	return t.Prefix + "/command/" + action
}

// CommandWildcard returns the subscription pattern covering every
// command topic, including subpaths such as per-band equaliser sets.
//
// Pattern: marshall/stanmore2/command/#
func (t Topics) CommandWildcard() string {
	return t.Prefix + "/command/#"
}

// Info returns the topic a state field is published on. Optional
// subpath segments are appended, e.g. per-band equaliser levels.
//
// Example: marshall/stanmore2/info/eq_profile/160hz
func (t Topics) Info(field string, subpath ...string) string {
	parts := append([]string{t.Prefix, "info", field}, subpath...)
	return strings.Join(parts, "/")
}

// LWT returns the availability topic.
//
// Example: marshall/stanmore2/lwt
func (t Topics) LWT() string {
	return t.Prefix + "/lwt"
}

// ParseCommand splits a received command topic into action and
// subpath. Returns ok=false when the topic is not under this prefix's
// command namespace or names no action.
func (t Topics) ParseCommand(topic string) (action, subpath string, ok bool) {
	base := t.Prefix + "/command/"
	rest, found := strings.CutPrefix(topic, base)
	if !found || rest == "" {
		return "", "", false
	}
	action, subpath, _ = strings.Cut(rest, "/")
	if action == "" {
		return "", "", false
	}
	return action, subpath, true
}
