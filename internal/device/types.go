package device

import (
	"strings"
	"time"
)

// PowerState is the on/off state of a light.
type PowerState string

// Power states. A device starts Unknown and only moves to On or Off
// after a command round trip (or a state report) confirms it.
const (
	PowerOn      PowerState = "on"
	PowerOff     PowerState = "off"
	PowerUnknown PowerState = "unknown"
)

// ParsePowerState accepts on/off in any case, and the ON/OFF action
// spelling used by schedules.
func ParsePowerState(s string) (PowerState, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "on":
		return PowerOn, nil
	case "off":
		return PowerOff, nil
	default:
		return "", ErrInvalidPowerState
	}
}

// Action returns the upper-case action name ("ON"/"OFF") used in
// messages and metrics.
func (p PowerState) Action() string {
	return strings.ToUpper(string(p))
}

// Valid reports whether p is a commandable state (on or off).
func (p PowerState) Valid() bool {
	return p == PowerOn || p == PowerOff
}

// TransportKind names how a light is driven.
type TransportKind string

// Supported transports.
const (
	TransportTelnet    TransportKind = "telnet"
	TransportKasa      TransportKind = "kasa"
	TransportMQTT      TransportKind = "mqtt"
	TransportLIFX      TransportKind = "lifx"
	TransportElgato    TransportKind = "elgato"
	TransportSimulated TransportKind = "simulated"
)

// AllTransportKinds returns every supported transport.
func AllTransportKinds() []TransportKind {
	return []TransportKind{
		TransportTelnet,
		TransportKasa,
		TransportMQTT,
		TransportLIFX,
		TransportElgato,
		TransportSimulated,
	}
}

// Default telnet payloads. The ESP32 rocker controllers take a servo
// angle: 0 presses the switch on, 180 presses it off.
const (
	DefaultOnCommand  = "0"
	DefaultOffCommand = "180"
)

// Device is a configured light.
type Device struct {
	// ID identifies the device in API paths. It defaults to Address.
	ID        string        `json:"id" yaml:"id"`
	Name      string        `json:"name" yaml:"name"`
	Transport TransportKind `json:"transport" yaml:"transport"`

	// Address is an IP or hostname, optionally with a port.
	Address string `json:"address" yaml:"address"`

	// OnCommand and OffCommand are the telnet payloads.
	OnCommand  string `json:"-" yaml:"on_command"`
	OffCommand string `json:"-" yaml:"off_command"`

	State          PowerState `json:"state" yaml:"-"`
	StateUpdatedAt *time.Time `json:"state_updated_at,omitempty" yaml:"-"`
}

// applyDefaults fills ID, commands and state for a freshly loaded device.
func (d *Device) applyDefaults() {
	d.ID = strings.TrimSpace(d.ID)
	d.Name = strings.TrimSpace(d.Name)
	d.Address = strings.TrimSpace(d.Address)

	if d.ID == "" {
		d.ID = d.Address
	}
	if d.Name == "" {
		d.Name = d.ID
	}
	if d.Transport == "" {
		d.Transport = TransportTelnet
	}
	if d.OnCommand == "" {
		d.OnCommand = DefaultOnCommand
	}
	if d.OffCommand == "" {
		d.OffCommand = DefaultOffCommand
	}
	if d.State == "" {
		d.State = PowerUnknown
	}
}

// Command returns the telnet payload for the desired state.
func (d Device) Command(desired PowerState) string {
	if desired == PowerOn {
		return d.OnCommand
	}
	return d.OffCommand
}

// clone copies d. The only pointer field holds an immutable time.
func (d *Device) clone() Device {
	cpy := *d
	if d.StateUpdatedAt != nil {
		t := *d.StateUpdatedAt
		cpy.StateUpdatedAt = &t
	}
	return cpy
}

// CommandResult is the outcome of one command sent to one device.
type CommandResult struct {
	DeviceID  string        `json:"device_id"`
	Name      string        `json:"name,omitempty"`
	Transport TransportKind `json:"transport,omitempty"`
	Desired   PowerState    `json:"desired"`
	Success   bool          `json:"success"`

	// Error is the raw error text for diagnostics. Empty on success.
	Error string `json:"error,omitempty"`

	// Response is whatever the device replied, if anything.
	Response   string `json:"response,omitempty"`
	DurationMS int64  `json:"duration_ms"`

	// Err is the typed error behind Error, for errors.Is checks.
	Err error `json:"-"`
}
