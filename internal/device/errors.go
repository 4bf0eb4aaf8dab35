package device

import "errors"

// Domain errors for the device package.
//
//	if errors.Is(res.Err, device.ErrUnknownDevice) {
//	    // 404
//	}
var (
	// ErrUnknownDevice is returned when a device ID is not registered.
	ErrUnknownDevice = errors.New("device: unknown device")

	// ErrDuplicateDevice is returned when two configured devices share an ID.
	ErrDuplicateDevice = errors.New("device: duplicate id")

	// ErrInvalidDevice is returned when device validation fails.
	ErrInvalidDevice = errors.New("device: invalid")

	// ErrInvalidAddress is returned for an address that is neither an IP nor a hostname.
	ErrInvalidAddress = errors.New("device: invalid address")

	// ErrInvalidName is returned when a device name is too long.
	ErrInvalidName = errors.New("device: invalid name")

	// ErrInvalidPowerState is returned for a desired state other than on/off.
	ErrInvalidPowerState = errors.New("device: invalid power state")

	// ErrUnknownTransport is returned when a device names an unsupported transport.
	ErrUnknownTransport = errors.New("device: unknown transport")

	// ErrTransportUnavailable is returned when a transport's backing
	// service (for example the MQTT broker) is not configured.
	ErrTransportUnavailable = errors.New("device: transport unavailable")

	// ErrUnexpectedReply is returned when a device answers with something
	// other than an acknowledgement.
	ErrUnexpectedReply = errors.New("device: unexpected reply")
)
