package device

import (
	"fmt"
	"net"
	"regexp"
	"strconv"
)

const (
	maxNameLength    = 100
	maxIDLength      = 128
	maxCommandLength = 64
)

// hostnameRegex matches RFC 1123 hostnames.
var hostnameRegex = regexp.MustCompile(`^([a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)(\.[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*$`)

var validTransports map[TransportKind]struct{}

func init() {
	validTransports = make(map[TransportKind]struct{}, len(AllTransportKinds()))
	for _, k := range AllTransportKinds() {
		validTransports[k] = struct{}{}
	}
}

// ValidTransport reports whether k is a supported transport.
func ValidTransport(k TransportKind) bool {
	_, ok := validTransports[k]
	return ok
}

// ValidateDevice checks a device after defaults have been applied.
func ValidateDevice(d *Device) error {
	if d == nil {
		return ErrInvalidDevice
	}
	if d.ID == "" || len(d.ID) > maxIDLength {
		return fmt.Errorf("%w: id must be 1-%d characters", ErrInvalidDevice, maxIDLength)
	}
	if len(d.Name) > maxNameLength {
		return fmt.Errorf("%w: %q exceeds %d characters", ErrInvalidName, d.Name, maxNameLength)
	}
	if !ValidTransport(d.Transport) {
		return fmt.Errorf("%w: %q", ErrUnknownTransport, d.Transport)
	}
	if len(d.OnCommand) > maxCommandLength || len(d.OffCommand) > maxCommandLength {
		return fmt.Errorf("%w: commands must be at most %d characters", ErrInvalidDevice, maxCommandLength)
	}

	// MQTT devices are addressed by topic, so the address is optional.
	if d.Transport == TransportMQTT && d.Address == "" {
		return nil
	}
	return ValidateAddress(d.Address)
}

// ValidateAddress accepts an IP or hostname with an optional port.
func ValidateAddress(addr string) error {
	if addr == "" {
		return fmt.Errorf("%w: empty", ErrInvalidAddress)
	}

	host := addr
	if h, p, err := net.SplitHostPort(addr); err == nil {
		port, err := strconv.Atoi(p)
		if err != nil || port < 1 || port > 65535 {
			return fmt.Errorf("%w: bad port in %q", ErrInvalidAddress, addr)
		}
		host = h
	}

	if net.ParseIP(host) != nil {
		return nil
	}
	if len(host) <= 253 && hostnameRegex.MatchString(host) {
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidAddress, addr)
}

// ValidateIP accepts only a literal IPv4 or IPv6 address.
func ValidateIP(addr string) error {
	if net.ParseIP(addr) == nil {
		return fmt.Errorf("%w: %q is not an IP address", ErrInvalidAddress, addr)
	}
	return nil
}
