package device

import (
	"context"
	"net"
	"strconv"
)

// Transport sends on/off commands to one kind of light.
//
// SetPower must honour ctx cancellation and deadlines. The returned
// string is the device's reply (may be empty) and is kept for diagnostics.
type Transport interface {
	Name() string
	SetPower(ctx context.Context, dev Device, desired PowerState) (string, error)
}

// Transports maps each transport kind to its implementation.
type Transports map[TransportKind]Transport

// SimulatedTransports returns a set where every kind is backed by the
// given simulated transport. Used for dev mode.
func SimulatedTransports(sim *Simulated) Transports {
	ts := make(Transports, len(AllTransportKinds()))
	for _, k := range AllTransportKinds() {
		ts[k] = sim
	}
	return ts
}

// hostPort appends defaultPort to addr unless it already carries one.
func hostPort(addr string, defaultPort int) string {
	if _, _, err := net.SplitHostPort(addr); err == nil {
		return addr
	}
	return net.JoinHostPort(addr, strconv.Itoa(defaultPort))
}
