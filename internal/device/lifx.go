package device

import (
	"context"
	"fmt"
	"time"

	"go.yhsif.com/lifxlan"
	"go.yhsif.com/lifxlan/light"
)

const (
	// DefaultLIFXPort is the LIFX LAN protocol UDP port.
	DefaultLIFXPort = 56700

	lifxTransition = 200 * time.Millisecond
)

// LIFX drives LIFX bulbs over the LAN protocol. Bulbs are addressed by
// their configured IP; there is no broadcast discovery.
type LIFX struct{}

// NewLIFX returns a LIFX transport.
func NewLIFX() *LIFX { return &LIFX{} }

// Name implements Transport.
func (l *LIFX) Name() string { return string(TransportLIFX) }

// SetPower implements Transport. It waits for the bulb to acknowledge.
func (l *LIFX) SetPower(ctx context.Context, dev Device, desired PowerState) (string, error) {
	power, err := lifxPower(desired)
	if err != nil {
		return "", err
	}

	raw := lifxlan.NewDevice(hostPort(dev.Address, DefaultLIFXPort), lifxlan.ServiceUDP, lifxlan.AllDevices)
	ld, err := light.Wrap(ctx, raw, true)
	if err != nil {
		return "", fmt.Errorf("lifx %s: %w", dev.Address, err)
	}

	conn, err := ld.Dial()
	if err != nil {
		return "", fmt.Errorf("lifx dial %s: %w", dev.Address, err)
	}
	defer conn.Close()

	if err := ld.SetLightPower(ctx, conn, power, lifxTransition, true); err != nil {
		return "", fmt.Errorf("lifx %s set power: %w", dev.Address, err)
	}
	return "ack", nil
}

func lifxPower(desired PowerState) (lifxlan.Power, error) {
	switch desired {
	case PowerOn:
		return lifxlan.PowerOn, nil
	case PowerOff:
		return lifxlan.PowerOff, nil
	default:
		return 0, ErrInvalidPowerState
	}
}
