package device

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/mdlayher/keylight"
)

// DefaultElgatoPort is the Elgato Key Light HTTP API port.
const DefaultElgatoPort = 9123

// keylightClient is the part of *keylight.Client the transport uses.
type keylightClient interface {
	Lights(ctx context.Context) ([]*keylight.Light, error)
	SetLights(ctx context.Context, lights []*keylight.Light) error
}

// Elgato drives Elgato Key Lights through their HTTP API. Clients are
// created lazily per address and reused.
type Elgato struct {
	mu      sync.Mutex
	clients map[string]keylightClient

	// newClient is replaced in tests.
	newClient func(addr string) (keylightClient, error)
}

// NewElgato returns an Elgato transport.
func NewElgato() *Elgato {
	return &Elgato{
		clients: make(map[string]keylightClient),
		newClient: func(addr string) (keylightClient, error) {
			return keylight.NewClient(addr, nil)
		},
	}
}

// Name implements Transport.
func (e *Elgato) Name() string { return string(TransportElgato) }

// SetPower implements Transport. It reads the current light settings and
// flips only the On flag so brightness and temperature are preserved.
func (e *Elgato) SetPower(ctx context.Context, dev Device, desired PowerState) (string, error) {
	if !desired.Valid() {
		return "", ErrInvalidPowerState
	}

	client, err := e.client(dev.Address)
	if err != nil {
		return "", err
	}

	lights, err := client.Lights(ctx)
	if err != nil {
		// Drop the cached client so the next call reconnects.
		e.forget(dev.Address)
		return "", fmt.Errorf("elgato %s lights: %w", dev.Address, err)
	}
	if len(lights) == 0 {
		return "", fmt.Errorf("%w: elgato %s reports no lights", ErrUnexpectedReply, dev.Address)
	}

	on := desired == PowerOn
	for _, l := range lights {
		l.On = on
	}
	if err := client.SetLights(ctx, lights); err != nil {
		e.forget(dev.Address)
		return "", fmt.Errorf("elgato %s set lights: %w", dev.Address, err)
	}
	return fmt.Sprintf("%d light(s) %s", len(lights), desired), nil
}

func (e *Elgato) client(address string) (keylightClient, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if c, ok := e.clients[address]; ok {
		return c, nil
	}
	c, err := e.newClient(elgatoURL(address))
	if err != nil {
		return nil, fmt.Errorf("elgato client %s: %w", address, err)
	}
	e.clients[address] = c
	return c, nil
}

func (e *Elgato) forget(address string) {
	e.mu.Lock()
	delete(e.clients, address)
	e.mu.Unlock()
}

func elgatoURL(address string) string {
	if strings.HasPrefix(address, "http://") || strings.HasPrefix(address, "https://") {
		return address
	}
	return "http://" + hostPort(address, DefaultElgatoPort)
}
