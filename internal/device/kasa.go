package device

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// DefaultKasaBinary is the python-kasa command line tool.
const DefaultKasaBinary = "kasa"

// Kasa drives TP-Link Kasa plugs by running `kasa --host <ip> on|off`.
type Kasa struct {
	binary string

	// command builds the process; replaced in tests.
	command func(ctx context.Context, name string, args ...string) *exec.Cmd
}

// NewKasa returns a Kasa transport using the given binary ("kasa" if empty).
func NewKasa(binary string) *Kasa {
	if binary == "" {
		binary = DefaultKasaBinary
	}
	return &Kasa{binary: binary, command: exec.CommandContext}
}

// Name implements Transport.
func (k *Kasa) Name() string { return string(TransportKasa) }

// SetPower implements Transport. The process is killed when ctx ends.
func (k *Kasa) SetPower(ctx context.Context, dev Device, desired PowerState) (string, error) {
	if !desired.Valid() {
		return "", ErrInvalidPowerState
	}

	cmd := k.command(ctx, k.binary, "--host", dev.Address, string(desired))
	// python-kasa prints unicode status lines.
	cmd.Env = append(cmd.Environ(), "PYTHONIOENCODING=utf-8")

	out, err := cmd.CombinedOutput()
	reply := strings.TrimSpace(string(out))
	if err != nil {
		if ctx.Err() != nil {
			return reply, fmt.Errorf("kasa %s %s: %w", dev.Address, desired, ctx.Err())
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && reply != "" {
			return reply, fmt.Errorf("kasa %s %s: %w: %s", dev.Address, desired, err, lastLine(reply))
		}
		return reply, fmt.Errorf("kasa %s %s: %w", dev.Address, desired, err)
	}
	return reply, nil
}

func lastLine(s string) string {
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
