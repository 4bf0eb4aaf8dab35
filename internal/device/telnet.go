package device

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
)

const (
	// DefaultTelnetPort is where the ESP32 rocker controllers listen.
	DefaultTelnetPort = 23

	// defaultTelnetTimeout applies when ctx carries no deadline.
	defaultTelnetTimeout = 5 * time.Second

	// maxReplyLength bounds the single reply line read from a device.
	maxReplyLength = 256
)

// Telnet drives lights that accept a line-based command over raw TCP:
// the command is written followed by a newline, and one reply line is read.
type Telnet struct {
	port    int
	timeout time.Duration
	dialer  net.Dialer
}

// NewTelnet returns a telnet transport. A zero port or timeout selects
// the defaults (23 and 5s).
func NewTelnet(port int, timeout time.Duration) *Telnet {
	if port == 0 {
		port = DefaultTelnetPort
	}
	if timeout <= 0 {
		timeout = defaultTelnetTimeout
	}
	return &Telnet{port: port, timeout: timeout}
}

// Name implements Transport.
func (t *Telnet) Name() string { return string(TransportTelnet) }

// SetPower implements Transport.
func (t *Telnet) SetPower(ctx context.Context, dev Device, desired PowerState) (string, error) {
	if !desired.Valid() {
		return "", ErrInvalidPowerState
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	addr := hostPort(dev.Address, t.port)
	conn, err := t.dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return "", ctxErr(ctx, err)
	}
	defer conn.Close()

	// Unblock reads and writes as soon as ctx ends.
	deadline, _ := ctx.Deadline()
	if err := conn.SetDeadline(deadline); err != nil {
		return "", err
	}
	stop := context.AfterFunc(ctx, func() {
		conn.SetDeadline(time.Now()) //nolint:errcheck // Best effort wake-up
	})
	defer stop()

	if _, err := fmt.Fprintf(conn, "%s\n", dev.Command(desired)); err != nil {
		return "", fmt.Errorf("writing command to %s: %w", addr, ctxErr(ctx, err))
	}

	reply, err := bufio.NewReaderSize(conn, maxReplyLength).ReadSlice('\n')
	if errors.Is(err, bufio.ErrBufferFull) {
		return "", fmt.Errorf("%w: reply from %s exceeds %d bytes", ErrUnexpectedReply, addr, maxReplyLength)
	}
	if err != nil {
		return "", fmt.Errorf("reading reply from %s: %w", addr, ctxErr(ctx, err))
	}
	return strings.TrimSpace(string(reply)), nil
}

// ctxErr attaches the context error to the net error it caused, so
// callers can recognise timeouts with errors.Is. The connection deadline
// equals the ctx deadline, so a net timeout past it counts as expiry
// even if the ctx timer has not fired yet.
func ctxErr(ctx context.Context, err error) error {
	if cerr := ctx.Err(); cerr != nil {
		return fmt.Errorf("%w: %w", cerr, err)
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		if deadline, ok := ctx.Deadline(); ok && !time.Now().Before(deadline) {
			return fmt.Errorf("%w: %w", context.DeadlineExceeded, err)
		}
	}
	return err
}
