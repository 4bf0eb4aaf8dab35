package device

import (
	"context"
	"sync"
	"time"
)

// Simulated is an in-memory transport. It succeeds unless told otherwise
// and records every command it receives.
type Simulated struct {
	mu       sync.Mutex
	delay    time.Duration
	failures map[string]error
	calls    []SimulatedCall
}

// SimulatedCall is one recorded SetPower call.
type SimulatedCall struct {
	DeviceID string
	Desired  PowerState
}

// NewSimulated returns a transport that answers after delay.
func NewSimulated(delay time.Duration) *Simulated {
	return &Simulated{delay: delay, failures: make(map[string]error)}
}

// Name implements Transport.
func (s *Simulated) Name() string { return string(TransportSimulated) }

// FailDevice makes every command to id return err. A nil err clears it.
func (s *Simulated) FailDevice(id string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, id)
		return
	}
	s.failures[id] = err
}

// Calls returns the commands received so far.
func (s *Simulated) Calls() []SimulatedCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]SimulatedCall, len(s.calls))
	copy(out, s.calls)
	return out
}

// SetPower implements Transport.
func (s *Simulated) SetPower(ctx context.Context, dev Device, desired PowerState) (string, error) {
	s.mu.Lock()
	s.calls = append(s.calls, SimulatedCall{DeviceID: dev.ID, Desired: desired})
	failure := s.failures[dev.ID]
	s.mu.Unlock()

	if s.delay > 0 {
		timer := time.NewTimer(s.delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-timer.C:
		}
	}
	if failure != nil {
		return "", failure
	}
	if !desired.Valid() {
		return "", ErrInvalidPowerState
	}
	return "ok " + string(desired), nil
}
