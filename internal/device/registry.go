package device

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Logger defines the logging interface used by the device package.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Registry holds the configured lights and their last confirmed state,
// and routes commands to each light's transport.
//
// The device set is fixed at construction; only cached state changes.
// All public methods are thread-safe.
type Registry struct {
	transports Transports
	order      []string

	mu      sync.RWMutex
	devices map[string]*Device

	logger        Logger
	onStateChange func(Device)
	now           func() time.Time
}

// NewRegistry builds a registry from configured devices. It fails on a
// duplicate id or a device whose transport is missing from transports.
func NewRegistry(devices []Device, transports Transports) (*Registry, error) {
	r := &Registry{
		transports: transports,
		order:      make([]string, 0, len(devices)),
		devices:    make(map[string]*Device, len(devices)),
		logger:     noopLogger{},
		now:        time.Now,
	}

	for i := range devices {
		d := devices[i].clone()
		d.applyDefaults()
		if err := ValidateDevice(&d); err != nil {
			return nil, fmt.Errorf("device %s: %w", d.ID, err)
		}
		if _, exists := r.devices[d.ID]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateDevice, d.ID)
		}
		if _, ok := transports[d.Transport]; !ok {
			return nil, fmt.Errorf("%w: %s has no %s transport configured", ErrUnknownTransport, d.ID, d.Transport)
		}
		r.devices[d.ID] = &d
		r.order = append(r.order, d.ID)
	}
	return r, nil
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	r.logger = logger
}

// SetOnStateChange registers a callback run after a device's cached
// state changes. It is called without the registry lock held.
func (r *Registry) SetOnStateChange(fn func(Device)) {
	r.mu.Lock()
	r.onStateChange = fn
	r.mu.Unlock()
}

// SetState sends desired to one device and reports the outcome. An
// unknown id fails with ErrUnknownDevice without contacting anything.
// The cached state is updated only when the transport succeeds before
// ctx is done.
func (r *Registry) SetState(ctx context.Context, id string, desired PowerState) CommandResult {
	start := r.now()
	res := CommandResult{DeviceID: id, Desired: desired}

	dev, ok := r.Get(id)
	if !ok {
		return failed(res, fmt.Errorf("%w: %s", ErrUnknownDevice, id), start, r.now())
	}
	res.Name = dev.Name
	res.Transport = dev.Transport

	if !desired.Valid() {
		return failed(res, fmt.Errorf("%w: %q", ErrInvalidPowerState, desired), start, r.now())
	}

	transport := r.transports[dev.Transport]
	reply, err := transport.SetPower(ctx, dev, desired)
	end := r.now()
	res.Response = reply
	if err == nil && ctx.Err() != nil {
		// The caller gave up before the reply arrived and has already
		// reported a failure, so the cache must not claim otherwise.
		err = ctx.Err()
	}
	if err != nil {
		r.logger.Debug("device command failed", "device_id", id, "transport", dev.Transport, "error", err)
		return failed(res, err, start, end)
	}

	res.Success = true
	res.DurationMS = end.Sub(start).Milliseconds()
	r.updateState(id, desired, end)
	return res
}

func failed(res CommandResult, err error, start, end time.Time) CommandResult {
	res.Success = false
	res.Err = err
	res.Error = err.Error()
	res.DurationMS = end.Sub(start).Milliseconds()
	return res
}

// ObserveState records a state reported by the device itself, such as
// an MQTT state message. Unknown ids are ignored and reported false.
func (r *Registry) ObserveState(id string, state PowerState) bool {
	if !state.Valid() {
		return false
	}
	if _, ok := r.Get(id); !ok {
		return false
	}
	r.updateState(id, state, r.now())
	return true
}

func (r *Registry) updateState(id string, state PowerState, at time.Time) {
	r.mu.Lock()
	d, ok := r.devices[id]
	if !ok {
		r.mu.Unlock()
		return
	}
	changed := d.State != state
	d.State = state
	d.StateUpdatedAt = &at
	snapshot := d.clone()
	callback := r.onStateChange
	r.mu.Unlock()

	if changed && callback != nil {
		callback(snapshot)
	}
}

// Get returns a copy of the device with the given id.
func (r *Registry) Get(id string) (Device, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.devices[id]
	if !ok {
		return Device{}, false
	}
	return d.clone(), true
}

// List returns copies of all devices in configuration order.
func (r *Registry) List() []Device {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Device, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.devices[id].clone())
	}
	return out
}

// Count returns the number of configured devices.
func (r *Registry) Count() int {
	return len(r.order)
}

// Stats summarises the registry.
type Stats struct {
	TotalDevices int                   `json:"total_devices"`
	ByTransport  map[TransportKind]int `json:"by_transport"`
	ByState      map[PowerState]int    `json:"by_state"`
}

// Stats returns current registry statistics.
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := Stats{
		TotalDevices: len(r.devices),
		ByTransport:  make(map[TransportKind]int),
		ByState:      make(map[PowerState]int),
	}
	for _, d := range r.devices {
		stats.ByTransport[d.Transport]++
		stats.ByState[d.State]++
	}
	return stats
}
