package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/gray-logic-lights/internal/device"
)

// Default dispatch limits.
const (
	DefaultCommandTimeout = 5 * time.Second
	DefaultConcurrency    = 8
)

// Registry is what the dispatcher needs from the device registry.
type Registry interface {
	List() []device.Device
	Get(id string) (device.Device, bool)
	SetState(ctx context.Context, id string, desired device.PowerState) device.CommandResult
}

// Recorder receives command outcomes for time-series storage.
// *influxdb.Client satisfies it.
type Recorder interface {
	WriteDeviceCommand(deviceID, transport, action string, success bool, took time.Duration)
	WriteBulkAction(action string, total, failed int, took time.Duration)
}

// Logger defines the logging interface used by the dispatcher.
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

// Options configures a Dispatcher. Zero values take the defaults.
type Options struct {
	CommandTimeout time.Duration
	Concurrency    int
	Metrics        *Metrics
}

// Dispatcher sends power commands to devices with a per-device timeout
// and bounded parallelism. A failing device never stops the others.
//
// Thread Safety: ApplyToAll and ApplyToOne are safe for concurrent use.
// Observers and the recorder must be set before the first call.
type Dispatcher struct {
	registry    Registry
	timeout     time.Duration
	concurrency int
	metrics     *Metrics
	recorder    Recorder
	logger      Logger
	observers   []func(CommandResult)
	now         func() time.Time
}

// New creates a dispatcher over the given registry.
func New(registry Registry, opts Options) *Dispatcher {
	if opts.CommandTimeout <= 0 {
		opts.CommandTimeout = DefaultCommandTimeout
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	return &Dispatcher{
		registry:    registry,
		timeout:     opts.CommandTimeout,
		concurrency: opts.Concurrency,
		metrics:     opts.Metrics,
		logger:      noopLogger{},
		now:         time.Now,
	}
}

// SetLogger sets the logger for the dispatcher.
func (d *Dispatcher) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	d.logger = logger
}

// SetRecorder sets where command outcomes are written. Nil disables recording.
func (d *Dispatcher) SetRecorder(r Recorder) {
	d.recorder = r
}

// AddObserver registers a callback invoked with every command result.
// Callbacks run on the dispatching goroutine and must not block.
func (d *Dispatcher) AddObserver(fn func(CommandResult)) {
	if fn != nil {
		d.observers = append(d.observers, fn)
	}
}

// ApplyToOne sends desired to a single device.
func (d *Dispatcher) ApplyToOne(ctx context.Context, id string, desired device.PowerState) CommandResult {
	res := d.apply(ctx, id, desired)
	d.observe(res)
	return res
}

// ApplyToAll sends desired to every configured device concurrently and
// waits for all of them. Results keep configuration order. Zero devices
// is a success.
func (d *Dispatcher) ApplyToAll(ctx context.Context, desired device.PowerState) BulkResult {
	start := d.now()
	devices := d.registry.List()
	results := make([]CommandResult, len(devices))

	var g errgroup.Group
	g.SetLimit(d.concurrency)
	for i, dev := range devices {
		g.Go(func() error {
			results[i] = d.apply(ctx, dev.ID, desired)
			d.observe(results[i])
			return nil
		})
	}
	_ = g.Wait()

	bulk := BulkResult{
		Action:     desired.Action(),
		Desired:    desired,
		Results:    results,
		Success:    true,
		DurationMS: d.now().Sub(start).Milliseconds(),
	}
	for _, r := range results {
		if !r.Success {
			bulk.Success = false
			break
		}
	}

	d.metrics.observeBulk(bulk)
	if d.recorder != nil {
		d.recorder.WriteBulkAction(bulk.Action, len(results), len(bulk.Failed()), time.Duration(bulk.DurationMS)*time.Millisecond)
	}
	if err := bulk.Err(); err != nil {
		d.logger.Warn("bulk action incomplete", "action", bulk.Action, "devices", len(results), "error", err)
	} else {
		d.logger.Info("bulk action complete", "action", bulk.Action, "devices", len(results))
	}
	return bulk
}

// apply runs one command under its own timeout. The registry call runs
// in a goroutine so a transport that ignores ctx still cannot hold the
// caller past the deadline.
func (d *Dispatcher) apply(ctx context.Context, id string, desired device.PowerState) CommandResult {
	if err := ctx.Err(); err != nil {
		return d.abandoned(id, desired, fmt.Errorf("%w: %w", ErrCancelled, err), 0)
	}

	cmdCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	start := d.now()
	done := make(chan CommandResult, 1)
	go func() {
		done <- d.registry.SetState(cmdCtx, id, desired)
	}()

	var res CommandResult
	select {
	case res = <-done:
	case <-cmdCtx.Done():
		select {
		case res = <-done:
		default:
			res = d.abandoned(id, desired, cmdCtx.Err(), d.now().Sub(start))
		}
	}

	if !res.Success {
		res.Err = d.classify(ctx, cmdCtx, res.Err)
		res.Error = res.Err.Error()
		d.logger.Warn("device command failed",
			"device_id", id,
			"action", desired.Action(),
			"error", res.Error,
		)
	}
	return res
}

func (d *Dispatcher) abandoned(id string, desired device.PowerState, err error, took time.Duration) CommandResult {
	res := CommandResult{DeviceID: id, Desired: desired, Err: err, Error: err.Error(), DurationMS: took.Milliseconds()}
	if dev, ok := d.registry.Get(id); ok {
		res.Name = dev.Name
		res.Transport = dev.Transport
	}
	return res
}

// classify maps a raw failure to the dispatch taxonomy while keeping
// the transport's message.
func (d *Dispatcher) classify(parent, cmdCtx context.Context, err error) error {
	if err == nil {
		err = errors.New("unknown error")
	}
	switch {
	case errors.Is(err, device.ErrUnknownDevice),
		errors.Is(err, device.ErrInvalidPowerState),
		errors.Is(err, ErrCancelled):
		return err
	case parent.Err() != nil:
		return fmt.Errorf("%w: %w", ErrCancelled, err)
	case errors.Is(cmdCtx.Err(), context.DeadlineExceeded), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w after %s: %w", ErrDeviceTimeout, d.timeout, err)
	default:
		return fmt.Errorf("%w: %w", ErrDeviceCommandFailed, err)
	}
}

func (d *Dispatcher) observe(res CommandResult) {
	d.metrics.observeCommand(res)
	if d.recorder != nil {
		d.recorder.WriteDeviceCommand(res.DeviceID, string(res.Transport), res.Desired.Action(), res.Success,
			time.Duration(res.DurationMS)*time.Millisecond)
	}
	for _, fn := range d.observers {
		fn(res)
	}
}

func isTimeout(err error) bool {
	return errors.Is(err, ErrDeviceTimeout)
}

func isCancelled(err error) bool {
	return errors.Is(err, ErrCancelled)
}
