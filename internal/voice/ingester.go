package voice

import (
	"context"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-lights/internal/device"
	"github.com/nerrad567/gray-logic-lights/internal/dispatch"
	"github.com/nerrad567/gray-logic-lights/internal/infrastructure/mqtt"
)

// DefaultTimeout bounds a voice-triggered bulk action when none is set.
const DefaultTimeout = 30 * time.Second

// Dispatcher switches every light. *dispatch.Dispatcher satisfies it.
type Dispatcher interface {
	ApplyToAll(ctx context.Context, desired device.PowerState) dispatch.BulkResult
}

// Subscriber is the part of *mqtt.Client the ingester uses.
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	DefaultQoS() byte
}

// Logger defines the logging interface used by the ingester.
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

// Ingester recognises spoken light commands and applies them.
//
// Thread Safety: Handle may be called from any goroutine. Commands are
// applied one at a time in arrival order.
type Ingester struct {
	dispatcher Dispatcher
	timeout    time.Duration
	logger     Logger

	cmdMu sync.Mutex
}

// New creates an Ingester. A timeout of zero or less selects
// DefaultTimeout.
func New(dispatcher Dispatcher, timeout time.Duration) *Ingester {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Ingester{
		dispatcher: dispatcher,
		timeout:    timeout,
		logger:     noopLogger{},
	}
}

// SetLogger sets the logger. A nil logger restores the no-op default.
func (in *Ingester) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	in.logger = logger
}

// Handle applies the light command in text, if there is one. The
// boolean is false when text holds no command.
func (in *Ingester) Handle(ctx context.Context, text string) (dispatch.BulkResult, bool) {
	desired, ok := Parse(text)
	if !ok {
		return dispatch.BulkResult{}, false
	}
	return in.apply(ctx, desired), true
}

func (in *Ingester) apply(ctx context.Context, desired device.PowerState) dispatch.BulkResult {
	in.cmdMu.Lock()
	defer in.cmdMu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, in.timeout)
	defer cancel()

	in.logger.Info("voice command recognised", "action", desired.Action())
	bulk := in.dispatcher.ApplyToAll(ctx, desired)
	if err := bulk.Err(); err != nil {
		in.logger.Warn("voice command incomplete", "action", desired.Action(), "error", err)
	}
	return bulk
}

// SubscribeMQTT handles every message published to graylights/voice.
// Commands run off the MQTT delivery goroutine so a slow light never
// stalls other subscriptions.
func (in *Ingester) SubscribeMQTT(ctx context.Context, sub Subscriber) error {
	topic := mqtt.Topics{}.Voice()
	in.logger.Info("subscribing to voice commands", "topic", topic)

	return sub.Subscribe(topic, sub.DefaultQoS(), func(_ string, payload []byte) error {
		desired, ok := Parse(string(payload))
		if !ok {
			in.logger.Debug("no light command in voice message")
			return nil
		}
		go in.apply(ctx, desired)
		return nil
	})
}
