package voice

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-lights/internal/device"
	"github.com/nerrad567/gray-logic-lights/internal/dispatch"
	"github.com/nerrad567/gray-logic-lights/internal/infrastructure/mqtt"
)

// fakeDispatcher reports every bulk action on calls and remembers
// whether its context carried a deadline.
type fakeDispatcher struct {
	calls chan device.PowerState

	mu          sync.Mutex
	hadDeadline bool
}

func newFakeDispatcher() *fakeDispatcher {
	return &fakeDispatcher{calls: make(chan device.PowerState, 8)}
}

func (f *fakeDispatcher) ApplyToAll(ctx context.Context, desired device.PowerState) dispatch.BulkResult {
	_, ok := ctx.Deadline()
	f.mu.Lock()
	f.hadDeadline = ok
	f.mu.Unlock()
	f.calls <- desired
	return dispatch.BulkResult{Action: desired.Action(), Desired: desired, Success: true}
}

func (f *fakeDispatcher) next(t *testing.T) device.PowerState {
	t.Helper()
	select {
	case got := <-f.calls:
		return got
	case <-time.After(2 * time.Second):
		t.Fatal("no bulk action dispatched")
		return ""
	}
}

func (f *fakeDispatcher) expectNone(t *testing.T) {
	t.Helper()
	select {
	case got := <-f.calls:
		t.Fatalf("unexpected bulk action %q", got)
	case <-time.After(50 * time.Millisecond):
	}
}

type fakeSubscriber struct {
	topic   string
	handler mqtt.MessageHandler
	err     error
}

func (f *fakeSubscriber) Subscribe(topic string, _ byte, handler mqtt.MessageHandler) error {
	if f.err != nil {
		return f.err
	}
	f.topic = topic
	f.handler = handler
	return nil
}

func (f *fakeSubscriber) DefaultQoS() byte { return 1 }

func TestHandle(t *testing.T) {
	disp := newFakeDispatcher()
	in := New(disp, time.Second)

	bulk, ok := in.Handle(context.Background(), "hey, light off")
	if !ok {
		t.Fatal("Handle() ok = false, want true")
	}
	if bulk.Desired != device.PowerOff {
		t.Errorf("Desired = %q, want off", bulk.Desired)
	}
	if got := disp.next(t); got != device.PowerOff {
		t.Errorf("dispatched %q, want off", got)
	}
	disp.mu.Lock()
	hadDeadline := disp.hadDeadline
	disp.mu.Unlock()
	if !hadDeadline {
		t.Error("bulk action ran without a deadline")
	}

	if _, ok := in.Handle(context.Background(), "good morning"); ok {
		t.Error("Handle() ok = true for text without a command")
	}
	disp.expectNone(t)
}

func TestNew_DefaultTimeout(t *testing.T) {
	if in := New(newFakeDispatcher(), 0); in.timeout != DefaultTimeout {
		t.Errorf("timeout = %v, want %v", in.timeout, DefaultTimeout)
	}
}

func TestSubscribeMQTT(t *testing.T) {
	disp := newFakeDispatcher()
	in := New(disp, time.Second)
	sub := &fakeSubscriber{}

	if err := in.SubscribeMQTT(context.Background(), sub); err != nil {
		t.Fatalf("SubscribeMQTT() error = %v", err)
	}
	if sub.topic != "graylights/voice" {
		t.Errorf("topic = %q, want graylights/voice", sub.topic)
	}

	if err := sub.handler(sub.topic, []byte("Lights on!")); err != nil {
		t.Fatalf("handler error = %v", err)
	}
	if got := disp.next(t); got != device.PowerOn {
		t.Errorf("dispatched %q, want on", got)
	}

	if err := sub.handler(sub.topic, []byte("turn up the music")); err != nil {
		t.Fatalf("handler error = %v", err)
	}
	disp.expectNone(t)
}

func TestSubscribeMQTT_Error(t *testing.T) {
	in := New(newFakeDispatcher(), time.Second)
	if err := in.SubscribeMQTT(context.Background(), &fakeSubscriber{err: mqtt.ErrNotConnected}); !errors.Is(err, mqtt.ErrNotConnected) {
		t.Errorf("SubscribeMQTT() error = %v, want ErrNotConnected", err)
	}
}
