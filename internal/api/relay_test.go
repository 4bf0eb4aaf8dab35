package api

import (
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-lights/internal/device"
	"github.com/nerrad567/gray-logic-lights/internal/dispatch"
	"github.com/nerrad567/gray-logic-lights/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-lights/internal/schedule"
)

func relayServer(t *testing.T) (*Server, *device.Registry) {
	t.Helper()
	registry, err := device.NewRegistry([]device.Device{
		{ID: "10.0.0.1", Name: "Porch", Transport: device.TransportTelnet, Address: "10.0.0.1"},
		{ID: "garden", Name: "Garden", Transport: device.TransportMQTT},
	}, device.SimulatedTransports(device.NewSimulated(0)))
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	srv, err := New(Deps{
		Logger:     logging.Discard(),
		Registry:   registry,
		Dispatcher: dispatch.New(registry, dispatch.Options{CommandTimeout: time.Second}),
		Schedules:  schedule.NewStore(nil),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return srv, registry
}

func TestRelayState_IgnoresRetainedEchoForNonMQTTDevices(t *testing.T) {
	srv, registry := relayServer(t)

	// The payload OnDeviceStateChange publishes, replayed by the broker
	// after a restart.
	if srv.relayState("graylights/state/10.0.0.1", []byte(`{"device_id":"10.0.0.1","state":"on"}`)) {
		t.Error("relayState() accepted state for a telnet light")
	}
	if d, _ := registry.Get("10.0.0.1"); d.State != device.PowerUnknown {
		t.Errorf("State = %q, want unknown until a round trip succeeds", d.State)
	}
}

func TestRelayState_AppliesMQTTDeviceState(t *testing.T) {
	srv, registry := relayServer(t)

	if !srv.relayState("graylights/state/garden", []byte(`{"state":"on"}`)) {
		t.Fatal("relayState() rejected state for an MQTT light")
	}
	if d, _ := registry.Get("garden"); d.State != device.PowerOn {
		t.Errorf("State = %q, want on", d.State)
	}

	tests := []struct {
		name  string
		topic string
		body  string
	}{
		{"unknown device", "graylights/state/attic", `on`},
		{"bad payload", "graylights/state/garden", `dim`},
		{"other topic", "graylights/command/garden", `off`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if srv.relayState(tt.topic, []byte(tt.body)) {
				t.Errorf("relayState(%q, %q) = true, want false", tt.topic, tt.body)
			}
		})
	}
}
