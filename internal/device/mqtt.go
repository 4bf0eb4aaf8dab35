package device

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Publisher is the slice of the MQTT client the transport needs.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	IsConnected() bool
}

// MQTTCommand is the JSON payload sent to graylights/command/{device_id}.
type MQTTCommand struct {
	ID        string    `json:"id"`
	DeviceID  string    `json:"device_id"`
	Command   string    `json:"command"`
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
}

// mqttCommandQoS gives at-least-once delivery; the broker ack is the
// success signal.
const mqttCommandQoS = 1

// MQTT drives lights that listen on an MQTT command topic.
type MQTT struct {
	publisher Publisher
	topic     func(deviceID string) string
}

// NewMQTT returns an MQTT transport. topic builds the command topic for
// a device id. A nil publisher yields ErrTransportUnavailable on every call.
func NewMQTT(publisher Publisher, topic func(deviceID string) string) *MQTT {
	return &MQTT{publisher: publisher, topic: topic}
}

// Name implements Transport.
func (m *MQTT) Name() string { return string(TransportMQTT) }

// SetPower implements Transport. The returned reply is the command id.
func (m *MQTT) SetPower(ctx context.Context, dev Device, desired PowerState) (string, error) {
	if !desired.Valid() {
		return "", ErrInvalidPowerState
	}
	if m.publisher == nil || !m.publisher.IsConnected() {
		return "", fmt.Errorf("%w: mqtt broker not connected", ErrTransportUnavailable)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	cmd := MQTTCommand{
		ID:        uuid.NewString(),
		DeviceID:  dev.ID,
		Command:   string(desired),
		Source:    "graylights",
		Timestamp: time.Now().UTC(),
	}
	payload, err := json.Marshal(cmd)
	if err != nil {
		return "", fmt.Errorf("encoding mqtt command: %w", err)
	}

	// paho's publish wait is bounded by its own timeout; run it aside so
	// ctx still decides how long we wait.
	done := make(chan error, 1)
	go func() {
		done <- m.publisher.Publish(m.topic(dev.ID), payload, mqttCommandQoS, false)
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case err := <-done:
		if err != nil {
			return "", err
		}
		return cmd.ID, nil
	}
}
