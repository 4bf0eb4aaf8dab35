package api

import (
	"encoding/json"
	"strings"

	"github.com/nerrad567/gray-logic-lights/internal/device"
	mqttclient "github.com/nerrad567/gray-logic-lights/internal/infrastructure/mqtt"
)

// subscribeStateUpdates feeds state reported on graylights/state/+ into
// the registry. The registry's change callback then broadcasts it, and
// repeats of a known state are dropped there.
func (s *Server) subscribeStateUpdates() error {
	if s.mqtt == nil {
		return nil
	}

	topic := mqttclient.Topics{}.AllDeviceStates()
	s.logger.Info("subscribing to device state updates", "topic", topic)

	return s.mqtt.Subscribe(topic, s.mqtt.DefaultQoS(), func(t string, payload []byte) error {
		s.relayState(t, payload)
		return nil
	})
}

// relayState applies one state message and reports whether the cache
// took it. Only MQTT devices report their own state; for every other
// transport the topic carries our retained echo, which must not stand
// in for a round trip after a restart.
func (s *Server) relayState(topic string, payload []byte) bool {
	id, ok := mqttclient.DeviceIDFromStateTopic(topic)
	if !ok {
		return false
	}
	dev, ok := s.registry.Get(id)
	if !ok {
		s.logger.Debug("state update for unknown device", "device_id", id)
		return false
	}
	if dev.Transport != device.TransportMQTT {
		return false
	}
	state, ok := parseStatePayload(payload)
	if !ok {
		s.logger.Warn("unrecognised device state payload", "topic", topic)
		return false
	}
	s.registry.ObserveState(id, state)
	return true
}

// parseStatePayload accepts {"state":"on"}, {"on":true} or a bare on/off.
func parseStatePayload(payload []byte) (device.PowerState, bool) {
	var msg struct {
		State *string `json:"state"`
		On    *bool   `json:"on"`
	}
	if json.Unmarshal(payload, &msg) == nil {
		switch {
		case msg.State != nil:
			p, err := device.ParsePowerState(*msg.State)
			return p, err == nil
		case msg.On != nil && *msg.On:
			return device.PowerOn, true
		case msg.On != nil:
			return device.PowerOff, true
		}
	}

	p, err := device.ParsePowerState(strings.Trim(strings.TrimSpace(string(payload)), `"`))
	return p, err == nil
}
