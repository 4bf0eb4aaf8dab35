package api

import (
	"github.com/nerrad567/gray-logic-lights/internal/device"
	mqttclient "github.com/nerrad567/gray-logic-lights/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-lights/internal/schedule"
)

// Event types pushed to WebSocket clients and the MQTT event topics.
const (
	EventDeviceStateChanged = "device.state_changed"
	EventScheduleChanged    = "schedule.changed"
	EventScheduleFired      = "schedule.fired"
)

// PublishEvent broadcasts an event to WebSocket clients and, when MQTT
// is connected, to graylights/event/<type>.
func (s *Server) PublishEvent(eventType string, payload any) {
	s.hub.Publish(eventType, payload)

	if s.mqtt == nil || !s.mqtt.IsConnected() {
		return
	}
	if err := s.mqtt.PublishJSON(mqttclient.Topics{}.Event(eventType), payload, false); err != nil {
		s.logger.Debug("failed to publish event to MQTT", "event", eventType, "error", err)
	}
}

// OnDeviceStateChange is registered with the device registry.
func (s *Server) OnDeviceStateChange(d device.Device) {
	s.PublishEvent(EventDeviceStateChanged, map[string]any{
		"device_id":  d.ID,
		"name":       d.Name,
		"state":      d.State,
		"updated_at": d.StateUpdatedAt,
	})

	if s.mqtt != nil && s.mqtt.IsConnected() {
		topic := mqttclient.Topics{}.DeviceState(d.ID)
		if d.Transport == device.TransportMQTT {
			// MQTT devices publish their own state on this topic.
			return
		}
		if err := s.mqtt.PublishJSON(topic, map[string]any{"device_id": d.ID, "state": d.State}, true); err != nil {
			s.logger.Debug("failed to publish device state", "device_id", d.ID, "error", err)
		}
	}
}

// OnScheduleChanged is registered with the schedule store.
func (s *Server) OnScheduleChanged(kind string, sc schedule.Schedule) {
	s.PublishEvent(EventScheduleChanged, map[string]any{
		"change":   kind,
		"schedule": sc,
	})
}

// OnScheduleFired is registered with the schedule evaluator.
func (s *Server) OnScheduleFired(sc schedule.Schedule, run schedule.Run) {
	s.PublishEvent(EventScheduleFired, map[string]any{
		"schedule": sc,
		"run":      run,
	})
}
