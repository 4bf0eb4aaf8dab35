package mqtt

import (
	"fmt"
	"strings"
)

// TopicPrefix is the root of every Gray Logic Lights topic.
const TopicPrefix = "graylights"

// Topics provides builders for Gray Logic Lights MQTT topics.
//
//	graylights/command/{device_id}   commands to MQTT-driven lights
//	graylights/state/{device_id}     state reports from those lights
//	graylights/event/{event_type}    events published by the service
//	graylights/voice                 transcribed speech to scan for commands
//	graylights/system/status         online/offline (retained, LWT)
type Topics struct{}

// DeviceCommand returns the topic a light listens on for on/off commands.
//
// Example: graylights/command/porch
func (Topics) DeviceCommand(deviceID string) string {
	return fmt.Sprintf("%s/command/%s", TopicPrefix, deviceID)
}

// DeviceState returns the topic a light reports its state on.
//
// Example: graylights/state/porch
func (Topics) DeviceState(deviceID string) string {
	return fmt.Sprintf("%s/state/%s", TopicPrefix, deviceID)
}

// AllDeviceStates matches every device state topic.
func (Topics) AllDeviceStates() string {
	return TopicPrefix + "/state/+"
}

// Event returns the topic for a service event such as "schedule.fired".
func (Topics) Event(eventType string) string {
	return fmt.Sprintf("%s/event/%s", TopicPrefix, eventType)
}

// Voice returns the topic transcribed speech is published on.
func (Topics) Voice() string {
	return TopicPrefix + "/voice"
}

// SystemStatus returns the retained online/offline topic.
func (Topics) SystemStatus() string {
	return TopicPrefix + "/system/status"
}

// DeviceIDFromStateTopic extracts the device id from a state topic.
// It returns false for topics outside graylights/state/.
func DeviceIDFromStateTopic(topic string) (string, bool) {
	id, ok := strings.CutPrefix(topic, TopicPrefix+"/state/")
	if !ok || id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}
