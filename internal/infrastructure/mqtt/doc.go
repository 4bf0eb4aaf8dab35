// Package mqtt provides the broker connection used by Gray Logic Lights.
//
// It is used two ways: MQTT-driven lights receive their on/off commands
// on graylights/command/{device_id} and report back on
// graylights/state/{device_id}, and the service publishes its own events
// (device state changes, schedule firings) on graylights/event/{type}.
//
// The connection auto-reconnects with backoff, restores subscriptions on
// reconnect and keeps a retained online/offline status (with LWT) on
// graylights/system/status.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.AllDeviceStates(), 1,
//	    func(topic string, payload []byte) error {
//	        id, _ := mqtt.DeviceIDFromStateTopic(topic)
//	        ...
//	    })
package mqtt
