// Package influxdb records light command history in InfluxDB.
//
// It wraps influxdb-client-go v2 and writes three measurements:
//   - device_command: one point per on/off command (device, transport, success, duration)
//   - bulk_action: one point per on_all/off_all fan-out
//   - schedule_fired: one point per schedule firing
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteDeviceCommand("10.0.0.12", "telnet", "ON", true, took)
//
// Writes are non-blocking and batched (batch_size, flush_interval);
// asynchronous failures are delivered to the SetOnError callback. All
// write methods are no-ops on a nil or closed client.
package influxdb
