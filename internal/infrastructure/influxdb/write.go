package influxdb

import (
	"strconv"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	MeasurementDeviceCommand = "device_command"
	MeasurementBulkAction    = "bulk_action"
	MeasurementScheduleFired = "schedule_fired"
)

// WriteDeviceCommand records the outcome of one on/off command.
// The write is buffered and never blocks the dispatcher.
//
// Parameters:
//   - deviceID: Tag; the light's configured id
//   - transport: Tag; telnet, kasa, mqtt, lifx, elgato or simulated
//   - action: Tag; ON or OFF
//   - success: Field; whether the device confirmed the command
//   - took: Field duration_ms; time from send to reply or timeout
//
// Example:
//
//	client.WriteDeviceCommand("10.0.0.12", "telnet", "ON", true, 140*time.Millisecond)
func (c *Client) WriteDeviceCommand(deviceID, transport, action string, success bool, took time.Duration) {
	c.writePoint(deviceCommandPoint(deviceID, transport, action, success, took, time.Now()))
}

// WriteBulkAction records a whole on_all/off_all fan-out.
func (c *Client) WriteBulkAction(action string, total, failed int, took time.Duration) {
	c.writePoint(bulkActionPoint(action, total, failed, took, time.Now()))
}

// WriteScheduleFired records a schedule firing and how many devices failed.
func (c *Client) WriteScheduleFired(scheduleID int64, action string, total, failed int, firedAt time.Time) {
	c.writePoint(scheduleFiredPoint(scheduleID, action, total, failed, firedAt))
}

func deviceCommandPoint(deviceID, transport, action string, success bool, took time.Duration, ts time.Time) *write.Point {
	return write.NewPoint(
		MeasurementDeviceCommand,
		map[string]string{
			"device_id": deviceID,
			"transport": transport,
			"action":    action,
		},
		map[string]any{
			"success":     success,
			"duration_ms": took.Milliseconds(),
		},
		ts,
	)
}

func bulkActionPoint(action string, total, failed int, took time.Duration, ts time.Time) *write.Point {
	return write.NewPoint(
		MeasurementBulkAction,
		map[string]string{"action": action},
		map[string]any{
			"devices_total":  total,
			"devices_failed": failed,
			"success":        failed == 0,
			"duration_ms":    took.Milliseconds(),
		},
		ts,
	)
}

func scheduleFiredPoint(scheduleID int64, action string, total, failed int, ts time.Time) *write.Point {
	return write.NewPoint(
		MeasurementScheduleFired,
		map[string]string{
			"schedule_id": strconv.FormatInt(scheduleID, 10),
			"action":      action,
		},
		map[string]any{
			"devices_total":  total,
			"devices_failed": failed,
			"success":        failed == 0,
		},
		ts,
	)
}
