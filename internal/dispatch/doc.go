// Package dispatch fans power commands out to the configured lights.
//
// Every device gets its own timeout and its own result slot. A slow or
// failing device is reported in the BulkResult and never stops the
// others from being commanded. Outcomes feed Prometheus collectors, an
// optional time-series recorder, and registered observers.
//
// Usage:
//
//	d := dispatch.New(registry, dispatch.Options{CommandTimeout: 5 * time.Second})
//	bulk := d.ApplyToAll(ctx, device.PowerOn)
//	if err := bulk.Err(); err != nil {
//	    log.Println(err) // Failed to turn on: Desk, Hall
//	}
package dispatch
