// Package device holds the configured lights and drives them.
//
// A Registry is built once at startup from the device file(s). Each
// device names a transport:
//
//   - telnet: ESP32 rocker controllers; writes "0" (on) or "180" (off) plus
//     a newline to port 23 and reads one reply line
//   - kasa: TP-Link plugs via the python-kasa CLI
//   - mqtt: lights listening on graylights/command/{device_id}
//   - lifx: LIFX bulbs over the LAN protocol
//   - elgato: Elgato Key Lights over HTTP
//   - simulated: in-memory, for dev mode and tests
//
// The registry caches the last confirmed power state of each light. The
// cache starts as "unknown" and changes only after a successful command
// or a state report from the device.
//
// Usage:
//
//	devices, err := device.LoadAll(cfg.Devices.File, cfg.Devices.LegacyFile, logger)
//	reg, err := device.NewRegistry(devices, transports)
//	res := reg.SetState(ctx, "10.0.0.12", device.PowerOn)
package device
