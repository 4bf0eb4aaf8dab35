// Package api implements the HTTP JSON API and WebSocket feed for the
// lighting controller.
//
// This package provides:
//   - Light commands: POST /on/{id}, /off/{id}, /on_all, /off_all
//   - Schedule CRUD under /schedules
//   - GET /health, GET /status and Prometheus metrics at /metrics
//   - A WebSocket hub pushing device and schedule events
//
// Every outward response says whether the operation succeeded and, on
// failure, carries a human-readable reason. Bulk failures list each
// device that failed.
//
// The server runs without MQTT; state relay and event publishing are
// simply skipped.
package api
