package api

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-lights/internal/device"
	"github.com/nerrad567/gray-logic-lights/internal/dispatch"
)

// LightResponse is one entry of GET /lights.
type LightResponse struct {
	ID        string               `json:"id"`
	Name      string               `json:"name"`
	Transport device.TransportKind `json:"transport"`
	State     device.PowerState    `json:"state"`
}

// CommandResponse is the body of POST /on/{id} and /off/{id}.
type CommandResponse struct {
	Success  bool   `json:"success"`
	Response string `json:"response,omitempty"`
	Error    string `json:"error,omitempty"`
	Code     string `json:"code,omitempty"`
}

// FailedDevice names one device that failed in a bulk action.
type FailedDevice struct {
	DeviceID string `json:"device_id"`
	Name     string `json:"name"`
	Error    string `json:"error"`
}

// BulkResponse is the body of POST /on_all and /off_all.
type BulkResponse struct {
	Success bool           `json:"success"`
	Error   string         `json:"error,omitempty"`
	Failed  []FailedDevice `json:"failed,omitempty"`
}

func (s *Server) handleListLights(_ *http.Request) Result {
	devices := s.registry.List()
	out := make([]LightResponse, 0, len(devices))
	for _, d := range devices {
		out = append(out, LightResponse{ID: d.ID, Name: d.Name, Transport: d.Transport, State: d.State})
	}
	return ok(out)
}

// handleLightCommand turns one light on or off. Device failures are
// reported with 200 and success=false; an unknown id is a 404.
func (s *Server) handleLightCommand(on bool) http.HandlerFunc {
	desired := device.PowerOff
	if on {
		desired = device.PowerOn
	}
	return respond(func(r *http.Request) Result {
		id := pathParam(r, "id")
		res := s.dispatcher.ApplyToOne(r.Context(), id, desired)
		if res.Success {
			return ok(CommandResponse{Success: true, Response: res.Response})
		}

		body := CommandResponse{Success: false, Error: res.Error, Code: errorCode(res.Err)}
		if errors.Is(res.Err, device.ErrUnknownDevice) {
			return Result{Status: http.StatusNotFound, Body: body}
		}
		return ok(body)
	})
}

// handleBulkCommand applies one state to every light. Partial failure
// is a 200 with success=false and every failed device listed.
func (s *Server) handleBulkCommand(on bool) http.HandlerFunc {
	desired := device.PowerOff
	if on {
		desired = device.PowerOn
	}
	return respond(func(r *http.Request) Result {
		bulk := s.dispatcher.ApplyToAll(r.Context(), desired)
		err := bulk.Err()
		if err == nil {
			return ok(BulkResponse{Success: true})
		}

		body := BulkResponse{Success: false, Error: err.Error()}
		for _, f := range bulk.Failed() {
			body.Failed = append(body.Failed, FailedDevice{DeviceID: f.DeviceID, Name: f.Name, Error: f.Error})
		}
		return ok(body)
	})
}

func errorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, device.ErrUnknownDevice):
		return ErrCodeUnknownDevice
	case errors.Is(err, dispatch.ErrDeviceTimeout):
		return "device_timeout"
	case errors.Is(err, dispatch.ErrCancelled):
		return "cancelled"
	default:
		return "device_command_failed"
	}
}

// pathParam returns a decoded chi URL parameter. chi matches against
// RawPath when it is set, so only then is the value still escaped.
func pathParam(r *http.Request, name string) string {
	v := chi.URLParam(r, name)
	if r.URL.RawPath == "" {
		return v
	}
	if decoded, err := url.PathUnescape(v); err == nil {
		return decoded
	}
	return v
}
