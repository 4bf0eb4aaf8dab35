package dispatch

import (
	"errors"
	"strings"

	"github.com/nerrad567/gray-logic-lights/internal/device"
)

// Domain errors for the dispatch package.
//
// A failed CommandResult carries one of these in its Err field:
//
//	if errors.Is(res.Err, dispatch.ErrDeviceTimeout) {
//	    // device did not answer in time
//	}
var (
	// ErrDeviceTimeout is returned when a device does not answer within the command timeout.
	ErrDeviceTimeout = errors.New("dispatch: device timeout")

	// ErrDeviceCommandFailed is returned when a transport reports an error.
	ErrDeviceCommandFailed = errors.New("dispatch: device command failed")

	// ErrCancelled is returned for commands abandoned because the caller's context ended.
	ErrCancelled = errors.New("dispatch: cancelled")

	// ErrPartialFailure is wrapped by PartialFailureError.
	ErrPartialFailure = errors.New("dispatch: partial failure")
)

// PartialFailureError reports the devices that failed during a bulk action.
type PartialFailureError struct {
	Desired device.PowerState
	Total   int
	Failed  []CommandResult
}

// Error lists every failed device by display name, e.g. "Failed to turn on: Desk, Hall".
func (e *PartialFailureError) Error() string {
	names := make([]string, 0, len(e.Failed))
	for _, r := range e.Failed {
		name := r.Name
		if name == "" {
			name = r.DeviceID
		}
		names = append(names, name)
	}
	return "Failed to turn " + string(e.Desired) + ": " + strings.Join(names, ", ")
}

// Unwrap lets errors.Is match ErrPartialFailure.
func (e *PartialFailureError) Unwrap() error {
	return ErrPartialFailure
}

// AllFailed reports whether no device succeeded.
func (e *PartialFailureError) AllFailed() bool {
	return len(e.Failed) == e.Total
}
