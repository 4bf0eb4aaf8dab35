package dispatch

import "github.com/nerrad567/gray-logic-lights/internal/device"

// CommandResult is the outcome of one device command.
type CommandResult = device.CommandResult

// BulkResult is the outcome of applying one state to every configured device.
type BulkResult struct {
	Action     string            `json:"action"`
	Desired    device.PowerState `json:"-"`
	Results    []CommandResult   `json:"results"`
	Success    bool              `json:"success"`
	DurationMS int64             `json:"duration_ms"`
}

// Failed returns the failed results in configuration order.
func (b BulkResult) Failed() []CommandResult {
	var out []CommandResult
	for _, r := range b.Results {
		if !r.Success {
			out = append(out, r)
		}
	}
	return out
}

// Err returns a *PartialFailureError naming every failed device, or nil
// when all devices succeeded.
func (b BulkResult) Err() error {
	failed := b.Failed()
	if len(failed) == 0 {
		return nil
	}
	return &PartialFailureError{Desired: b.Desired, Total: len(b.Results), Failed: failed}
}
