package schedule

import "errors"

// Domain errors for the schedule package.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, schedule.ErrNotFound) {
//	    // handle not found case
//	}
var (
	// ErrNotFound is returned when a schedule ID does not exist.
	ErrNotFound = errors.New("schedule: not found")

	// ErrInvalidTime is returned when a time of day is not a valid 24-hour HH:MM.
	ErrInvalidTime = errors.New("schedule: invalid time")

	// ErrInvalidAction is returned when an action is neither ON nor OFF.
	ErrInvalidAction = errors.New("schedule: invalid action")

	// ErrTickInProgress is returned by Tick when a previous scan is still running.
	ErrTickInProgress = errors.New("schedule: tick already in progress")
)
