package schedule

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/nerrad567/gray-logic-lights/internal/device"
)

// Action is the bulk power state a schedule applies.
type Action string

// Schedule actions.
const (
	ActionOn  Action = "ON"
	ActionOff Action = "OFF"
)

// ParseAction accepts "ON" or "OFF" in any case.
func ParseAction(s string) (Action, error) {
	switch Action(strings.ToUpper(strings.TrimSpace(s))) {
	case ActionOn:
		return ActionOn, nil
	case ActionOff:
		return ActionOff, nil
	default:
		return "", fmt.Errorf("%w: %q (want ON or OFF)", ErrInvalidAction, s)
	}
}

// PowerState maps the action onto the device power state it requests.
func (a Action) PowerState() device.PowerState {
	if a == ActionOn {
		return device.PowerOn
	}
	return device.PowerOff
}

// TimeOfDay is a wall-clock hour and minute with no date.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay parses a 24-hour "HH:MM" string. A single-digit hour
// is accepted; the minute must have two digits.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	s = strings.TrimSpace(s)
	hh, mm, ok := strings.Cut(s, ":")
	if !ok || len(hh) < 1 || len(hh) > 2 || len(mm) != 2 {
		return TimeOfDay{}, fmt.Errorf("%w: %q (want HH:MM)", ErrInvalidTime, s)
	}

	if !digits(hh) || !digits(mm) {
		return TimeOfDay{}, fmt.Errorf("%w: %q (want HH:MM)", ErrInvalidTime, s)
	}
	hour, _ := strconv.Atoi(hh)
	minute, _ := strconv.Atoi(mm)

	t := TimeOfDay{Hour: hour, Minute: minute}
	if !t.Valid() {
		return TimeOfDay{}, fmt.Errorf("%w: %q is not a 24-hour time", ErrInvalidTime, s)
	}
	return t, nil
}

func digits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Of returns the time of day of t in t's location.
func Of(t time.Time) TimeOfDay {
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}
}

// Valid reports whether the hour and minute are in range.
func (t TimeOfDay) Valid() bool {
	return t.Hour >= 0 && t.Hour <= 23 && t.Minute >= 0 && t.Minute <= 59
}

// Matches reports whether instant falls in this minute of its day.
func (t TimeOfDay) Matches(instant time.Time) bool {
	return Of(instant) == t
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// MarshalJSON encodes the time as "HH:MM".
func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON decodes an "HH:MM" string.
func (t *TimeOfDay) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidTime, data)
	}
	parsed, err := ParseTimeOfDay(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Schedule fires a bulk action every day at Time while Enabled.
type Schedule struct {
	ID        int64     `json:"id"`
	Time      TimeOfDay `json:"time"`
	Action    Action    `json:"action"`
	Enabled   bool      `json:"enabled"`
	CreatedAt time.Time `json:"created_at"`

	// lastFired is the minute this schedule last fired. Zero means never.
	lastFired time.Time
}

// LastFired returns the minute this schedule last fired, if ever.
func (s Schedule) LastFired() (time.Time, bool) {
	return s.lastFired, !s.lastFired.IsZero()
}

// Run records one firing of a schedule.
type Run struct {
	ID            int64     `json:"id"`
	ScheduleID    int64     `json:"schedule_id"`
	FiredAt       time.Time `json:"fired_at"`
	Action        Action    `json:"action"`
	Success       bool      `json:"success"`
	DevicesTotal  int       `json:"devices_total"`
	DevicesFailed int       `json:"devices_failed"`
	FailedDevices []string  `json:"failed_devices"`
}
