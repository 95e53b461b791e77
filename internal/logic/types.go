// Package logic contains the pure door alarm state machine.
// This package has NO external dependencies (no GPIO, storage, OS, or
// time.Sleep). Time is always injectable via time.Time parameters.
package logic

import (
	"fmt"
	"time"
)

// DoorState reflects the raw physical door position, independent of alarm logic.
type DoorState string

const (
	DoorClosed DoorState = "CLOSED"
	DoorOpen   DoorState = "OPEN"
)

// AlarmMode is the controller's primary state.
type AlarmMode string

const (
	ModeNormal    AlarmMode = "NORMAL"
	ModeCountdown AlarmMode = "COUNTDOWN"
	ModeAlarmed   AlarmMode = "ALARMED"
)

// DoorEvent is a normalized sensor edge. The hardware adapter owns the
// translation from electrical levels; no pin polarity leaks into this package.
type DoorEvent string

const (
	DoorEventOpen  DoorEvent = "OPEN"
	DoorEventClose DoorEvent = "CLOSE"
)

// ParseDoorEvent validates an externally supplied edge name (e.g. from the
// simulation API).
func ParseDoorEvent(s string) (DoorEvent, error) {
	switch DoorEvent(s) {
	case DoorEventOpen, DoorEventClose:
		return DoorEvent(s), nil
	}
	return "", fmt.Errorf("unknown door event %q", s)
}

// Timer duration bounds enforced by Config.Validate.
const (
	MinTimerDuration = 1 * time.Second
	MaxTimerDuration = 24 * time.Hour
)

// Config holds the operator-mutable controller settings.
type Config struct {
	// TimerDuration is the countdown grace period before alarm escalation.
	TimerDuration time.Duration
	// InstantAlarm skips the countdown and alarms immediately on an
	// out-of-schedule open.
	InstantAlarm bool
}

// Validate rejects out-of-range durations. Values are rejected, not clamped.
func (c Config) Validate() error {
	if c.TimerDuration < MinTimerDuration || c.TimerDuration > MaxTimerDuration {
		return fmt.Errorf("timer duration %v out of range [%v, %v]",
			c.TimerDuration, MinTimerDuration, MaxTimerDuration)
	}
	return nil
}

// EventType identifies a logged controller event.
type EventType string

const (
	EventDoorOpen        EventType = "DOOR_OPEN"
	EventDoorClose       EventType = "DOOR_CLOSE"
	EventAccessAllowed   EventType = "ACCESS_ALLOWED"
	EventAccessViolation EventType = "ACCESS_VIOLATION"
	EventTimerStart      EventType = "TIMER_START"
	EventTimerStop       EventType = "TIMER_STOP"
	EventAlarmTrigger    EventType = "ALARM_TRIGGER"
	EventAlarmReset      EventType = "ALARM_RESET"
)

// Severity classifies logged events.
type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityWarning  Severity = "WARNING"
	SeverityCritical Severity = "CRITICAL"
)

// Event is a controller event to be delivered to the log sinks.
// Door and Mode carry the post-transition state.
type Event struct {
	Timestamp   time.Time
	Type        EventType
	Description string
	Severity    Severity
	Actor       string // operator identity for commands, empty for sensor events
	Door        DoorState
	Mode        AlarmMode
}

// Snapshot is the durable projection of controller state, written after
// every transition and read once at startup.
type Snapshot struct {
	Door DoorState
	Mode AlarmMode
	// CountdownStartedAt is non-nil iff Mode is ModeCountdown.
	CountdownStartedAt *time.Time
	Config             Config
}
