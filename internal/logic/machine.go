package logic

import (
	"fmt"
	"time"
)

// Machine is the door alarm state machine. It is purely transitional:
// callers feed it edges, commands and the current time, and it returns the
// events produced by the transition. All scheduling (the actual countdown
// timer, the blink task) lives with the caller; the machine only records
// that a countdown session exists and when it started.
//
// Not safe for concurrent use. The owning controller serializes all calls.
type Machine struct {
	door DoorState
	mode AlarmMode
	cfg  Config

	// Countdown session, valid only while mode == ModeCountdown.
	// sessionDuration is captured at session start: changing the configured
	// duration never rescales a session already in flight.
	countdownStart  time.Time
	sessionDuration time.Duration
}

// NewMachine creates a machine in the cold-start state: NORMAL, door closed.
func NewMachine(cfg Config) (*Machine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Machine{
		door: DoorClosed,
		mode: ModeNormal,
		cfg:  cfg,
	}, nil
}

// Restore rebuilds a machine from a persisted snapshot and reconciles the
// passage of time across the restart. If a countdown was in flight and has
// already run out, the machine starts directly in ALARMED and the returned
// events include the ALARM_TRIGGER that could not fire while the process
// was down. If the countdown still has time left, the machine resumes
// COUNTDOWN and the caller must schedule a timer for Remaining(now).
func Restore(snap Snapshot, now time.Time) (*Machine, []Event, error) {
	if err := snap.Config.Validate(); err != nil {
		return nil, nil, fmt.Errorf("snapshot config: %w", err)
	}

	m := &Machine{
		door: snap.Door,
		mode: snap.Mode,
		cfg:  snap.Config,
	}
	if m.door == "" {
		m.door = DoorClosed
	}

	switch snap.Mode {
	case ModeCountdown:
		if snap.CountdownStartedAt == nil {
			return nil, nil, fmt.Errorf("snapshot mode COUNTDOWN without start timestamp")
		}
		elapsed := now.Sub(*snap.CountdownStartedAt)
		if elapsed >= snap.Config.TimerDuration {
			// The countdown should already have fired. Surface the breach
			// instead of silently dropping it.
			m.mode = ModeAlarmed
			return m, []Event{m.event(now, EventAlarmTrigger,
				"Countdown expired while the system was offline", SeverityCritical)}, nil
		}
		m.countdownStart = *snap.CountdownStartedAt
		m.sessionDuration = snap.Config.TimerDuration
		return m, nil, nil
	case ModeAlarmed, ModeNormal, "":
		if m.mode == "" {
			m.mode = ModeNormal
		}
		return m, nil, nil
	}
	return nil, nil, fmt.Errorf("snapshot has unknown alarm mode %q", snap.Mode)
}

// Door returns the current physical door state.
func (m *Machine) Door() DoorState { return m.door }

// Mode returns the current alarm mode.
func (m *Machine) Mode() AlarmMode { return m.mode }

// Config returns the current controller settings.
func (m *Machine) Config() Config { return m.cfg }

// Remaining returns how much of the running countdown session is left,
// or zero if no session is in flight.
func (m *Machine) Remaining(now time.Time) time.Duration {
	if m.mode != ModeCountdown {
		return 0
	}
	left := m.sessionDuration - now.Sub(m.countdownStart)
	if left < 0 {
		return 0
	}
	return left
}

// Session returns the running countdown session's start and duration.
// ok is false when no session is in flight.
func (m *Machine) Session() (start time.Time, duration time.Duration, ok bool) {
	if m.mode != ModeCountdown {
		return time.Time{}, 0, false
	}
	return m.countdownStart, m.sessionDuration, true
}

// Snapshot returns the durable projection of the current state.
func (m *Machine) Snapshot() Snapshot {
	snap := Snapshot{
		Door:   m.door,
		Mode:   m.mode,
		Config: m.cfg,
	}
	if m.mode == ModeCountdown {
		t := m.countdownStart
		snap.CountdownStartedAt = &t
	}
	return snap
}

// DoorOpened applies a door-open edge. accessAllowed is the schedule gate
// evaluated at the time of the edge. A repeated open while the door is
// already OPEN is a duplicate sensor edge and produces no transition and
// no events.
func (m *Machine) DoorOpened(now time.Time, accessAllowed bool) []Event {
	if m.door == DoorOpen {
		return nil
	}
	m.door = DoorOpen

	events := []Event{m.event(now, EventDoorOpen, "Door was opened", SeverityWarning)}

	if m.mode != ModeNormal {
		// Reopening during an active alarm changes only the door state.
		// ALARMED is reachable solely via instant mode or countdown expiry.
		return events
	}

	if accessAllowed {
		events = append(events, m.event(now, EventAccessAllowed,
			"Door access within scheduled hours", SeverityInfo))
		return events
	}

	events = append(events, m.event(now, EventAccessViolation,
		"Door opened outside scheduled hours", SeverityWarning))

	if m.cfg.InstantAlarm {
		m.mode = ModeAlarmed
		events = append(events, m.event(now, EventAlarmTrigger,
			"Security alarm was triggered", SeverityCritical))
		return events
	}

	m.mode = ModeCountdown
	m.countdownStart = now
	m.sessionDuration = m.cfg.TimerDuration
	events = append(events, m.event(now, EventTimerStart,
		fmt.Sprintf("Timer started for %d seconds", int(m.sessionDuration.Seconds())),
		SeverityWarning))
	return events
}

// DoorClosed applies a door-close edge. Closing during COUNTDOWN cancels the
// session; closing during ALARMED does not clear the alarm — the breach
// already happened and must be acknowledged by an operator reset.
func (m *Machine) DoorClosed(now time.Time) []Event {
	if m.door == DoorClosed {
		return nil
	}
	m.door = DoorClosed

	events := []Event{m.event(now, EventDoorClose, "Door was closed", SeverityInfo)}

	if m.mode == ModeCountdown {
		m.clearSession()
		m.mode = ModeNormal
		events = append(events, m.event(now, EventTimerStop,
			"Timer stopped - door closed in time", SeverityInfo))
	}
	return events
}

// CountdownExpired applies a countdown expiry. A stale expiry (session
// already cancelled, alarm already raised) is a no-op; the controller's
// generation check makes this unreachable in practice, this guard keeps the
// invariant local too.
func (m *Machine) CountdownExpired(now time.Time) []Event {
	if m.mode != ModeCountdown {
		return nil
	}
	m.clearSession()
	m.mode = ModeAlarmed
	return []Event{m.event(now, EventAlarmTrigger,
		"Security alarm was triggered", SeverityCritical)}
}

// Reset applies an operator reset. It returns the machine to NORMAL from any
// mode and cancels a running countdown session. A reset while already NORMAL
// is a no-op transition but is still logged.
func (m *Machine) Reset(now time.Time, actor string) []Event {
	m.clearSession()
	m.mode = ModeNormal

	ev := m.event(now, EventAlarmReset, "Alarm was manually reset", SeverityInfo)
	ev.Actor = actor
	return []Event{ev}
}

// SetConfig replaces the controller settings. Invalid settings are rejected
// with no state change. A running countdown session keeps the duration it
// was started with.
func (m *Machine) SetConfig(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	m.cfg = cfg
	return nil
}

func (m *Machine) clearSession() {
	m.countdownStart = time.Time{}
	m.sessionDuration = 0
}

func (m *Machine) event(now time.Time, t EventType, desc string, sev Severity) Event {
	return Event{
		Timestamp:   now,
		Type:        t,
		Description: desc,
		Severity:    sev,
		Door:        m.door,
		Mode:        m.mode,
	}
}
