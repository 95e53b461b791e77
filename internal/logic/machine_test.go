package logic

import (
	"testing"
	"time"
)

func newTestMachine(t *testing.T, cfg Config) *Machine {
	t.Helper()
	m, err := NewMachine(cfg)
	if err != nil {
		t.Fatalf("NewMachine: %v", err)
	}
	return m
}

func eventTypes(events []Event) []EventType {
	types := make([]EventType, len(events))
	for i, e := range events {
		types[i] = e.Type
	}
	return types
}

func assertEventTypes(t *testing.T, events []Event, want ...EventType) {
	t.Helper()
	got := eventTypes(events)
	if len(got) != len(want) {
		t.Fatalf("events: got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("events: got %v, want %v", got, want)
		}
	}
}

func TestNewMachineColdStart(t *testing.T) {
	m := newTestMachine(t, Config{TimerDuration: 30 * time.Second})
	if m.Door() != DoorClosed {
		t.Errorf("door: got %s, want CLOSED", m.Door())
	}
	if m.Mode() != ModeNormal {
		t.Errorf("mode: got %s, want NORMAL", m.Mode())
	}
}

func TestNewMachineRejectsInvalidConfig(t *testing.T) {
	if _, err := NewMachine(Config{TimerDuration: 0}); err == nil {
		t.Error("expected error for zero duration")
	}
	if _, err := NewMachine(Config{TimerDuration: 100000 * time.Second}); err == nil {
		t.Error("expected error for duration above bound")
	}
}

func TestOpenInsideWindowStaysNormal(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	for _, instant := range []bool{false, true} {
		m := newTestMachine(t, Config{TimerDuration: 5 * time.Second, InstantAlarm: instant})
		events := m.DoorOpened(now, true)
		assertEventTypes(t, events, EventDoorOpen, EventAccessAllowed)
		if m.Mode() != ModeNormal {
			t.Errorf("instant=%v: mode: got %s, want NORMAL", instant, m.Mode())
		}
		if m.Door() != DoorOpen {
			t.Errorf("instant=%v: door: got %s, want OPEN", instant, m.Door())
		}
	}
}

func TestOpenOutsideWindowStartsCountdown(t *testing.T) {
	now := time.Date(2026, 3, 2, 3, 0, 0, 0, time.UTC)
	m := newTestMachine(t, Config{TimerDuration: 5 * time.Second})

	events := m.DoorOpened(now, false)
	assertEventTypes(t, events, EventDoorOpen, EventAccessViolation, EventTimerStart)
	if m.Mode() != ModeCountdown {
		t.Fatalf("mode: got %s, want COUNTDOWN", m.Mode())
	}
	if got := m.Remaining(now); got != 5*time.Second {
		t.Errorf("remaining: got %v, want 5s", got)
	}
	if got := m.Remaining(now.Add(3 * time.Second)); got != 2*time.Second {
		t.Errorf("remaining after 3s: got %v, want 2s", got)
	}
}

func TestOpenOutsideWindowInstantMode(t *testing.T) {
	now := time.Date(2026, 3, 2, 3, 0, 0, 0, time.UTC)
	m := newTestMachine(t, Config{TimerDuration: 5 * time.Second, InstantAlarm: true})

	events := m.DoorOpened(now, false)
	assertEventTypes(t, events, EventDoorOpen, EventAccessViolation, EventAlarmTrigger)
	if m.Mode() != ModeAlarmed {
		t.Fatalf("mode: got %s, want ALARMED (no intermediate COUNTDOWN)", m.Mode())
	}
}

func TestCloseDuringCountdownCancels(t *testing.T) {
	now := time.Date(2026, 3, 2, 3, 0, 0, 0, time.UTC)
	m := newTestMachine(t, Config{TimerDuration: 5 * time.Second})

	m.DoorOpened(now, false)
	events := m.DoorClosed(now.Add(3 * time.Second))
	assertEventTypes(t, events, EventDoorClose, EventTimerStop)
	if m.Mode() != ModeNormal {
		t.Fatalf("mode: got %s, want NORMAL", m.Mode())
	}

	// Reopen starts a fresh session with full duration.
	m.DoorOpened(now.Add(4*time.Second), false)
	if got := m.Remaining(now.Add(4 * time.Second)); got != 5*time.Second {
		t.Errorf("remaining of new session: got %v, want 5s", got)
	}

	events = m.CountdownExpired(now.Add(9 * time.Second))
	assertEventTypes(t, events, EventAlarmTrigger)
	if m.Mode() != ModeAlarmed {
		t.Errorf("mode: got %s, want ALARMED", m.Mode())
	}
}

func TestCloseDuringAlarmDoesNotClear(t *testing.T) {
	now := time.Date(2026, 3, 2, 3, 0, 0, 0, time.UTC)
	m := newTestMachine(t, Config{TimerDuration: 5 * time.Second, InstantAlarm: true})

	m.DoorOpened(now, false)
	events := m.DoorClosed(now.Add(time.Second))
	assertEventTypes(t, events, EventDoorClose)
	if m.Door() != DoorClosed {
		t.Errorf("door: got %s, want CLOSED", m.Door())
	}
	if m.Mode() != ModeAlarmed {
		t.Errorf("mode: got %s, want ALARMED (alarm is sticky)", m.Mode())
	}

	// Only an operator reset returns to NORMAL.
	events = m.Reset(now.Add(2*time.Second), "admin")
	assertEventTypes(t, events, EventAlarmReset)
	if events[0].Actor != "admin" {
		t.Errorf("actor: got %q, want admin", events[0].Actor)
	}
	if m.Mode() != ModeNormal {
		t.Errorf("mode after reset: got %s, want NORMAL", m.Mode())
	}
}

func TestResetDuringCountdown(t *testing.T) {
	now := time.Date(2026, 3, 2, 3, 0, 0, 0, time.UTC)
	m := newTestMachine(t, Config{TimerDuration: 5 * time.Second})

	m.DoorOpened(now, false)
	m.Reset(now.Add(time.Second), "")
	if m.Mode() != ModeNormal {
		t.Fatalf("mode: got %s, want NORMAL", m.Mode())
	}

	// The cancelled session's expiry must be a no-op.
	events := m.CountdownExpired(now.Add(5 * time.Second))
	if len(events) != 0 {
		t.Errorf("stale expiry produced events: %v", eventTypes(events))
	}
	if m.Mode() != ModeNormal {
		t.Errorf("mode after stale expiry: got %s, want NORMAL", m.Mode())
	}
}

func TestResetWhileNormalIsLoggedNoOp(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	m := newTestMachine(t, Config{TimerDuration: 5 * time.Second})

	events := m.Reset(now, "admin")
	assertEventTypes(t, events, EventAlarmReset)
	if m.Mode() != ModeNormal {
		t.Errorf("mode: got %s, want NORMAL", m.Mode())
	}
}

func TestDuplicateEdgesAreIdempotent(t *testing.T) {
	now := time.Date(2026, 3, 2, 3, 0, 0, 0, time.UTC)
	m := newTestMachine(t, Config{TimerDuration: 5 * time.Second})

	if events := m.DoorClosed(now); len(events) != 0 {
		t.Errorf("close while CLOSED: got %v, want none", eventTypes(events))
	}

	m.DoorOpened(now, false)
	remaining := m.Remaining(now.Add(2 * time.Second))
	if events := m.DoorOpened(now.Add(2*time.Second), false); len(events) != 0 {
		t.Errorf("open while OPEN: got %v, want none", eventTypes(events))
	}
	// A duplicate open must not restart the session.
	if got := m.Remaining(now.Add(2 * time.Second)); got != remaining {
		t.Errorf("remaining changed on duplicate edge: got %v, want %v", got, remaining)
	}
}

func TestReopenDuringAlarmOnlyTracksDoor(t *testing.T) {
	now := time.Date(2026, 3, 2, 3, 0, 0, 0, time.UTC)
	m := newTestMachine(t, Config{TimerDuration: 5 * time.Second, InstantAlarm: true})

	m.DoorOpened(now, false)
	m.DoorClosed(now.Add(time.Second))
	events := m.DoorOpened(now.Add(2*time.Second), false)
	assertEventTypes(t, events, EventDoorOpen)
	if m.Mode() != ModeAlarmed {
		t.Errorf("mode: got %s, want ALARMED", m.Mode())
	}
}

func TestSetConfigDoesNotRescaleRunningSession(t *testing.T) {
	now := time.Date(2026, 3, 2, 3, 0, 0, 0, time.UTC)
	m := newTestMachine(t, Config{TimerDuration: 5 * time.Second})

	m.DoorOpened(now, false)
	if err := m.SetConfig(Config{TimerDuration: 60 * time.Second}); err != nil {
		t.Fatalf("SetConfig: %v", err)
	}
	if got := m.Remaining(now.Add(time.Second)); got != 4*time.Second {
		t.Errorf("remaining: got %v, want 4s (session keeps its original duration)", got)
	}

	// The new duration applies to the next session.
	m.DoorClosed(now.Add(2 * time.Second))
	m.DoorOpened(now.Add(3*time.Second), false)
	if got := m.Remaining(now.Add(3 * time.Second)); got != 60*time.Second {
		t.Errorf("new session remaining: got %v, want 60s", got)
	}
}

func TestSetConfigRejectsOutOfRange(t *testing.T) {
	m := newTestMachine(t, Config{TimerDuration: 30 * time.Second})

	for _, d := range []time.Duration{0, 100000 * time.Second, -5 * time.Second} {
		if err := m.SetConfig(Config{TimerDuration: d}); err == nil {
			t.Errorf("SetConfig(%v): expected error", d)
		}
	}
	if m.Config().TimerDuration != 30*time.Second {
		t.Errorf("config mutated by rejected SetConfig: %v", m.Config().TimerDuration)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	now := time.Date(2026, 3, 2, 3, 0, 0, 0, time.UTC)
	m := newTestMachine(t, Config{TimerDuration: 5 * time.Second})

	snap := m.Snapshot()
	if snap.CountdownStartedAt != nil {
		t.Error("NORMAL snapshot should have no countdown timestamp")
	}

	m.DoorOpened(now, false)
	snap = m.Snapshot()
	if snap.Mode != ModeCountdown {
		t.Fatalf("snapshot mode: got %s, want COUNTDOWN", snap.Mode)
	}
	if snap.CountdownStartedAt == nil || !snap.CountdownStartedAt.Equal(now) {
		t.Fatalf("snapshot countdown start: got %v, want %v", snap.CountdownStartedAt, now)
	}
}

func TestRestoreExpiredCountdownAlarms(t *testing.T) {
	now := time.Date(2026, 3, 2, 3, 0, 0, 0, time.UTC)
	started := now.Add(-10 * time.Second)
	snap := Snapshot{
		Door:               DoorOpen,
		Mode:               ModeCountdown,
		CountdownStartedAt: &started,
		Config:             Config{TimerDuration: 5 * time.Second},
	}

	m, events, err := Restore(snap, now)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if m.Mode() != ModeAlarmed {
		t.Fatalf("mode: got %s, want ALARMED", m.Mode())
	}
	assertEventTypes(t, events, EventAlarmTrigger)
}

func TestRestoreRunningCountdownResumes(t *testing.T) {
	now := time.Date(2026, 3, 2, 3, 0, 0, 0, time.UTC)
	started := now.Add(-2 * time.Second)
	snap := Snapshot{
		Door:               DoorOpen,
		Mode:               ModeCountdown,
		CountdownStartedAt: &started,
		Config:             Config{TimerDuration: 5 * time.Second},
	}

	m, events, err := Restore(snap, now)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("resume produced events: %v", eventTypes(events))
	}
	if m.Mode() != ModeCountdown {
		t.Fatalf("mode: got %s, want COUNTDOWN", m.Mode())
	}
	if got := m.Remaining(now); got != 3*time.Second {
		t.Errorf("remaining: got %v, want 3s", got)
	}
}

func TestRestoreAlarmedAndNormal(t *testing.T) {
	now := time.Date(2026, 3, 2, 3, 0, 0, 0, time.UTC)
	cfg := Config{TimerDuration: 5 * time.Second}

	m, events, err := Restore(Snapshot{Door: DoorClosed, Mode: ModeAlarmed, Config: cfg}, now)
	if err != nil {
		t.Fatalf("Restore ALARMED: %v", err)
	}
	if m.Mode() != ModeAlarmed || len(events) != 0 {
		t.Errorf("ALARMED resume: mode=%s events=%v", m.Mode(), eventTypes(events))
	}

	m, events, err = Restore(Snapshot{Door: DoorClosed, Mode: ModeNormal, Config: cfg}, now)
	if err != nil {
		t.Fatalf("Restore NORMAL: %v", err)
	}
	if m.Mode() != ModeNormal || len(events) != 0 {
		t.Errorf("NORMAL resume: mode=%s events=%v", m.Mode(), eventTypes(events))
	}
}

func TestRestoreRejectsCorruptSnapshot(t *testing.T) {
	now := time.Date(2026, 3, 2, 3, 0, 0, 0, time.UTC)
	cfg := Config{TimerDuration: 5 * time.Second}

	if _, _, err := Restore(Snapshot{Mode: ModeCountdown, Config: cfg}, now); err == nil {
		t.Error("expected error for COUNTDOWN without start timestamp")
	}
	if _, _, err := Restore(Snapshot{Mode: "BOGUS", Config: cfg}, now); err == nil {
		t.Error("expected error for unknown mode")
	}
}

// Alarm reachability: replay arbitrary edge sequences and verify ALARMED is
// only ever entered from NORMAL (instant) or COUNTDOWN (expiry), never by a
// door-close edge.
func TestAlarmedOnlyReachableByTriggerPaths(t *testing.T) {
	now := time.Date(2026, 3, 2, 3, 0, 0, 0, time.UTC)

	type step func(m *Machine, t time.Time) []Event
	open := func(m *Machine, t time.Time) []Event { return m.DoorOpened(t, false) }
	openAllowed := func(m *Machine, t time.Time) []Event { return m.DoorOpened(t, true) }
	closeDoor := func(m *Machine, t time.Time) []Event { return m.DoorClosed(t) }
	expire := func(m *Machine, t time.Time) []Event { return m.CountdownExpired(t) }
	reset := func(m *Machine, t time.Time) []Event { return m.Reset(t, "") }

	sequences := [][]step{
		{open, closeDoor, open, expire, closeDoor, open, closeDoor},
		{openAllowed, closeDoor, open, closeDoor, reset, open, expire},
		{open, expire, reset, closeDoor, open, closeDoor},
		{closeDoor, closeDoor, open, open, expire, expire},
	}

	for si, seq := range sequences {
		m := newTestMachine(t, Config{TimerDuration: 5 * time.Second})
		for i, apply := range seq {
			prev := m.Mode()
			events := apply(m, now.Add(time.Duration(i)*time.Second))
			if m.Mode() == ModeAlarmed && prev != ModeAlarmed {
				for _, e := range events {
					if e.Type == EventDoorClose {
						t.Fatalf("seq %d step %d: entered ALARMED on a close edge", si, i)
					}
				}
				if prev != ModeNormal && prev != ModeCountdown {
					t.Fatalf("seq %d step %d: entered ALARMED from %s", si, i, prev)
				}
			}
		}
	}
}
