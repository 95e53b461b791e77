// Package status provides a thread-safe status tracker for the guardian-door
// daemon. The controller's event loop writes it after every transition; HTTP
// handlers and MQTT payload builders read it without touching the loop.
package status

import (
	"sync"
	"time"

	"github.com/BSMSciTech/guardian-pi-door/internal/logic"
	"github.com/BSMSciTech/guardian-pi-door/internal/schedule"
)

// Snapshot is a point-in-time view of daemon state.
// It is a value type — safe to use after the lock is released.
type Snapshot struct {
	Door logic.DoorState
	Mode logic.AlarmMode

	// CountdownStartedAt/CountdownDuration describe the running session;
	// both are zero unless Mode is COUNTDOWN.
	CountdownStartedAt time.Time
	CountdownDuration  time.Duration

	Config   logic.Config
	Schedule schedule.Schedule

	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Broker        string
	Simulation    bool // true when running without door sensor hardware
}

// Remaining returns the time left on the running countdown session, zero if
// none is in flight.
func (s Snapshot) Remaining() time.Duration {
	if s.Mode != logic.ModeCountdown {
		return 0
	}
	left := s.CountdownDuration - s.Now.Sub(s.CountdownStartedAt)
	if left < 0 {
		return 0
	}
	return left
}

// AccessAllowed reports whether the snapshot time falls inside an access
// window.
func (s Snapshot) AccessAllowed() bool {
	return s.Schedule.Contains(s.Now)
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and static facts.
func NewTracker(startTime time.Time, broker string, simulation bool) *Tracker {
	return &Tracker{
		snap: Snapshot{
			Door:       logic.DoorClosed,
			Mode:       logic.ModeNormal,
			StartTime:  startTime,
			Broker:     broker,
			Simulation: simulation,
		},
	}
}

// Update sets the controller-owned fields. Called by the event loop after
// every transition.
func (t *Tracker) Update(door logic.DoorState, mode logic.AlarmMode,
	countdownStart time.Time, countdownDuration time.Duration,
	cfg logic.Config, sched schedule.Schedule) {
	t.mu.Lock()
	t.snap.Door = door
	t.snap.Mode = mode
	t.snap.CountdownStartedAt = countdownStart
	t.snap.CountdownDuration = countdownDuration
	t.snap.Config = cfg
	t.snap.Schedule = sched
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
