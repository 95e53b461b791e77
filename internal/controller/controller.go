// Package controller runs the door alarm state machine. All mutation —
// sensor edges, operator commands, countdown expiries — funnels through one
// event-loop goroutine, so no transition is ever applied while another is in
// flight. Reads go through the status tracker and never touch the loop.
package controller

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/BSMSciTech/guardian-pi-door/internal/alert"
	"github.com/BSMSciTech/guardian-pi-door/internal/gpio"
	"github.com/BSMSciTech/guardian-pi-door/internal/logic"
	"github.com/BSMSciTech/guardian-pi-door/internal/schedule"
	"github.com/BSMSciTech/guardian-pi-door/internal/status"
)

// ErrStopped is returned by commands submitted after the controller stopped.
var ErrStopped = errors.New("controller stopped")

// Sink receives controller events. Implementations must not block.
type Sink interface {
	Emit(e logic.Event)
}

// MultiSink fans one event out to several sinks.
type MultiSink []Sink

// Emit delivers the event to every sink in order.
func (m MultiSink) Emit(e logic.Event) {
	for _, s := range m {
		s.Emit(e)
	}
}

// SnapshotWriter queues controller snapshots for durable storage.
// Implementations must not block.
type SnapshotWriter interface {
	Put(snap logic.Snapshot)
}

// ScheduleWriter persists schedule replacements. Failures are non-fatal; the
// in-memory schedule stays authoritative.
type ScheduleWriter interface {
	Save(s schedule.Schedule) error
}

const (
	defaultBlinkInterval = 500 * time.Millisecond
	defaultJoinTimeout   = time.Second
	testAlarmPulse       = 2 * time.Second
)

// Options configures a Controller. Indicators, Sink, Snapshots and Logger
// are required; the rest have defaults.
type Options struct {
	// Config is the initial controller config, used when Snapshot is nil.
	Config logic.Config
	// Snapshot is the persisted state loaded at startup; nil on cold start.
	Snapshot *logic.Snapshot
	// Schedule is the access schedule active at startup.
	Schedule schedule.Schedule

	Indicators gpio.Indicators
	Alert      alert.Player
	Sink       Sink
	Snapshots  SnapshotWriter
	Schedules  ScheduleWriter // optional
	Logger     *zap.SugaredLogger

	// Now injects the clock; defaults to time.Now.
	Now func() time.Time
	// BlinkInterval is the countdown indicator half-period.
	BlinkInterval time.Duration
	// JoinTimeout bounds the wait for the blink task to stop.
	JoinTimeout time.Duration
	// Broker and Simulation are static facts surfaced in status output.
	Broker     string
	Simulation bool
}

type cmdKind int

const (
	cmdDoorEvent cmdKind = iota
	cmdReset
	cmdSetConfig
	cmdSetSchedule
	cmdExpire
	cmdTestAlarm
	cmdRestoreOutputs
)

type command struct {
	kind  cmdKind
	door  logic.DoorEvent
	actor string
	cfg   logic.Config
	sched schedule.Schedule
	gen   uint64
	reply chan error
}

// Controller owns the state machine and its child resources (countdown
// timer, blink task). Create with New, then Start; Stop releases everything.
type Controller struct {
	machine *logic.Machine
	sched   schedule.Schedule

	ind     gpio.Indicators
	alerter alert.Player
	sink    Sink
	snaps   SnapshotWriter
	schedW  ScheduleWriter
	tracker *status.Tracker
	log     *zap.SugaredLogger
	now     func() time.Time

	blinkInterval time.Duration
	joinTimeout   time.Duration

	cmds chan command
	quit chan struct{}
	done chan struct{}

	// Fields below are owned by the event loop (and Start/Stop, which run
	// strictly before/after it).
	gen            uint64
	timer          *time.Timer
	blink          *blinkTask
	pendingRestore []logic.Event
}

// New builds a controller from options. The persisted snapshot, if any, is
// reconciled here: an expired countdown surfaces as an immediate ALARMED
// start (the trigger event is emitted from Start).
func New(opts Options) (*Controller, error) {
	if opts.Indicators == nil || opts.Sink == nil || opts.Snapshots == nil || opts.Logger == nil {
		return nil, errors.New("controller: indicators, sink, snapshots and logger are required")
	}
	if err := opts.Schedule.Validate(); err != nil {
		return nil, fmt.Errorf("controller: schedule: %w", err)
	}

	c := &Controller{
		sched:         opts.Schedule,
		ind:           opts.Indicators,
		alerter:       opts.Alert,
		sink:          opts.Sink,
		snaps:         opts.Snapshots,
		schedW:        opts.Schedules,
		log:           opts.Logger,
		now:           opts.Now,
		blinkInterval: opts.BlinkInterval,
		joinTimeout:   opts.JoinTimeout,
		cmds:          make(chan command),
		quit:          make(chan struct{}),
		done:          make(chan struct{}),
	}
	if c.alerter == nil {
		c.alerter = alert.Nop{}
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.blinkInterval <= 0 {
		c.blinkInterval = defaultBlinkInterval
	}
	if c.joinTimeout <= 0 {
		c.joinTimeout = defaultJoinTimeout
	}
	c.tracker = status.NewTracker(c.now(), opts.Broker, opts.Simulation)

	var restoreEvents []logic.Event
	if opts.Snapshot != nil {
		m, events, err := logic.Restore(*opts.Snapshot, c.now())
		if err != nil {
			// A corrupt snapshot must not keep the door unmonitored.
			c.log.Warnw("snapshot unusable, starting cold", "error", err)
		} else {
			c.machine = m
			restoreEvents = events
		}
	}
	if c.machine == nil {
		m, err := logic.NewMachine(opts.Config)
		if err != nil {
			return nil, fmt.Errorf("controller: %w", err)
		}
		c.machine = m
	}
	c.pendingRestore = restoreEvents
	return c, nil
}

// Start asserts the ready output, applies the reconciled state to the
// outputs and timers, emits any reconciliation events, and launches the
// event loop.
func (c *Controller) Start() {
	_ = c.ind.SetReady(true)

	now := c.now()
	mode := c.machine.Mode()

	c.applyOutputs(mode)
	if mode == logic.ModeCountdown {
		c.startCountdown(c.machine.Remaining(now))
	}
	for _, e := range c.pendingRestore {
		c.emit(e)
		if e.Type == logic.EventAlarmTrigger {
			c.alerter.Play()
		}
	}
	c.pendingRestore = nil

	c.persistAndTrack()
	c.log.Infow("controller started",
		"door", c.machine.Door(), "mode", mode,
		"timer_duration", c.machine.Config().TimerDuration,
		"instant_alarm", c.machine.Config().InstantAlarm)

	go c.loop()
}

// Stop shuts the event loop down and releases the countdown timer and blink
// task. Safe to call once after Start.
func (c *Controller) Stop() {
	close(c.quit)
	<-c.done

	c.cancelCountdown()
	c.stopBlink()
	c.log.Infow("controller stopped")
}

// Tracker exposes the status tracker for the web layer and lifecycle
// payloads.
func (c *Controller) Tracker() *status.Tracker { return c.tracker }

// Status returns a point-in-time view of the controller.
func (c *Controller) Status() status.Snapshot { return c.tracker.Snapshot() }

// SubmitDoorEvent delivers a normalized sensor edge (or a simulated one)
// to the state machine. Duplicate same-state edges are tolerated.
func (c *Controller) SubmitDoorEvent(ev logic.DoorEvent) error {
	return c.submit(command{kind: cmdDoorEvent, door: ev})
}

// ResetAlarm executes an operator reset. Authorization lives with the
// caller; actor is recorded in the event log.
func (c *Controller) ResetAlarm(actor string) error {
	return c.submit(command{kind: cmdReset, actor: actor})
}

// SetConfig validates and applies new controller settings. Out-of-range
// durations are rejected with no state change. A running countdown keeps
// the duration it started with.
func (c *Controller) SetConfig(cfg logic.Config, actor string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	return c.submit(command{kind: cmdSetConfig, cfg: cfg, actor: actor})
}

// SetAccessSchedule validates and atomically replaces the whole schedule.
func (c *Controller) SetAccessSchedule(sched schedule.Schedule, actor string) error {
	if err := sched.Validate(); err != nil {
		return err
	}
	return c.submit(command{kind: cmdSetSchedule, sched: sched, actor: actor})
}

// TestAlarm pulses the alert output and sound without touching the state
// machine. Bench tool.
func (c *Controller) TestAlarm() error {
	return c.submit(command{kind: cmdTestAlarm})
}

func (c *Controller) submit(cmd command) error {
	cmd.reply = make(chan error, 1)
	select {
	case c.cmds <- cmd:
	case <-c.quit:
		return ErrStopped
	}
	select {
	case err := <-cmd.reply:
		return err
	case <-c.done:
		return ErrStopped
	}
}

func (c *Controller) loop() {
	defer close(c.done)
	for {
		select {
		case cmd := <-c.cmds:
			err := c.handle(cmd)
			if cmd.reply != nil {
				cmd.reply <- err
			}
		case <-c.quit:
			return
		}
	}
}

func (c *Controller) handle(cmd command) error {
	now := c.now()
	prevMode := c.machine.Mode()

	switch cmd.kind {
	case cmdDoorEvent:
		var events []logic.Event
		switch cmd.door {
		case logic.DoorEventOpen:
			events = c.machine.DoorOpened(now, c.sched.Contains(now))
		case logic.DoorEventClose:
			events = c.machine.DoorClosed(now)
		default:
			return fmt.Errorf("unknown door event %q", cmd.door)
		}
		c.finish(now, prevMode, events)

	case cmdReset:
		events := c.machine.Reset(now, cmd.actor)
		// Defensive: the machine already guarantees no session survives a
		// reset, the timer handle must not either.
		c.cancelCountdown()
		c.finish(now, prevMode, events)

	case cmdSetConfig:
		if err := c.machine.SetConfig(cmd.cfg); err != nil {
			return err
		}
		c.log.Infow("config updated", "actor", cmd.actor,
			"timer_duration", cmd.cfg.TimerDuration, "instant_alarm", cmd.cfg.InstantAlarm)
		c.persistAndTrack()

	case cmdSetSchedule:
		c.sched = cmd.sched
		c.log.Infow("access schedule replaced", "actor", cmd.actor,
			"weekday_windows", len(cmd.sched.Weekday), "weekend_windows", len(cmd.sched.Weekend))
		if c.schedW != nil {
			if err := c.schedW.Save(cmd.sched); err != nil {
				c.log.Warnw("schedule save failed", "error", err)
			}
		}
		c.persistAndTrack()

	case cmdExpire:
		if cmd.gen != c.gen {
			// A cancelled or superseded session's timer fired anyway.
			return nil
		}
		c.timer = nil
		events := c.machine.CountdownExpired(now)
		c.finish(now, prevMode, events)

	case cmdTestAlarm:
		_ = c.ind.SetAlert(true)
		c.alerter.Play()
		time.AfterFunc(testAlarmPulse, func() {
			select {
			case c.cmds <- command{kind: cmdRestoreOutputs}:
			case <-c.quit:
			}
		})

	case cmdRestoreOutputs:
		c.applyOutputs(c.machine.Mode())
	}
	return nil
}

// finish applies the side effects of a completed transition: timer
// start/cancel, indicator reconciliation, alert sound, event emit,
// persistence and status publication.
func (c *Controller) finish(now time.Time, prevMode logic.AlarmMode, events []logic.Event) {
	if len(events) == 0 {
		// Duplicate edge; nothing changed.
		return
	}
	mode := c.machine.Mode()

	if prevMode != logic.ModeCountdown && mode == logic.ModeCountdown {
		c.startCountdown(c.machine.Remaining(now))
	}
	if prevMode == logic.ModeCountdown && mode != logic.ModeCountdown {
		c.cancelCountdown()
	}

	c.applyOutputs(mode)
	if mode == logic.ModeAlarmed && prevMode != logic.ModeAlarmed {
		c.alerter.Play()
	}

	for _, e := range events {
		c.emit(e)
	}
	c.persistAndTrack()
}

func (c *Controller) emit(e logic.Event) {
	c.sink.Emit(e)
	c.log.Infow("event", "type", e.Type, "severity", e.Severity,
		"door", e.Door, "mode", e.Mode, "actor", e.Actor)
}

func (c *Controller) persistAndTrack() {
	snap := c.machine.Snapshot()
	c.snaps.Put(snap)

	start, dur, _ := c.machine.Session()
	c.tracker.Update(snap.Door, snap.Mode, start, dur, snap.Config, c.sched)
}

func (c *Controller) startCountdown(d time.Duration) {
	c.gen++
	gen := c.gen
	c.timer = time.AfterFunc(d, func() {
		select {
		case c.cmds <- command{kind: cmdExpire, gen: gen}:
		case <-c.quit:
		}
	})
}

// cancelCountdown is idempotent: cancelling an absent or already-fired
// session is a no-op. Bumping the generation makes any in-flight expiry
// message stale.
func (c *Controller) cancelCountdown() {
	c.gen++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *Controller) applyOutputs(mode logic.AlarmMode) {
	wantBlink := mode == logic.ModeCountdown
	if wantBlink && c.blink == nil {
		c.blink = startBlink(c.ind, c.blinkInterval)
	}
	if !wantBlink && c.blink != nil {
		c.stopBlink()
	}
	_ = c.ind.SetAlert(mode == logic.ModeAlarmed)
}

func (c *Controller) stopBlink() {
	if c.blink == nil {
		return
	}
	if !c.blink.stop(c.joinTimeout) {
		// Diagnostic only: a wedged blink task must not stall a reset or
		// shutdown. Force the output off ourselves.
		c.log.Warnw("blink task did not stop within timeout", "timeout", c.joinTimeout)
		_ = c.ind.SetCountdown(false)
	}
	c.blink = nil
}
