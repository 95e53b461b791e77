package gpio

import (
	"errors"
	"sync"
)

// FakeSensor is a test double whose door state is set directly by the test.
type FakeSensor struct {
	mu sync.Mutex

	// open is the current scripted door state.
	open bool

	// Closed tracks if Close was called.
	Closed bool

	// ReadError, if set, will be returned by Read.
	ReadError error
}

// NewFakeSensor creates a FakeSensor with the door closed.
func NewFakeSensor() *FakeSensor {
	return &FakeSensor{}
}

// SetOpen scripts the door state for subsequent reads.
func (f *FakeSensor) SetOpen(open bool) {
	f.mu.Lock()
	f.open = open
	f.mu.Unlock()
}

// Read returns the scripted door state.
func (f *FakeSensor) Read() (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ReadError != nil {
		return false, f.ReadError
	}
	return f.open, nil
}

// Close marks the sensor as closed.
func (f *FakeSensor) Close() error {
	f.mu.Lock()
	f.Closed = true
	f.mu.Unlock()
	return nil
}

// FakeIndicators records output levels and every transition for assertions.
type FakeIndicators struct {
	mu sync.Mutex

	ready     bool
	countdown bool
	alert     bool

	// Transitions records each Set call as "name=on/off" in order.
	Transitions []string

	// Closed tracks if Close was called.
	Closed bool

	// SetError, if set, will be returned by every Set call.
	SetError error
}

// NewFakeIndicators creates a FakeIndicators with all outputs off.
func NewFakeIndicators() *FakeIndicators {
	return &FakeIndicators{}
}

func (f *FakeIndicators) set(name string, dst *bool, on bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SetError != nil {
		return f.SetError
	}
	if f.Closed {
		return errors.New("indicators closed")
	}
	*dst = on
	state := "off"
	if on {
		state = "on"
	}
	f.Transitions = append(f.Transitions, name+"="+state)
	return nil
}

// SetReady records the ready output level.
func (f *FakeIndicators) SetReady(on bool) error { return f.set("ready", &f.ready, on) }

// SetCountdown records the countdown output level.
func (f *FakeIndicators) SetCountdown(on bool) error { return f.set("countdown", &f.countdown, on) }

// SetAlert records the alert output level.
func (f *FakeIndicators) SetAlert(on bool) error { return f.set("alert", &f.alert, on) }

// States returns the current (ready, countdown, alert) levels.
func (f *FakeIndicators) States() (bool, bool, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ready, f.countdown, f.alert
}

// Close marks the indicators as closed.
func (f *FakeIndicators) Close() error {
	f.mu.Lock()
	f.Closed = true
	f.mu.Unlock()
	return nil
}
