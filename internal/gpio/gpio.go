// Package gpio provides the door sensor input and indicator outputs with
// hardware abstraction. The real implementation uses the Linux GPIO
// character device. The fake implementations allow testing without hardware.
//
// The sensor's electrical polarity (pull-up vs pull-down wiring) is handled
// entirely inside this package: everything above it sees a normalized
// "door open" boolean.
package gpio

// Sensor reads the door contact.
type Sensor interface {
	// Read returns true if the door is currently open.
	Read() (bool, error)

	// Close releases GPIO resources.
	Close() error
}

// Indicators drives the three indicator outputs. Each output is a pure
// function of controller state: ready is on for the daemon's lifetime,
// countdown carries the blink pattern, alert is on while alarmed.
type Indicators interface {
	SetReady(on bool) error
	SetCountdown(on bool) error
	SetAlert(on bool) error

	// Close turns all outputs off and releases GPIO resources.
	Close() error
}

// Pin defaults (BCM numbering).
const (
	DefaultPinSensor    = 17 // door contact
	DefaultPinReady     = 25 // green LED
	DefaultPinCountdown = 27 // red LED
	DefaultPinAlert     = 23 // white LED / buzzer drive
)

// Pins holds the line assignments and sensor wiring for one door.
type Pins struct {
	Sensor    int
	Ready     int
	Countdown int
	Alert     int

	// SensorActiveLow is true when the contact pulls the line low while the
	// door is open (pull-up wiring). Both wirings exist in the field; never
	// assume one.
	SensorActiveLow bool
}

// DefaultPins returns the stock wiring: pull-up door contact on 17,
// LEDs on 25/27/23.
func DefaultPins() Pins {
	return Pins{
		Sensor:          DefaultPinSensor,
		Ready:           DefaultPinReady,
		Countdown:       DefaultPinCountdown,
		Alert:           DefaultPinAlert,
		SensorActiveLow: true,
	}
}
