//go:build linux

package gpio

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// RealSensor reads the door contact from actual hardware using the Linux
// GPIO character device.
type RealSensor struct {
	chip      *gpiocdev.Chip
	line      *gpiocdev.Line
	activeLow bool
}

// NewRealSensor requests the sensor line as input. The pull resistor matches
// the configured polarity: pull-up for active-low contacts, pull-down
// otherwise, so a disconnected sensor reads as "closed".
func NewRealSensor(pins Pins) (*RealSensor, error) {
	chip, err := gpiocdev.NewChip("gpiochip0")
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	bias := gpiocdev.WithPullDown
	if pins.SensorActiveLow {
		bias = gpiocdev.WithPullUp
	}
	line, err := chip.RequestLine(pins.Sensor, gpiocdev.AsInput, bias)
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request sensor pin %d: %w", pins.Sensor, err)
	}

	return &RealSensor{chip: chip, line: line, activeLow: pins.SensorActiveLow}, nil
}

// Read returns the normalized door state: true = open.
func (s *RealSensor) Read() (bool, error) {
	raw, err := s.line.Value()
	if err != nil {
		return false, fmt.Errorf("read sensor pin: %w", err)
	}
	if s.activeLow {
		return raw == 0, nil
	}
	return raw != 0, nil
}

// Close releases the sensor line. The line is reconfigured to input with
// pull-down (the Pi boot default) first, so a restart sees a clean state.
func (s *RealSensor) Close() error {
	var errs []error
	if s.line != nil {
		if err := s.line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure sensor pin: %w", err))
		}
		if err := s.line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close sensor pin: %w", err))
		}
	}
	if s.chip != nil {
		if err := s.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

// RealIndicators drives the three LED lines on actual hardware.
type RealIndicators struct {
	chip      *gpiocdev.Chip
	ready     *gpiocdev.Line
	countdown *gpiocdev.Line
	alert     *gpiocdev.Line
}

// NewRealIndicators requests the three output lines, all initially off.
func NewRealIndicators(pins Pins) (*RealIndicators, error) {
	chip, err := gpiocdev.NewChip("gpiochip0")
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	ind := &RealIndicators{chip: chip}
	for _, req := range []struct {
		pin  int
		dst  **gpiocdev.Line
		name string
	}{
		{pins.Ready, &ind.ready, "ready"},
		{pins.Countdown, &ind.countdown, "countdown"},
		{pins.Alert, &ind.alert, "alert"},
	} {
		line, err := chip.RequestLine(req.pin, gpiocdev.AsOutput(0))
		if err != nil {
			ind.Close()
			return nil, fmt.Errorf("request %s pin %d: %w", req.name, req.pin, err)
		}
		*req.dst = line
	}
	return ind, nil
}

func setLine(line *gpiocdev.Line, on bool) error {
	v := 0
	if on {
		v = 1
	}
	return line.SetValue(v)
}

// SetReady drives the green LED.
func (i *RealIndicators) SetReady(on bool) error { return setLine(i.ready, on) }

// SetCountdown drives the red LED.
func (i *RealIndicators) SetCountdown(on bool) error { return setLine(i.countdown, on) }

// SetAlert drives the white LED / buzzer line.
func (i *RealIndicators) SetAlert(on bool) error { return setLine(i.alert, on) }

// Close turns every output off and releases the lines.
func (i *RealIndicators) Close() error {
	var errs []error
	for _, line := range []*gpiocdev.Line{i.ready, i.countdown, i.alert} {
		if line == nil {
			continue
		}
		if err := line.SetValue(0); err != nil {
			errs = append(errs, err)
		}
		if err := line.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if i.chip != nil {
		if err := i.chip.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
