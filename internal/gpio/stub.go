//go:build !linux

package gpio

import "errors"

var errNotSupported = errors.New("gpio: not supported on this platform (requires Linux)")

// RealSensor is not available on non-Linux platforms.
type RealSensor struct{}

// NewRealSensor returns an error on non-Linux platforms.
func NewRealSensor(Pins) (*RealSensor, error) { return nil, errNotSupported }

// Read is not implemented on non-Linux platforms.
func (s *RealSensor) Read() (bool, error) { return false, errNotSupported }

// Close is not implemented on non-Linux platforms.
func (s *RealSensor) Close() error { return nil }

// RealIndicators is not available on non-Linux platforms.
type RealIndicators struct{}

// NewRealIndicators returns an error on non-Linux platforms.
func NewRealIndicators(Pins) (*RealIndicators, error) { return nil, errNotSupported }

// SetReady is not implemented on non-Linux platforms.
func (i *RealIndicators) SetReady(bool) error { return errNotSupported }

// SetCountdown is not implemented on non-Linux platforms.
func (i *RealIndicators) SetCountdown(bool) error { return errNotSupported }

// SetAlert is not implemented on non-Linux platforms.
func (i *RealIndicators) SetAlert(bool) error { return errNotSupported }

// Close is not implemented on non-Linux platforms.
func (i *RealIndicators) Close() error { return nil }
