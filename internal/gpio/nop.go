package gpio

import "sync"

// NopIndicators discards all output writes. Used when indicator hardware is
// unavailable: the state machine keeps running, only the physical signal is
// missing.
type NopIndicators struct{}

// SetReady does nothing.
func (NopIndicators) SetReady(bool) error { return nil }

// SetCountdown does nothing.
func (NopIndicators) SetCountdown(bool) error { return nil }

// SetAlert does nothing.
func (NopIndicators) SetAlert(bool) error { return nil }

// Close does nothing.
func (NopIndicators) Close() error { return nil }

// DegradingIndicators wraps a driver and, on the first output error, reports
// it once and degrades to a no-op for all further writes. Later transitions
// do not repeat the warning.
type DegradingIndicators struct {
	mu        sync.Mutex
	inner     Indicators
	degraded  bool
	onDegrade func(error)
}

// NewDegrading wraps inner. onDegrade is called exactly once, with the error
// that triggered the degrade.
func NewDegrading(inner Indicators, onDegrade func(error)) *DegradingIndicators {
	return &DegradingIndicators{inner: inner, onDegrade: onDegrade}
}

func (d *DegradingIndicators) set(fn func(Indicators) error) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.degraded {
		return nil
	}
	if err := fn(d.inner); err != nil {
		d.degraded = true
		if d.onDegrade != nil {
			d.onDegrade(err)
		}
	}
	return nil
}

// SetReady forwards to the wrapped driver until degraded.
func (d *DegradingIndicators) SetReady(on bool) error {
	return d.set(func(i Indicators) error { return i.SetReady(on) })
}

// SetCountdown forwards to the wrapped driver until degraded.
func (d *DegradingIndicators) SetCountdown(on bool) error {
	return d.set(func(i Indicators) error { return i.SetCountdown(on) })
}

// SetAlert forwards to the wrapped driver until degraded.
func (d *DegradingIndicators) SetAlert(on bool) error {
	return d.set(func(i Indicators) error { return i.SetAlert(on) })
}

// Close closes the wrapped driver.
func (d *DegradingIndicators) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.inner.Close()
}
