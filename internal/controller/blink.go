package controller

import (
	"time"

	"github.com/BSMSciTech/guardian-pi-door/internal/gpio"
)

// blinkTask toggles the countdown indicator at a fixed half-period. It is a
// child resource of the controller: it never mutates controller state, only
// the output, and it is always stopped through stop with a bounded join.
// The output is guaranteed OFF once the goroutine exits.
type blinkTask struct {
	stopCh chan struct{}
	doneCh chan struct{}
}

func startBlink(ind gpio.Indicators, interval time.Duration) *blinkTask {
	t := &blinkTask{
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
	go func() {
		defer close(t.doneCh)
		defer func() { _ = ind.SetCountdown(false) }()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		on := true
		_ = ind.SetCountdown(true)
		for {
			select {
			case <-t.stopCh:
				return
			case <-ticker.C:
				on = !on
				_ = ind.SetCountdown(on)
			}
		}
	}()
	return t
}

// stop signals the task and waits up to timeout for it to exit. Returns
// false if the join timed out.
func (t *blinkTask) stop(timeout time.Duration) bool {
	close(t.stopCh)
	select {
	case <-t.doneCh:
		return true
	case <-time.After(timeout):
		return false
	}
}
