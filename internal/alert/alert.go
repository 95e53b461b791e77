// Package alert plays the audible alarm. Playback is best-effort: a missing
// sound file or player binary degrades to silence, never to a failed
// transition.
package alert

import (
	"os"
	"os/exec"
	"sync"

	"go.uber.org/zap"
)

// Player triggers the audible alert. Play must not block the caller.
type Player interface {
	Play()
}

// Nop is the silent player used when no sound is configured or available.
type Nop struct{}

// Play does nothing.
func (Nop) Play() {}

// Aplay shells out to aplay(1) for WAV playback.
type Aplay struct {
	path string
	log  *zap.SugaredLogger

	warnOnce sync.Once
}

// NewPlayer returns an Aplay player for the given WAV file, or Nop when the
// path is empty or the file does not exist.
func NewPlayer(path string, log *zap.SugaredLogger) Player {
	if path == "" {
		return Nop{}
	}
	if _, err := os.Stat(path); err != nil {
		log.Warnw("alarm sound unavailable, alerts will be silent", "path", path, "error", err)
		return Nop{}
	}
	return &Aplay{path: path, log: log}
}

// Play starts playback in the background.
func (a *Aplay) Play() {
	cmd := exec.Command("aplay", "-q", a.path)
	if err := cmd.Start(); err != nil {
		a.warnOnce.Do(func() {
			a.log.Warnw("alarm sound playback failed", "error", err)
		})
		return
	}
	go cmd.Wait()
}

// Fake counts plays for tests.
type Fake struct {
	mu    sync.Mutex
	plays int
}

// Play increments the counter.
func (f *Fake) Play() {
	f.mu.Lock()
	f.plays++
	f.mu.Unlock()
}

// Plays returns how many times Play was called.
func (f *Fake) Plays() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.plays
}
