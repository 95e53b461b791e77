package eventlog

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BSMSciTech/guardian-pi-door/internal/logic"
)

const defaultSinkBuffer = 256

// Sink delivers controller events to the store without ever blocking the
// caller. If the buffer fills (disk stall), events are dropped and the drop
// is logged once per episode.
type Sink struct {
	store *Store
	log   *zap.SugaredLogger

	ch   chan Record
	done chan struct{}
	wg   sync.WaitGroup

	mu       sync.Mutex
	dropping bool
	closed   bool
}

// NewSink starts the background writer.
func NewSink(store *Store, log *zap.SugaredLogger) *Sink {
	s := &Sink{
		store: store,
		log:   log,
		ch:    make(chan Record, defaultSinkBuffer),
		done:  make(chan struct{}),
	}
	s.wg.Add(1)
	go s.run()
	return s
}

// Emit implements the controller's event sink. Fire-and-forget.
func (s *Sink) Emit(e logic.Event) {
	rec := Record{
		Timestamp:   e.Timestamp,
		Type:        e.Type,
		Description: e.Description,
		Severity:    e.Severity,
		Actor:       e.Actor,
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	select {
	case s.ch <- rec:
		s.setDropping(false)
	default:
		if !s.setDropping(true) {
			s.log.Warnw("event log buffer full, dropping events", "buffer", cap(s.ch))
		}
	}
}

// setDropping updates the drop flag and returns its previous value.
func (s *Sink) setDropping(v bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.dropping
	s.dropping = v
	return prev
}

// Close drains buffered events and stops the writer.
func (s *Sink) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	close(s.done)
	s.wg.Wait()
}

func (s *Sink) run() {
	defer s.wg.Done()
	for {
		select {
		case rec := <-s.ch:
			s.write(rec)
		case <-s.done:
			for {
				select {
				case rec := <-s.ch:
					s.write(rec)
				default:
					return
				}
			}
		}
	}
}

func (s *Sink) write(rec Record) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.store.Append(ctx, rec); err != nil {
		s.log.Warnw("event log write failed", "type", rec.Type, "error", err)
	}
}
