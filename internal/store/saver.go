package store

import (
	"sync"

	"go.uber.org/zap"

	"github.com/BSMSciTech/guardian-pi-door/internal/logic"
)

// Saver writes snapshots asynchronously so the controller's event loop never
// waits on disk I/O. Pending snapshots coalesce: only the most recent one
// matters, intermediate states are dropped.
type Saver struct {
	store *SnapshotStore
	log   *zap.SugaredLogger

	mu      sync.Mutex
	pending *logic.Snapshot
	kick    chan struct{}
	done    chan struct{}
	wg      sync.WaitGroup
	closed  bool
}

// NewSaver starts the background writer.
func NewSaver(store *SnapshotStore, log *zap.SugaredLogger) *Saver {
	s := &Saver{
		store: store,
		log:   log,
		kick:  make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
	s.wg.Add(1)
	go s.run()
	return s
}

// Put queues a snapshot for writing. Never blocks; an earlier unwritten
// snapshot is replaced.
func (s *Saver) Put(snap logic.Snapshot) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.pending = &snap
	s.mu.Unlock()

	select {
	case s.kick <- struct{}{}:
	default:
	}
}

// Close flushes any pending snapshot and stops the writer.
func (s *Saver) Close() {
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

func (s *Saver) run() {
	defer s.wg.Done()
	for {
		select {
		case <-s.kick:
			s.flush()
		case <-s.done:
			s.flush()
			return
		}
	}
}

func (s *Saver) flush() {
	s.mu.Lock()
	snap := s.pending
	s.pending = nil
	s.mu.Unlock()

	if snap == nil {
		return
	}
	if err := s.store.Save(*snap); err != nil {
		// Non-fatal: in-memory state stays authoritative, the next
		// transition retries.
		s.log.Warnw("snapshot save failed", "error", err)
	}
}
