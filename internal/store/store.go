// Package store persists the controller snapshot and the access schedule as
// JSON files on disk. In-memory state stays authoritative: a failed write is
// reported to the caller (or logged by the async saver) and retried on the
// next transition, never escalated.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/BSMSciTech/guardian-pi-door/internal/logic"
	"github.com/BSMSciTech/guardian-pi-door/internal/schedule"
)

// ErrNotFound is returned when a state file does not exist yet.
var ErrNotFound = errors.New("state not found")

const filePermissions = 0o600

// snapshotJSON is the on-disk snapshot layout. It must round-trip; field
// names are part of the persisted format.
type snapshotJSON struct {
	DoorState            logic.DoorState `json:"door_state"`
	AlarmMode            logic.AlarmMode `json:"alarm_mode"`
	CountdownStartedAt   *time.Time      `json:"countdown_started_at"`
	TimerDurationSeconds int             `json:"timer_duration_seconds"`
	InstantAlarmMode     bool            `json:"instant_alarm_mode"`
}

// SnapshotStore reads and writes the controller snapshot file.
type SnapshotStore struct {
	path string
	mu   sync.Mutex
}

// NewSnapshotStore creates a store backed by the JSON file at path.
func NewSnapshotStore(path string) *SnapshotStore {
	return &SnapshotStore{path: filepath.Clean(path)}
}

// Load reads the snapshot from disk. Returns ErrNotFound if no snapshot has
// been written yet.
func (s *SnapshotStore) Load() (logic.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	contents, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return logic.Snapshot{}, ErrNotFound
		}
		return logic.Snapshot{}, fmt.Errorf("read snapshot file: %w", err)
	}

	var sj snapshotJSON
	if err := json.Unmarshal(contents, &sj); err != nil {
		return logic.Snapshot{}, fmt.Errorf("decode snapshot file: %w", err)
	}

	return logic.Snapshot{
		Door:               sj.DoorState,
		Mode:               sj.AlarmMode,
		CountdownStartedAt: sj.CountdownStartedAt,
		Config: logic.Config{
			TimerDuration: time.Duration(sj.TimerDurationSeconds) * time.Second,
			InstantAlarm:  sj.InstantAlarmMode,
		},
	}, nil
}

// Save writes the snapshot to disk.
func (s *SnapshotStore) Save(snap logic.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sj := snapshotJSON{
		DoorState:            snap.Door,
		AlarmMode:            snap.Mode,
		CountdownStartedAt:   snap.CountdownStartedAt,
		TimerDurationSeconds: int(snap.Config.TimerDuration.Seconds()),
		InstantAlarmMode:     snap.Config.InstantAlarm,
	}
	data, err := json.Marshal(sj)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := os.WriteFile(s.path, data, filePermissions); err != nil {
		return fmt.Errorf("write snapshot file: %w", err)
	}
	return nil
}

// ScheduleStore reads and writes the access schedule file.
type ScheduleStore struct {
	path string
	mu   sync.Mutex
}

// NewScheduleStore creates a store backed by the JSON file at path.
func NewScheduleStore(path string) *ScheduleStore {
	return &ScheduleStore{path: filepath.Clean(path)}
}

// Load reads the schedule from disk. Returns ErrNotFound if no schedule has
// been written yet.
func (s *ScheduleStore) Load() (schedule.Schedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	contents, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return schedule.Schedule{}, ErrNotFound
		}
		return schedule.Schedule{}, fmt.Errorf("read schedule file: %w", err)
	}

	var sched schedule.Schedule
	if err := json.Unmarshal(contents, &sched); err != nil {
		return schedule.Schedule{}, fmt.Errorf("decode schedule file: %w", err)
	}
	if err := sched.Validate(); err != nil {
		return schedule.Schedule{}, fmt.Errorf("schedule file: %w", err)
	}
	return sched, nil
}

// Save writes the schedule to disk.
func (s *ScheduleStore) Save(sched schedule.Schedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(sched)
	if err != nil {
		return fmt.Errorf("encode schedule: %w", err)
	}
	if err := os.WriteFile(s.path, data, filePermissions); err != nil {
		return fmt.Errorf("write schedule file: %w", err)
	}
	return nil
}
