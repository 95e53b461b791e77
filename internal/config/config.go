// Package config loads the daemon's YAML settings file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/BSMSciTech/guardian-pi-door/internal/gpio"
	"github.com/BSMSciTech/guardian-pi-door/internal/logic"
)

// Config holds the daemon settings. Every field has a working default, so a
// missing config file is a valid deployment.
type Config struct {
	// HTTPAddr is the dashboard and API listen address.
	HTTPAddr string `yaml:"http_addr"`
	// Broker is the MQTT broker URL; empty disables MQTT publishing.
	Broker string `yaml:"mqtt_broker"`
	// SnapshotFile is the path of the controller state snapshot.
	SnapshotFile string `yaml:"snapshot_file"`
	// ScheduleFile is the path of the persisted access schedule.
	ScheduleFile string `yaml:"schedule_file"`
	// EventsDB is the path of the sqlite event log database.
	EventsDB string `yaml:"events_db"`
	// AlarmSound is the WAV file played when the alarm triggers; empty
	// disables sound.
	AlarmSound string `yaml:"alarm_sound"`
	// LogLevel is one of debug, info, warn, error, fatal.
	LogLevel string `yaml:"log_level"`
	// Poll is the door sensor sampling interval.
	Poll time.Duration `yaml:"poll_interval"`

	// TimerDurationSeconds is the countdown grace period applied on cold
	// start. A persisted snapshot's settings take precedence.
	TimerDurationSeconds int `yaml:"timer_duration_seconds"`
	// InstantAlarmMode skips the countdown on cold start.
	InstantAlarmMode bool `yaml:"instant_alarm_mode"`

	Pins PinConfig `yaml:"pins"`
}

// PinConfig maps the BCM pin assignment.
type PinConfig struct {
	Sensor          int  `yaml:"sensor"`
	Ready           int  `yaml:"ready"`
	Countdown       int  `yaml:"countdown"`
	Alert           int  `yaml:"alert"`
	SensorActiveLow bool `yaml:"sensor_active_low"`
}

const (
	// DefaultConfigFilename is looked up when no -config flag is given.
	DefaultConfigFilename = "guardian-door.yaml"

	DefaultHTTPAddr     = ":8080"
	DefaultSnapshotFile = "data/state.json"
	DefaultScheduleFile = "data/schedule.json"
	DefaultEventsDB     = "data/events.db"
	DefaultPoll         = 100 * time.Millisecond
	DefaultTimerSeconds = 30
)

var errPinConflict = errors.New("pin numbers must be distinct")

// Default returns the configuration used when no file is present.
func Default() *Config {
	pins := gpio.DefaultPins()
	return &Config{
		HTTPAddr:             DefaultHTTPAddr,
		SnapshotFile:         DefaultSnapshotFile,
		ScheduleFile:         DefaultScheduleFile,
		EventsDB:             DefaultEventsDB,
		LogLevel:             "info",
		Poll:                 DefaultPoll,
		TimerDurationSeconds: DefaultTimerSeconds,
		Pins: PinConfig{
			Sensor:          pins.Sensor,
			Ready:           pins.Ready,
			Countdown:       pins.Countdown,
			Alert:           pins.Alert,
			SensorActiveLow: pins.SensorActiveLow,
		},
	}
}

// Load reads settings from path. When path is empty the default filename is
// tried, and its absence is not an error: the defaults apply. An explicitly
// given path must exist.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return Default(), nil
		}
		return nil, fmt.Errorf("read settings: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(contents, cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks ranges and fills defaults for fields left empty.
func (c *Config) Validate() error {
	if c.HTTPAddr == "" {
		c.HTTPAddr = DefaultHTTPAddr
	}
	if c.SnapshotFile == "" {
		c.SnapshotFile = DefaultSnapshotFile
	}
	if c.ScheduleFile == "" {
		c.ScheduleFile = DefaultScheduleFile
	}
	if c.EventsDB == "" {
		c.EventsDB = DefaultEventsDB
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Poll <= 0 {
		c.Poll = DefaultPoll
	}
	if c.TimerDurationSeconds == 0 {
		c.TimerDurationSeconds = DefaultTimerSeconds
	}

	if err := c.Controller().Validate(); err != nil {
		return err
	}

	pins := map[int]bool{}
	for _, p := range []int{c.Pins.Sensor, c.Pins.Ready, c.Pins.Countdown, c.Pins.Alert} {
		if p < 0 {
			return fmt.Errorf("pin %d out of range", p)
		}
		if pins[p] {
			return errPinConflict
		}
		pins[p] = true
	}
	return nil
}

// Controller converts the cold-start settings to the state machine config.
func (c *Config) Controller() logic.Config {
	return logic.Config{
		TimerDuration: time.Duration(c.TimerDurationSeconds) * time.Second,
		InstantAlarm:  c.InstantAlarmMode,
	}
}

// GPIO converts the pin assignment for the hardware layer.
func (c *Config) GPIO() gpio.Pins {
	return gpio.Pins{
		Sensor:          c.Pins.Sensor,
		Ready:           c.Pins.Ready,
		Countdown:       c.Pins.Countdown,
		Alert:           c.Pins.Alert,
		SensorActiveLow: c.Pins.SensorActiveLow,
	}
}
