// Command guardian-door monitors a door contact on GPIO, escalates
// out-of-schedule openings to an alarm, and serves the dashboard and API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/BSMSciTech/guardian-pi-door/internal/alert"
	"github.com/BSMSciTech/guardian-pi-door/internal/config"
	"github.com/BSMSciTech/guardian-pi-door/internal/controller"
	"github.com/BSMSciTech/guardian-pi-door/internal/eventlog"
	"github.com/BSMSciTech/guardian-pi-door/internal/gpio"
	"github.com/BSMSciTech/guardian-pi-door/internal/logger"
	"github.com/BSMSciTech/guardian-pi-door/internal/logic"
	"github.com/BSMSciTech/guardian-pi-door/internal/mqtt"
	"github.com/BSMSciTech/guardian-pi-door/internal/schedule"
	"github.com/BSMSciTech/guardian-pi-door/internal/status"
	"github.com/BSMSciTech/guardian-pi-door/internal/store"
	"github.com/BSMSciTech/guardian-pi-door/internal/web"
)

func main() {
	configPath := flag.String("config", "", "path to YAML settings (default "+config.DefaultConfigFilename+" if present)")
	httpAddr := flag.String("http", "", "HTTP listen address (overrides config)")
	broker := flag.String("broker", "", "MQTT broker URL (overrides config)")
	poll := flag.Duration("poll", 0, "door sensor polling interval (overrides config)")
	logLevel := flag.String("log-level", "", "log level: debug, info, warn, error (overrides config)")
	simulate := flag.Bool("simulate", false, "run without door hardware; door events come from the API")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if *httpAddr != "" {
		cfg.HTTPAddr = *httpAddr
	}
	if *broker != "" {
		cfg.Broker = *broker
	}
	if *poll > 0 {
		cfg.Poll = *poll
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}

	level, ok := logger.ParseLogLevel(cfg.LogLevel)
	log := logger.New(level)
	defer log.Sync()
	if !ok {
		log.Warnw("unknown log level, using info", "level", cfg.LogLevel)
	}

	if err := run(cfg, *simulate, log); err != nil {
		log.Fatalw("fatal", "error", err)
	}
}

func run(cfg *config.Config, simulate bool, log *zap.SugaredLogger) error {
	for _, path := range []string{cfg.SnapshotFile, cfg.ScheduleFile} {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create data dir: %w", err)
			}
		}
	}

	// Persisted state. Anything unreadable degrades to a cold start; the
	// door must never go unmonitored because a file went bad.
	snapStore := store.NewSnapshotStore(cfg.SnapshotFile)
	var snap *logic.Snapshot
	loaded, err := snapStore.Load()
	switch {
	case err == nil:
		snap = &loaded
	case errors.Is(err, store.ErrNotFound):
		log.Infow("no snapshot found, cold start")
	default:
		log.Warnw("snapshot unreadable, cold start", "error", err)
	}

	schedStore := store.NewScheduleStore(cfg.ScheduleFile)
	sched, err := schedStore.Load()
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			log.Warnw("schedule unreadable, using defaults", "error", err)
		}
		sched = schedule.Default()
	}

	// Event history. Optional: without it the daemon still guards the door,
	// only /api/events goes dark.
	var (
		events      *eventlog.Store
		eventSource web.EventSource
		sinks       controller.MultiSink
	)
	events, err = eventlog.Open(cfg.EventsDB)
	if err != nil {
		log.Warnw("event log unavailable", "path", cfg.EventsDB, "error", err)
		events = nil
	} else {
		defer events.Close()
		eventSource = events
		logSink := eventlog.NewSink(events, log)
		defer logSink.Close()
		sinks = append(sinks, logSink)
	}

	// MQTT is telemetry. A missing broker is logged and forgotten.
	var (
		publisher  mqtt.Publisher
		connStatus mqtt.ConnectionStatus
	)
	if cfg.Broker != "" {
		pub, err := mqtt.NewRealPublisher(cfg.Broker, log)
		if err != nil {
			log.Warnw("mqtt unavailable, continuing without", "broker", cfg.Broker, "error", err)
		} else {
			defer pub.Close()
			publisher = pub
			connStatus = pub
			sinks = append(sinks, &mqttSink{pub: pub, log: log})
		}
	}

	// Hardware. Any GPIO failure drops into simulation mode: no sensor, no
	// outputs, door events only through the API. Matches headless bench use.
	simulation := simulate
	var (
		sensor gpio.Sensor
		ind    gpio.Indicators = gpio.NopIndicators{}
	)
	if !simulation {
		s, err := gpio.NewRealSensor(cfg.GPIO())
		if err != nil {
			log.Warnw("door sensor unavailable, entering simulation mode", "error", err)
			simulation = true
		} else {
			defer s.Close()
			sensor = s
			realInd, err := gpio.NewRealIndicators(cfg.GPIO())
			if err != nil {
				log.Warnw("indicator outputs unavailable", "error", err)
			} else {
				defer realInd.Close()
				ind = realInd
			}
		}
	}
	ind = gpio.NewDegrading(ind, func(err error) {
		log.Warnw("indicator output failed, disabling outputs", "error", err)
	})

	saver := store.NewSaver(snapStore, log)
	defer saver.Close()

	ctrl, err := controller.New(controller.Options{
		Config:     cfg.Controller(),
		Snapshot:   snap,
		Schedule:   sched,
		Indicators: ind,
		Alert:      alert.NewPlayer(cfg.AlarmSound, log),
		Sink:       sinks,
		Snapshots:  saver,
		Schedules:  schedStore,
		Logger:     log,
		Broker:     cfg.Broker,
		Simulation: simulation,
	})
	if err != nil {
		return fmt.Errorf("controller: %w", err)
	}
	ctrl.Start()
	defer ctrl.Stop()

	if publisher != nil {
		ctrl.Tracker().SetMQTTConnected(connStatus.IsConnected())
		st := ctrl.Status()
		startup := mqtt.SystemEvent{
			Timestamp:  st.Now,
			Event:      "STARTUP",
			Retained:   true,
			RawPayload: status.FormatStatusEvent(st, "STARTUP", ""),
		}
		if err := publisher.PublishSystem(startup); err != nil {
			log.Warnw("startup event publish failed", "error", err)
		}
	}

	srv := web.New(cfg.HTTPAddr, ctrl, ctrl.Tracker(), eventSource, log)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorw("http server error", "error", err)
		}
	}()
	defer srv.Shutdown(context.Background())
	log.Infow("http server listening", "addr", cfg.HTTPAddr)

	ticker := time.NewTicker(cfg.Poll)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	log.Infow("started",
		"poll", cfg.Poll, "broker", cfg.Broker, "simulation", simulation,
		"snapshot_file", cfg.SnapshotFile, "events_db", cfg.EventsDB)

	return runLoop(ctrl, sensor, publisher, connStatus, log, ticker.C, sigCh)
}

// doorAPI is the slice of the controller the poll loop drives.
type doorAPI interface {
	SubmitDoorEvent(ev logic.DoorEvent) error
	Tracker() *status.Tracker
	Status() status.Snapshot
}

// runLoop samples the sensor and feeds edges to the controller until a
// shutdown signal arrives. With no sensor (simulation mode) it only keeps the
// MQTT connectivity status fresh.
func runLoop(ctrl doorAPI, sensor gpio.Sensor, publisher mqtt.Publisher,
	connStatus mqtt.ConnectionStatus, log *zap.SugaredLogger,
	tick <-chan time.Time, sig <-chan os.Signal) error {
	var (
		lastOpen bool
		seeded   bool
	)
	for {
		select {
		case s := <-sig:
			log.Infow("shutting down", "signal", s)
			publishShutdown(ctrl, publisher, connStatus, signalName(s), log)
			return nil

		case <-tick:
			if connStatus != nil {
				ctrl.Tracker().SetMQTTConnected(connStatus.IsConnected())
			}
			if sensor == nil {
				continue
			}
			open, err := sensor.Read()
			if err != nil {
				log.Warnw("sensor read failed", "error", err)
				continue
			}
			if seeded && open == lastOpen {
				continue
			}
			// First sample seeds the controller too: a door already open at
			// boot must be treated as an open edge, not silently absorbed.
			seeded = true
			lastOpen = open
			ev := logic.DoorEventClose
			if open {
				ev = logic.DoorEventOpen
			}
			if err := ctrl.SubmitDoorEvent(ev); err != nil {
				if errors.Is(err, controller.ErrStopped) {
					return nil
				}
				log.Errorw("door event rejected", "event", ev, "error", err)
			}
		}
	}
}

func publishShutdown(ctrl doorAPI, publisher mqtt.Publisher,
	connStatus mqtt.ConnectionStatus, reason string, log *zap.SugaredLogger) {
	if publisher == nil {
		return
	}
	if connStatus != nil {
		ctrl.Tracker().SetMQTTConnected(connStatus.IsConnected())
	}
	st := ctrl.Status()
	event := mqtt.SystemEvent{
		Timestamp:  st.Now,
		Event:      "SHUTDOWN",
		Reason:     reason,
		Retained:   true,
		RawPayload: status.FormatStatusEvent(st, "SHUTDOWN", reason),
	}
	if err := publisher.PublishSystem(event); err != nil {
		log.Warnw("shutdown event publish failed", "error", err)
	}
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	}
	return "UNKNOWN"
}

// mqttSink forwards controller events to the broker. The publisher buffers
// while disconnected, so failures here are already second-order.
type mqttSink struct {
	pub *mqtt.RealPublisher
	log *zap.SugaredLogger
}

func (s *mqttSink) Emit(e logic.Event) {
	if err := s.pub.PublishEvent(e); err != nil {
		s.log.Warnw("mqtt event publish failed", "type", e.Type, "error", err)
	}
}
