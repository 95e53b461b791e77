package status

import (
	"encoding/json"
	"time"

	"github.com/BSMSciTech/guardian-pi-door/internal/schedule"
)

// StatusJSON is the top-level JSON envelope for status output, shared by the
// web endpoint and MQTT lifecycle events.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event                     string            `json:"event,omitempty"`
	Reason                    string            `json:"reason,omitempty"`
	Door                      string            `json:"door"`
	Alarm                     string            `json:"alarm"`
	RemainingCountdownSeconds *int64            `json:"remaining_countdown_seconds,omitempty"`
	AccessAllowedNow          bool              `json:"access_allowed_now"`
	Simulation                bool              `json:"simulation"`
	UptimeSeconds             int64             `json:"uptime_seconds"`
	StartTime                 string            `json:"start_time"`
	Timestamp                 string            `json:"timestamp"`
	MQTT                      MQTTStatus        `json:"mqtt"`
	Config                    ConfigJSON        `json:"config"`
	Schedule                  schedule.Schedule `json:"schedule"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker,omitempty"`
}

// ConfigJSON is the JSON representation of the controller config.
type ConfigJSON struct {
	TimerDurationSeconds int  `json:"timer_duration_seconds"`
	InstantAlarmMode     bool `json:"instant_alarm_mode"`
}

func buildInner(snap Snapshot) StatusInner {
	inner := StatusInner{
		Door:             string(snap.Door),
		Alarm:            string(snap.Mode),
		AccessAllowedNow: snap.AccessAllowed(),
		Simulation:       snap.Simulation,
		UptimeSeconds:    int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:        snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:        snap.Now.UTC().Format(time.RFC3339),
		MQTT:             MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Broker},
		Config: ConfigJSON{
			TimerDurationSeconds: int(snap.Config.TimerDuration.Seconds()),
			InstantAlarmMode:     snap.Config.InstantAlarm,
		},
		Schedule: snap.Schedule,
	}
	if snap.Mode == "COUNTDOWN" {
		secs := int64(snap.Remaining().Round(time.Second).Seconds())
		inner.RemainingCountdownSeconds = &secs
	}
	return inner
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
