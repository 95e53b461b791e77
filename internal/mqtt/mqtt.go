// Package mqtt publishes door events to a broker for dashboards and
// recorders. Publishing is fire-and-forget from the controller's point of
// view: a broker outage buffers messages, it never stalls a transition.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/BSMSciTech/guardian-pi-door/internal/logic"
)

// TopicEvents is the MQTT topic for door transition events.
const TopicEvents = "security/door/guardian/events"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "security/door/guardian/system"

// Publisher publishes events to MQTT.
type Publisher interface {
	// PublishEvent sends a door event to the broker.
	// Returns error if publishing fails (must not crash the process).
	PublishEvent(event logic.Event) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (startup, shutdown).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g. "STARTUP", "SHUTDOWN"
	Reason     string // e.g. "SIGTERM" (shutdown only)
	RawPayload []byte // pre-formatted JSON; if set, FormatSystemPayload returns it directly
	Retained   bool
}

// Payload is the MQTT message envelope for a door event.
type Payload struct {
	Door DoorPayload `json:"door"`
}

// DoorPayload contains the door event details.
type DoorPayload struct {
	Timestamp   string `json:"timestamp"`
	Event       string `json:"event"`
	Severity    string `json:"severity"`
	Description string `json:"description,omitempty"`
	State       string `json:"state"`
	Alarm       string `json:"alarm"`
	Actor       string `json:"actor,omitempty"`
}

// FormatPayload creates the JSON payload for a door event.
func FormatPayload(event logic.Event) ([]byte, error) {
	payload := Payload{
		Door: DoorPayload{
			Timestamp:   event.Timestamp.UTC().Format(time.RFC3339),
			Event:       string(event.Type),
			Severity:    string(event.Severity),
			Description: event.Description,
			State:       string(event.Door),
			Alarm:       string(event.Mode),
			Actor:       event.Actor,
		},
	}
	return json.Marshal(payload)
}

// SystemPayload is the MQTT message envelope for simple system events that
// carry no status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status
// snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}
	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}
