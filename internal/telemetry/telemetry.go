// Package telemetry publishes power readings and system lifecycle events to
// MQTT, with abstraction for testing.
package telemetry

import (
	"encoding/json"
	"time"
)

// TopicReadings carries periodic full readings snapshots.
const TopicReadings = "fndh/power/readings"

// TopicSystem carries system lifecycle events.
const TopicSystem = "fndh/power/system"

// Publisher publishes telemetry to MQTT.
type Publisher interface {
	// PublishReadings sends a readings snapshot to the broker.
	// Returns error if publishing fails (must not crash the daemon).
	PublishReadings(snap ReadingsSnapshot) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// ChannelReading is one output's slot in a snapshot.
type ChannelReading struct {
	State     string  `json:"state"`
	Volts     float64 `json:"volts"`
	Milliamps float64 `json:"ma"`
}

// ReadingsSnapshot is one full pass of the monitor loop. Outputs with
// failed reads are absent from the map; a failed environment read leaves
// Humidity and TempC nil.
type ReadingsSnapshot struct {
	Timestamp time.Time
	Outputs   map[string]ChannelReading
	Humidity  *float64
	TempC     *float64
}

// SystemEvent is a lifecycle event (STARTUP, SHUTDOWN).
type SystemEvent struct {
	Timestamp time.Time
	Event     string
	Reason    string // e.g. "SIGTERM" for shutdowns
	Retained  bool
}

type readingsPayload struct {
	Timestamp string                    `json:"timestamp"`
	Outputs   map[string]ChannelReading `json:"outputs"`
	Humidity  *float64                  `json:"humidity,omitempty"`
	TempC     *float64                  `json:"temperature,omitempty"`
}

// FormatReadingsPayload creates the JSON payload for a readings snapshot.
func FormatReadingsPayload(snap ReadingsSnapshot) ([]byte, error) {
	return json.Marshal(readingsPayload{
		Timestamp: snap.Timestamp.UTC().Format(time.RFC3339),
		Outputs:   snap.Outputs,
		Humidity:  snap.Humidity,
		TempC:     snap.TempC,
	})
}

type systemPayload struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	return json.Marshal(systemPayload{
		Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
		Event:     event.Event,
		Reason:    event.Reason,
	})
}
