package events

import "encoding/json"

// Event names published by the daemon.
const (
	CalibrationFinished     = "calibration-finished"
	CharacterizationStarted = "characterization-started"
	CharacterizationDone    = "characterization-done"
	RangeDiscoveryStarted   = "range-discovery-started"
	RangeDiscovered         = "range-discovered"
	TuningError             = "tuning-error"
)

// Event is one broadcast message with a JSON-encoded payload.
type Event struct {
	Name string          `json:"name"`
	Data json.RawMessage `json:"data"`
}

// CalibrationEvent is the payload of CalibrationFinished.
type CalibrationEvent struct {
	Device   string `json:"device"`
	Channels int    `json:"channels"`
	Ts       int64  `json:"ts"`
}

// TuningEvent is the payload of characterization and range discovery events.
type TuningEvent struct {
	Device  string  `json:"device"`
	Gates   string  `json:"gates,omitempty"`
	Entries int     `json:"entries,omitempty"`
	Low     float64 `json:"low,omitempty"`
	High    float64 `json:"high,omitempty"`
	Message string  `json:"message,omitempty"`
	Ts      int64   `json:"ts"`
}
