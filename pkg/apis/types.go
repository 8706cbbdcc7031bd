// Package apis holds the request and response types shared between the
// daemon and its clients.
package apis

import (
	"github.com/classicvalues/nanotune/pkg/device"
	"github.com/classicvalues/nanotune/pkg/tuner"
)

// CharacterizeRequest asks the daemon to characterize a set of gates.
// An empty Gates list means all gates of the device.
type CharacterizeRequest struct {
	Gates           []string `json:"gates,omitempty"`
	UseSafetyRanges bool     `json:"useSafetyRanges,omitempty"`
	Comment         string   `json:"comment,omitempty"`
}

// RangeRequest asks the daemon to discover the operating window of GateToSet.
// A zero VoltageStep falls back to the configured default.
type RangeRequest struct {
	GateToSet    string   `json:"gateToSet"`
	GatesToSweep []string `json:"gatesToSweep"`
	VoltageStep  float64  `json:"voltageStep,omitempty"`
}

// RangeResponse carries a discovered operating window.
type RangeResponse struct {
	Low    float64      `json:"low"`
	High   float64      `json:"high"`
	Result tuner.Export `json:"result"`
}

// SignalRequest asks the daemon whether the device currently shows signal.
// Nil Thresholds means the configured defaults; nil Channels means all.
type SignalRequest struct {
	Thresholds map[string]float64 `json:"thresholds,omitempty"`
	Channels   []string           `json:"channels,omitempty"`
}

// DeviceStatus is the device view exposed over the API.
type DeviceStatus struct {
	Name          string                       `json:"name"`
	Gates         map[string]device.GateStatus `json:"gates"`
	Normalization map[string]device.Range      `json:"normalization"`
}
