package device

import (
	pkgerrors "github.com/pkg/errors"
)

// GateLayout describes one gate in a device layout file.
type GateLayout struct {
	Name      string  `json:"name"`
	SafetyMin float64 `json:"safetyMin"`
	SafetyMax float64 `json:"safetyMax"`
}

// Layout describes a device: its gates in iteration order and its readout
// channel names.
type Layout struct {
	Name     string       `json:"name"`
	Gates    []GateLayout `json:"gates"`
	Channels []string     `json:"channels"`
}

// FromLayout builds a device over conn from a layout description.
func FromLayout(l Layout, conn Conn) (*Device, error) {
	if l.Name == "" {
		return nil, pkgerrors.New("device layout has no name")
	}
	if len(l.Gates) == 0 {
		return nil, pkgerrors.Errorf("device layout %q has no gates", l.Name)
	}

	gates := make([]*Gate, 0, len(l.Gates))
	for _, gl := range l.Gates {
		if gl.SafetyMin > gl.SafetyMax {
			return nil, pkgerrors.Errorf(
				"gate %q: safety range (%g, %g) is inverted", gl.Name, gl.SafetyMin, gl.SafetyMax)
		}
		gates = append(gates, NewGate(gl.Name, Range{Min: gl.SafetyMin, Max: gl.SafetyMax}))
	}

	readouts := make(map[string]Readout, len(l.Channels))
	for _, ch := range l.Channels {
		readouts[ch] = ConnReadout{Conn: conn, Key: ch}
	}

	return NewDevice(l.Name, gates, readouts)
}

// MockConnForLayout returns a MockConn prefilled with every gate at its
// safety maximum and every channel at zero.
func MockConnForLayout(l Layout) *MockConn {
	voltages := make(map[string]float64, len(l.Gates))
	for _, gl := range l.Gates {
		voltages[gl.Name] = gl.SafetyMax
	}
	signals := make(map[string]float64, len(l.Channels))
	for _, ch := range l.Channels {
		signals[ch] = 0
	}
	return NewMockConn(voltages, signals)
}
