package device

import (
	"sync"

	pkgerrors "github.com/pkg/errors"
)

// Range is a (min, max) voltage pair.
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Width returns the absolute width of the range.
func (r Range) Width() float64 {
	w := r.Max - r.Min
	if w < 0 {
		return -w
	}
	return w
}

// Contains reports whether v lies within the range, endpoints inclusive.
func (r Range) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// Gate is one controllable analog output of a device. The output voltage
// itself lives in hardware (behind Conn); the gate record carries the
// immutable safety range and the mutable currently-valid range.
type Gate struct {
	name        string
	safetyRange Range

	mu         sync.RWMutex
	validRange Range
}

// NewGate returns a gate whose valid range starts out equal to its safety
// range.
func NewGate(name string, safety Range) *Gate {
	return &Gate{
		name:        name,
		safetyRange: safety,
		validRange:  safety,
	}
}

// Name returns the gate identifier, which doubles as its hardware key.
func (g *Gate) Name() string { return g.name }

// SafetyRange returns the hardware-imposed absolute bounds of the gate.
func (g *Gate) SafetyRange() Range { return g.safetyRange }

// ValidRange returns the currently allowed operating window.
func (g *Gate) ValidRange() Range {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.validRange
}

// SetValidRange replaces the currently allowed operating window. The new
// range must lie within the safety range.
func (g *Gate) SetValidRange(r Range) error {
	if r.Min > r.Max {
		return pkgerrors.Errorf("gate %s: invalid range (%g, %g)", g.name, r.Min, r.Max)
	}
	if !g.safetyRange.Contains(r.Min) || !g.safetyRange.Contains(r.Max) {
		return pkgerrors.Errorf(
			"gate %s: range (%g, %g) exceeds safety range (%g, %g)",
			g.name, r.Min, r.Max, g.safetyRange.Min, g.safetyRange.Max)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.validRange = r
	return nil
}

// Readout reads one raw signal channel.
type Readout interface {
	Get() (float64, error)
}

// ConnReadout is a Readout backed by a channel key on a Conn.
type ConnReadout struct {
	Conn Conn
	Key  string
}

func (r ConnReadout) Get() (float64, error) {
	return r.Conn.ReadSignal(r.Key)
}

// Device aggregates an ordered collection of gates, named readout channels
// and the per-channel normalization constants. Gate order matters: bulk
// operations iterate gates in the order given at construction.
type Device struct {
	name     string
	gates    []*Gate
	byName   map[string]*Gate
	readouts map[string]Readout

	mu            sync.RWMutex
	normalization map[string]Range
}

// NewDevice returns a device owning the given gates and readout channels.
func NewDevice(name string, gates []*Gate, readouts map[string]Readout) (*Device, error) {
	byName := make(map[string]*Gate, len(gates))
	for _, g := range gates {
		if _, ok := byName[g.Name()]; ok {
			return nil, pkgerrors.Errorf("duplicate gate %q on device %q", g.Name(), name)
		}
		byName[g.Name()] = g
	}

	return &Device{
		name:          name,
		gates:         gates,
		byName:        byName,
		readouts:      readouts,
		normalization: make(map[string]Range),
	}, nil
}

// Name returns the device identity.
func (d *Device) Name() string { return d.name }

// Gates returns the device's gates in iteration order.
func (d *Device) Gates() []*Gate { return d.gates }

// Gate looks up a gate by name.
func (d *Device) Gate(name string) (*Gate, bool) {
	g, ok := d.byName[name]
	return g, ok
}

// Readouts returns the active readout channels keyed by logical name.
func (d *Device) Readouts() map[string]Readout { return d.readouts }

// NormalizationConstants returns a copy of the per-channel (min, max)
// constants.
func (d *Device) NormalizationConstants() map[string]Range {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make(map[string]Range, len(d.normalization))
	for k, v := range d.normalization {
		out[k] = v
	}
	return out
}

// SetNormalizationConstants replaces the per-channel constants in one commit.
func (d *Device) SetNormalizationConstants(consts map[string]Range) {
	cp := make(map[string]Range, len(consts))
	for k, v := range consts {
		cp[k] = v
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.normalization = cp
}

// GateStatus is a snapshot of one gate's state at measurement time.
type GateStatus struct {
	Voltage     float64 `json:"voltage"`
	ValidRange  Range   `json:"validRange"`
	SafetyRange Range   `json:"safetyRange"`
}

// Status snapshots every gate's voltage and ranges through the controller.
func (d *Device) Status(ctrl *Controller) (map[string]GateStatus, error) {
	out := make(map[string]GateStatus, len(d.gates))
	for _, g := range d.gates {
		v, err := ctrl.GetValue(g)
		if err != nil {
			return nil, pkgerrors.Wrapf(err, "failed to read gate %s", g.Name())
		}
		out[g.Name()] = GateStatus{
			Voltage:     v,
			ValidRange:  g.ValidRange(),
			SafetyRange: g.SafetyRange(),
		}
	}
	return out, nil
}
