package device

import (
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Controller is a thin facade over the hardware connection. It owns no state
// of its own; gate ranges live on the Gate records and voltages live in
// hardware.
type Controller struct {
	conn Conn
}

// NewController returns a controller over the given connection.
func NewController(conn Conn) *Controller {
	return &Controller{conn: conn}
}

// GetValue reads a gate's current output voltage.
func (c *Controller) GetValue(g *Gate) (float64, error) {
	logrus.WithField("gate", g.Name()).Trace("GetValue called")

	v, err := c.conn.GetVoltage(g.Name())
	if err != nil {
		return 0, pkgerrors.Wrapf(err, "failed to read voltage of gate %s", g.Name())
	}
	return v, nil
}

// SetValue drives a gate to the given voltage. Values outside the gate's
// safety range are refused before touching hardware.
func (c *Controller) SetValue(g *Gate, v float64) error {
	logrus.WithFields(logrus.Fields{
		"gate": g.Name(),
		"val":  v,
	}).Trace("SetValue called")

	if sr := g.SafetyRange(); !sr.Contains(v) {
		return pkgerrors.Errorf(
			"refusing to set gate %s to %g: outside safety range (%g, %g)",
			g.Name(), v, sr.Min, sr.Max)
	}

	if err := c.conn.SetVoltage(g.Name(), v); err != nil {
		return pkgerrors.Wrapf(err, "failed to set gate %s to %g", g.Name(), v)
	}
	return nil
}

// GetRange returns a gate's currently allowed range.
func (c *Controller) GetRange(g *Gate) Range {
	return g.ValidRange()
}

// SetRange replaces a gate's currently allowed range.
func (c *Controller) SetRange(g *Gate, r Range) error {
	return g.SetValidRange(r)
}

// SafetyRange returns a gate's absolute hardware bounds.
func (c *Controller) SafetyRange(g *Gate) Range {
	return g.SafetyRange()
}

// AllToLowest drives every gate of the device to its safety minimum, in
// device gate order.
func (c *Controller) AllToLowest(d *Device) error {
	for _, g := range d.Gates() {
		if err := c.SetValue(g, g.SafetyRange().Min); err != nil {
			return err
		}
	}
	return nil
}

// AllToHighest drives every gate of the device to its safety maximum, in
// device gate order.
func (c *Controller) AllToHighest(d *Device) error {
	for _, g := range d.Gates() {
		if err := c.SetValue(g, g.SafetyRange().Max); err != nil {
			return err
		}
	}
	return nil
}
