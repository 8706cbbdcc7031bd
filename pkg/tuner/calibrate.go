package tuner

import (
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/classicvalues/nanotune/pkg/device"
)

// UpdateNormalizationConstants measures the dynamic range of every readout
// channel: all gates are driven to their lowest safety extreme to record each
// channel's minimum, then to their highest to record the maximum. The
// constants are committed to the device only after both passes succeed; a
// read failure in either pass leaves the previous constants untouched.
//
// The gates are put back to their pre-call voltages regardless of outcome,
// in device gate order.
func (t *Tuner) UpdateNormalizationConstants(dev *device.Device) (map[string]device.Range, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	readouts := dev.Readouts()
	if len(readouts) == 0 {
		return nil, pkgerrors.Errorf("device %s has no readout channels", dev.Name())
	}

	consts := make(map[string]device.Range, len(readouts))

	err := WithValuesRestored(t.ctrl, dev.Gates(), func() error {
		if err := t.ctrl.AllToLowest(dev); err != nil {
			return pkgerrors.Wrap(err, "failed to drive gates to lowest extreme")
		}
		for ch, readout := range readouts {
			v, err := readout.Get()
			if err != nil {
				return pkgerrors.Wrapf(err, "failed to read channel %s at lowest extreme", ch)
			}
			consts[ch] = device.Range{Min: v}
		}

		if err := t.ctrl.AllToHighest(dev); err != nil {
			return pkgerrors.Wrap(err, "failed to drive gates to highest extreme")
		}
		for ch, readout := range readouts {
			v, err := readout.Get()
			if err != nil {
				return pkgerrors.Wrapf(err, "failed to read channel %s at highest extreme", ch)
			}
			c := consts[ch]
			c.Max = v
			consts[ch] = c
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	dev.SetNormalizationConstants(consts)

	logrus.WithFields(logrus.Fields{
		"device":   dev.Name(),
		"channels": len(consts),
	}).Info("normalization constants updated")

	return consts, nil
}
