package tuner

import (
	"sort"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/classicvalues/nanotune/pkg/device"
)

// HasSignal reads every channel in channels (all active channels when nil),
// normalizes the reading with the device's stored constants and compares it
// against the channel's relative threshold. It returns true when at least one
// checked channel's normalized reading is strictly above its threshold.
func (t *Tuner) HasSignal(dev *device.Device, thresholds map[string]float64, channels []string) (bool, error) {
	consts := dev.NormalizationConstants()
	readouts := dev.Readouts()

	if channels == nil {
		channels = make([]string, 0, len(readouts))
		for ch := range readouts {
			channels = append(channels, ch)
		}
		sort.Strings(channels)
	}

	haveSignal := false
	for _, ch := range channels {
		readout, ok := readouts[ch]
		if !ok {
			return false, pkgerrors.Errorf("device %s has no readout channel %q", dev.Name(), ch)
		}
		threshold, ok := thresholds[ch]
		if !ok {
			return false, pkgerrors.Errorf("no threshold given for channel %q", ch)
		}
		csts, ok := consts[ch]
		if !ok {
			return false, pkgerrors.Wrapf(ErrNotCalibrated, "channel %q", ch)
		}
		if csts.Max == csts.Min {
			return false, pkgerrors.Wrapf(ErrDegenerateCalibration, "channel %q (min == max == %g)", ch, csts.Min)
		}

		raw, err := readout.Get()
		if err != nil {
			return false, pkgerrors.Wrapf(err, "failed to read channel %s", ch)
		}

		normalized := (raw - csts.Min) / (csts.Max - csts.Min)
		if normalized > threshold {
			haveSignal = true
		} else {
			logrus.WithFields(logrus.Fields{
				"device":     dev.Name(),
				"channel":    ch,
				"normalized": normalized,
				"threshold":  threshold,
			}).Info("no signal detected")
		}
	}

	return haveSignal, nil
}
