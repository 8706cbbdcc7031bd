package tuner

import (
	"github.com/sirupsen/logrus"

	"github.com/classicvalues/nanotune/pkg/device"
)

// CharacterizeGates runs one characterization sweep per gate, in order, and
// records every outcome in a TuningResult. It does not set any voltages.
//
// With useSafetyRanges, every gate's valid range is widened to its safety
// range for the duration of the call. Valid ranges are restored on every exit
// path. A sweep returning success == false is recorded and characterization
// continues with the remaining gates; an error from the measurement
// collaborator aborts the call, with already-recorded entries kept in the
// returned result.
func (t *Tuner) CharacterizeGates(dev *device.Device, gates []*device.Gate, useSafetyRanges bool, comment string) (*TuningResult, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.classifiers[ClassifierPinchoff]; !ok {
		return nil, ErrNoClassifier
	}

	if comment == "" {
		comment = defaultComment(gates)
	}

	result := NewTuningResult(dev.Name())

	err := WithRangesRestored(t.ctrl, gates, func() error {
		if useSafetyRanges {
			for _, g := range gates {
				if err := t.ctrl.SetRange(g, g.SafetyRange()); err != nil {
					return err
				}
			}
		}

		return t.withDeviceSettings(dev, func() error {
			for _, g := range gates {
				res, err := t.runGateSweep(dev, g)
				if err != nil {
					return err
				}
				result.AddResult("characterization_"+g.Name(), res.Success, res.TerminationReasons, res, comment)
			}
			return nil
		})
	})

	t.appendHistory(dev.Name(), result)

	if err != nil {
		return result, err
	}

	logrus.WithFields(logrus.Fields{
		"device":  dev.Name(),
		"gates":   gateNames(gates),
		"entries": result.Len(),
	}).Info("gate characterization finished")

	return result, nil
}
