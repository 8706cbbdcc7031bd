package tuner

import (
	"math"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/classicvalues/nanotune/pkg/device"
	"github.com/classicvalues/nanotune/pkg/stage"
)

// MeasureInitialRanges discovers the voltage window over which gateToSet
// should be allowed to vary such that every gate in gatesToSweep still shows
// its pinchoff signature.
//
// Forward scan: with the whole device at its highest safety extreme,
// gateToSet is stepped from its safety maximum to its minimum. At each step,
// every gate that has not yet responded is characterized; the scan stops once
// all gates have responded or the steps are exhausted. gateToSet's voltage at
// the stop step is the lower bound.
//
// Reverse probe: the device is driven back to its highest extreme and the
// last gate that responded is stepped across its own safety range while the
// characterization of gateToSet itself is measured. The first successful
// sweep's fitted low-voltage feature, rounded down by 10% of its magnitude
// and clamped to gateToSet's safety minimum, is the upper bound. If the probe
// never succeeds, a RangeExhaustedError carrying the partial result is
// returned.
func (t *Tuner) MeasureInitialRanges(dev *device.Device, gateToSet *device.Gate, gatesToSweep []*device.Gate, voltageStep float64) (device.Range, *TuningResult, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var discovered device.Range

	if _, ok := t.classifiers[ClassifierPinchoff]; !ok {
		return discovered, nil, ErrNoClassifier
	}
	if voltageStep <= 0 {
		return discovered, nil, pkgerrors.Errorf("voltage step must be positive, got %g", voltageStep)
	}
	if len(gatesToSweep) == 0 {
		return discovered, nil, pkgerrors.New("no gates to sweep")
	}

	if err := t.ctrl.AllToHighest(dev); err != nil {
		return discovered, nil, err
	}

	result := NewTuningResult(dev.Name())
	responded := make([]bool, len(gatesToSweep))
	lastResponding := -1

	err := t.withDeviceSettings(dev, func() error {
		safety := gateToSet.SafetyRange()
		steps := linspace(safety.Max, safety.Min, stepCount(safety, voltageStep))

		for _, v := range steps {
			if err := t.ctrl.SetValue(gateToSet, v); err != nil {
				return err
			}

			for i, g := range gatesToSweep {
				if responded[i] {
					continue
				}
				res, err := t.runGateSweep(dev, g)
				if err != nil {
					return err
				}
				result.AddResult("characterization_"+g.Name(), res.Success, res.TerminationReasons, res, "")
				if res.Success {
					responded[i] = true
					lastResponding = i
				}
			}

			if allResponded(responded) {
				break
			}
		}
		return nil
	})
	if err != nil {
		return discovered, result, err
	}

	lower, err := t.ctrl.GetValue(gateToSet)
	if err != nil {
		return discovered, result, err
	}

	if lastResponding < 0 {
		return discovered, result, &RangeExhaustedError{
			Gate:   gateToSet.Name(),
			Phase:  "forward scan",
			Result: result,
		}
	}

	// Swap roles: pinch off against the last responding gate to find the
	// opposite corner of the valid voltage space.
	if err := t.ctrl.AllToHighest(dev); err != nil {
		return discovered, result, err
	}

	lastGate := gatesToSweep[lastResponding]
	var upper float64
	found := false

	err = t.withDeviceSettings(dev, func() error {
		probeRange := lastGate.SafetyRange()
		steps := linspace(probeRange.Max, probeRange.Min, stepCount(probeRange, voltageStep))

		for _, v := range steps {
			if err := t.ctrl.SetValue(lastGate, v); err != nil {
				return err
			}

			res, err := t.runGateSweep(dev, gateToSet)
			if err != nil {
				return err
			}
			result.AddResult("characterization_"+gateToSet.Name(), res.Success, res.TerminationReasons, res, "")

			if res.Success {
				low, ok := res.Features[stage.FeatureLowVoltage]
				if !ok {
					return pkgerrors.Errorf(
						"successful sweep of gate %s reported no %s feature", gateToSet.Name(), stage.FeatureLowVoltage)
				}
				// Round down by 10% of magnitude; for negative values this
				// moves further negative.
				low = round2(low - 0.1*math.Abs(low))
				upper = math.Max(gateToSet.SafetyRange().Min, low)
				found = true
				return nil
			}
		}
		return nil
	})

	if rerr := t.ctrl.AllToHighest(dev); rerr != nil {
		logrus.WithError(rerr).Error("failed to restore device to highest extreme after range discovery")
	}

	if err != nil {
		return discovered, result, err
	}
	if !found {
		return discovered, result, &RangeExhaustedError{
			Gate:   gateToSet.Name(),
			Phase:  "reverse probe",
			Result: result,
		}
	}

	discovered = device.Range{Min: lower, Max: upper}
	t.appendHistory(dev.Name(), result)

	logrus.WithFields(logrus.Fields{
		"device": dev.Name(),
		"gate":   gateToSet.Name(),
		"low":    discovered.Min,
		"high":   discovered.Max,
	}).Info("initial range discovered")

	return discovered, result, nil
}

// stepCount returns the number of setpoints covering r with the given step,
// endpoints inclusive. Ceiling division so a non-integer ratio never
// under-covers the range.
func stepCount(r device.Range, step float64) int {
	return int(math.Ceil(r.Width()/step)) + 1
}

// linspace returns n linearly spaced values from from to to, endpoints
// inclusive.
func linspace(from, to float64, n int) []float64 {
	if n < 2 {
		return []float64{from}
	}
	out := make([]float64, n)
	d := (to - from) / float64(n-1)
	for i := 0; i < n; i++ {
		out[i] = from + float64(i)*d
	}
	out[n-1] = to
	return out
}

func allResponded(responded []bool) bool {
	for _, r := range responded {
		if !r {
			return false
		}
	}
	return true
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
