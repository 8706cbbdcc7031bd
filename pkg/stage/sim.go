package stage

import (
	"math"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/classicvalues/nanotune/pkg/device"
)

// SimStage is a Stage backed by the device connection directly, used in
// simulation mode and in tests. It sweeps the configured gate across its
// valid range, reads every readout channel at each setpoint, normalizes the
// trace and asks the classifier for a verdict.
type SimStage struct {
	Ctrl *device.Controller
	Dev  *device.Device
}

// Run performs one simulated sweep. The swept gate is restored to its
// pre-sweep voltage afterwards.
func (s *SimStage) Run(cfg Config) (Result, error) {
	if len(cfg.Setpoints.GatesToSweep) != 1 {
		return Result{}, pkgerrors.Errorf(
			"sweep config must name exactly one gate, got %d", len(cfg.Setpoints.GatesToSweep))
	}
	gateName := cfg.Setpoints.GatesToSweep[0]
	gate, ok := s.Dev.Gate(gateName)
	if !ok {
		return Result{}, pkgerrors.Errorf("unknown gate %q", gateName)
	}
	if cfg.Classifier == nil {
		return Result{}, pkgerrors.New("sweep config has no classifier")
	}

	precision := cfg.Setpoints.VoltagePrecision
	if precision <= 0 {
		precision = 0.05
	}

	before, err := s.Ctrl.GetValue(gate)
	if err != nil {
		return Result{}, err
	}
	defer func() {
		if rerr := s.Ctrl.SetValue(gate, before); rerr != nil {
			logrus.WithError(rerr).Errorf("failed to restore gate %s after sweep", gateName)
		}
	}()

	rng := gate.ValidRange()
	n := int(math.Ceil(rng.Width()/precision)) + 1
	if n < 2 {
		n = 2
	}

	trace := make([]float64, 0, n)
	lowVoltage := rng.Min
	for i := 0; i < n; i++ {
		v := rng.Max - float64(i)*rng.Width()/float64(n-1)
		if err := s.Ctrl.SetValue(gate, v); err != nil {
			return Result{}, err
		}

		sum := 0.0
		count := 0
		for ch, readout := range s.Dev.Readouts() {
			raw, err := readout.Get()
			if err != nil {
				return Result{}, pkgerrors.Wrapf(err, "failed to read channel %s", ch)
			}
			if csts, ok := cfg.Data.NormalizationConstants[ch]; ok && csts.Max != csts.Min {
				raw = (raw - csts.Min) / (csts.Max - csts.Min)
			}
			sum += raw
			count++
		}
		if count == 0 {
			return Result{}, pkgerrors.Errorf("device %s has no readout channels", s.Dev.Name())
		}

		avg := sum / float64(count)
		trace = append(trace, avg)
		if avg < 0.5 && len(trace) > 1 && trace[len(trace)-2] >= 0.5 {
			lowVoltage = v
		}
	}

	ok, err = cfg.Classifier.Predict(trace)
	if err != nil {
		return Result{}, pkgerrors.Wrap(err, "classifier failed")
	}

	res := Result{Success: ok}
	if ok {
		res.Features = map[string]float64{
			FeatureLowVoltage: lowVoltage,
			"high_voltage":    rng.Max,
			"max_signal":      maxOf(trace),
		}
	} else {
		res.TerminationReasons = []string{"no pinchoff signature detected"}
	}
	return res, nil
}

func maxOf(trace []float64) float64 {
	m := math.Inf(-1)
	for _, v := range trace {
		if v > m {
			m = v
		}
	}
	return m
}

// ThresholdClassifier is a trivial classifier that reports a pinchoff
// signature when the trace spans both sides of the threshold.
type ThresholdClassifier struct {
	Threshold float64
}

func (c ThresholdClassifier) Predict(trace []float64) (bool, error) {
	if len(trace) == 0 {
		return false, pkgerrors.New("empty trace")
	}
	above, below := false, false
	for _, v := range trace {
		if v > c.Threshold {
			above = true
		} else {
			below = true
		}
	}
	return above && below, nil
}
