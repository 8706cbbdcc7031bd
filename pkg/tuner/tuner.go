// Package tuner implements the tuning orchestration core: scoped rollback of
// gate state, normalization calibration, gate characterization and voltage
// range discovery. Measurement itself is delegated to a stage.Stage; this
// package only sets hardware state, blocks for measurements and records
// results.
package tuner

import (
	"fmt"
	"strings"
	"sync"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/classicvalues/nanotune/pkg/device"
	"github.com/classicvalues/nanotune/pkg/stage"
)

// ClassifierPinchoff is the classifier kind required by gate
// characterization and range discovery.
const ClassifierPinchoff = "pinchoff"

// Options carries the measurement configuration a tuner starts with.
type Options struct {
	DataSettings     stage.DataSettings
	SetpointSettings stage.SetpointSettings
	FitOptions       stage.FitOptions
}

// Tuner drives tuning operations on devices through a gate controller and a
// single-sweep measurement stage. Operations on a tuner are strictly
// sequential: one orchestration session runs at a time.
type Tuner struct {
	name  string
	ctrl  *device.Controller
	stage stage.Stage

	mu          sync.Mutex
	classifiers map[string]stage.Classifier
	data        stage.DataSettings
	setpoints   stage.SetpointSettings
	fitOptions  stage.FitOptions
	results     map[string][]*TuningResult
}

// New returns a tuner running sweeps through st and driving hardware through
// ctrl.
func New(name string, ctrl *device.Controller, st stage.Stage, opts Options) *Tuner {
	fitOptions := opts.FitOptions
	if fitOptions == nil {
		fitOptions = stage.FitOptions{"pinchofffit": {}}
	}

	return &Tuner{
		name:        name,
		ctrl:        ctrl,
		stage:       st,
		classifiers: make(map[string]stage.Classifier),
		data:        opts.DataSettings,
		setpoints:   opts.SetpointSettings,
		fitOptions:  fitOptions,
		results:     make(map[string][]*TuningResult),
	}
}

// Name returns the tuner identity.
func (t *Tuner) Name() string { return t.name }

// Controller returns the gate controller the tuner drives hardware through.
func (t *Tuner) Controller() *device.Controller { return t.ctrl }

// RegisterClassifier registers a classifier under the given kind.
func (t *Tuner) RegisterClassifier(kind string, c stage.Classifier) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.classifiers[kind] = c
}

// Results returns the tuning result history recorded for a device.
func (t *Tuner) Results(deviceName string) []*TuningResult {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]*TuningResult, len(t.results[deviceName]))
	copy(out, t.results[deviceName])
	return out
}

// UpdateGateVoltages sets each gate to the voltage at the same index. The
// order of voltages must match the order of gates.
func (t *Tuner) UpdateGateVoltages(gates []*device.Gate, voltages []float64) error {
	if len(gates) != len(voltages) {
		return pkgerrors.Errorf("got %d voltages for %d gates", len(voltages), len(gates))
	}
	for i, g := range gates {
		if err := t.ctrl.SetValue(g, voltages[i]); err != nil {
			return err
		}
	}
	return nil
}

// UpdateGateRanges sets each gate's valid range to the range at the same
// index. The order of ranges must match the order of gates.
func (t *Tuner) UpdateGateRanges(gates []*device.Gate, ranges []device.Range) error {
	if len(gates) != len(ranges) {
		return pkgerrors.Errorf("got %d ranges for %d gates", len(ranges), len(gates))
	}
	for i, g := range gates {
		if err := t.ctrl.SetRange(g, ranges[i]); err != nil {
			return err
		}
	}
	return nil
}

// ClearGateRanges resets each gate's valid range to its safety range, except
// gates at the given indices.
func (t *Tuner) ClearGateRanges(gates []*device.Gate, skip []int) error {
	skipSet := make(map[int]struct{}, len(skip))
	for _, i := range skip {
		skipSet[i] = struct{}{}
	}
	for i, g := range gates {
		if _, ok := skipSet[i]; ok {
			continue
		}
		if err := t.ctrl.SetRange(g, g.SafetyRange()); err != nil {
			return err
		}
	}
	return nil
}

// withDeviceSettings overlays the device's current normalization constants
// onto the data settings for the duration of fn, then puts the original
// settings back. The overlay never leaks across calls or errors.
func (t *Tuner) withDeviceSettings(dev *device.Device, fn func() error) error {
	original := t.data
	t.data.NormalizationConstants = dev.NormalizationConstants()
	defer func() {
		t.data = original
	}()
	return fn()
}

// runGateSweep runs one single-gate characterization sweep and attaches the
// device gate status snapshot to the result. A non-nil error means the
// measurement collaborator itself failed.
func (t *Tuner) runGateSweep(dev *device.Device, g *device.Gate) (stage.Result, error) {
	setpoints := t.setpoints
	setpoints.GatesToSweep = []string{g.Name()}

	cfg := stage.Config{
		Data:       t.data,
		Setpoints:  setpoints,
		FitOptions: t.fitOptions["pinchofffit"],
		Classifier: t.classifiers[ClassifierPinchoff],
	}

	res, err := t.stage.Run(cfg)
	if err != nil {
		return stage.Result{}, pkgerrors.Wrapf(err, "characterization sweep of gate %s failed", g.Name())
	}

	status, err := dev.Status(t.ctrl)
	if err != nil {
		return stage.Result{}, pkgerrors.Wrap(err, "failed to snapshot gate status")
	}
	res.GateStatus = status

	logrus.WithFields(logrus.Fields{
		"device":  dev.Name(),
		"gate":    g.Name(),
		"success": res.Success,
	}).Debug("characterization sweep finished")

	return res, nil
}

func (t *Tuner) appendHistory(deviceName string, r *TuningResult) {
	t.results[deviceName] = append(t.results[deviceName], r)
}

func gateNames(gates []*device.Gate) string {
	names := make([]string, 0, len(gates))
	for _, g := range gates {
		names = append(names, g.Name())
	}
	return strings.Join(names, ", ")
}

func defaultComment(gates []*device.Gate) string {
	return fmt.Sprintf("characterizing gates %s", gateNames(gates))
}
