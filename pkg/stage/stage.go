// Package stage defines the contract between the tuning core and the
// single-sweep measurement pipeline. The pipeline internals (acquisition,
// normalization, fitting, classification) live behind the Stage interface;
// the core only builds configurations and consumes results.
package stage

import (
	"github.com/classicvalues/nanotune/pkg/device"
)

// FeatureLowVoltage is the fitted voltage below which the signal is pinched
// off. Range discovery reads it from successful reverse-probe sweeps.
const FeatureLowVoltage = "low_voltage"

// DataSettings configures where and how measurement data is recorded.
// NormalizationConstants is overlaid per device for the duration of one
// tuning operation and removed afterwards.
type DataSettings struct {
	DBName                 string                  `json:"dbName,omitempty"`
	DBFolder               string                  `json:"dbFolder,omitempty"`
	ExperimentID           int                     `json:"experimentId,omitempty"`
	NormalizationConstants map[string]device.Range `json:"normalizationConstants,omitempty"`
}

// SetpointSettings configures how sweep setpoints are generated. GatesToSweep
// is restricted to a single gate for every configuration the core builds.
type SetpointSettings struct {
	VoltagePrecision float64  `json:"voltagePrecision"`
	GatesToSweep     []string `json:"gatesToSweep,omitempty"`
}

// FitOptions carries per-fit-kind numeric options, keyed by fit name
// (e.g. "pinchofffit").
type FitOptions map[string]map[string]float64

// Classifier judges whether a normalized swept trace shows the expected
// physical signature.
type Classifier interface {
	Predict(trace []float64) (bool, error)
}

// Config is an immutable-per-call snapshot handed to one sweep.
type Config struct {
	Data       DataSettings
	Setpoints  SetpointSettings
	FitOptions map[string]float64
	Classifier Classifier
}

// Result is the outcome of one characterization sweep. Features is populated
// on success; GateStatus is attached by the orchestrator after the sweep.
type Result struct {
	Success            bool                         `json:"success"`
	TerminationReasons []string                     `json:"terminationReasons"`
	Features           map[string]float64           `json:"features,omitempty"`
	GateStatus         map[string]device.GateStatus `json:"deviceGatesStatus,omitempty"`
}

// Stage runs one measurement sweep. A non-nil error means the measurement
// pipeline itself failed and is distinct from Result.Success == false, which
// means the sweep ran but the expected signature was absent.
type Stage interface {
	Run(cfg Config) (Result, error)
}

// Func adapts a plain function to the Stage interface.
type Func func(cfg Config) (Result, error)

func (f Func) Run(cfg Config) (Result, error) { return f(cfg) }
