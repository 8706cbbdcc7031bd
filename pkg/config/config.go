package config

import (
	"github.com/classicvalues/nanotune/pkg/device"
)

// Config is the daemon configuration.
type Config interface {
	VoltageStep() float64
	VoltagePrecision() float64
	SignalThresholds() map[string]float64
	CalibrationCron() string
	AllowNonRootAccess() bool
	DeviceLayout() device.Layout
	DBName() string

	SetVoltageStep(float64)
	SetCalibrationCron(string)
	SetAllowNonRootAccess(bool)

	// Load reads the configuration from the source.
	Load() error
	// Save saves the configuration to the source.
	Save() error
}
