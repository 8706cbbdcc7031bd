package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/classicvalues/nanotune/pkg/device"
)

func TestFileDefaults(t *testing.T) {
	f := NewFileFromConfig(&RawFileConfig{}, "")

	if got := f.VoltageStep(); got != 0.2 {
		t.Errorf("VoltageStep() = %v, want default 0.2", got)
	}
	if got := f.VoltagePrecision(); got != 0.05 {
		t.Errorf("VoltagePrecision() = %v, want default 0.05", got)
	}
	if got := f.SignalThresholds(); got["transport"] != 0.1 {
		t.Errorf("SignalThresholds() = %v, want default transport 0.1", got)
	}
	if f.AllowNonRootAccess() {
		t.Error("AllowNonRootAccess() = true, want default false")
	}
}

func TestFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nanotune.json")

	f := NewFileFromConfig(&RawFileConfig{}, path)
	f.SetVoltageStep(0.5)
	f.SetCalibrationCron("0 3 * * *")
	f.SetAllowNonRootAccess(true)
	if err := f.Save(); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := NewFile(path)
	if err != nil {
		t.Fatalf("NewFile() error = %v", err)
	}
	if got := loaded.VoltageStep(); got != 0.5 {
		t.Errorf("VoltageStep() = %v, want 0.5", got)
	}
	if got := loaded.CalibrationCron(); got != "0 3 * * *" {
		t.Errorf("CalibrationCron() = %q, want the saved expression", got)
	}
	if !loaded.AllowNonRootAccess() {
		t.Error("AllowNonRootAccess() = false, want true")
	}
}

func TestFileLoadMissingAndEmpty(t *testing.T) {
	dir := t.TempDir()

	// Missing file: empty config, no error.
	f, err := NewFile(filepath.Join(dir, "does-not-exist.json"))
	if err != nil {
		t.Fatalf("NewFile() error = %v for missing file", err)
	}
	if got := f.VoltageStep(); got != 0.2 {
		t.Errorf("VoltageStep() = %v, want default", got)
	}

	// Empty file: same.
	empty := filepath.Join(dir, "empty.json")
	if err := os.WriteFile(empty, []byte("  \n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewFile(empty); err != nil {
		t.Fatalf("NewFile() error = %v for empty file", err)
	}
}

func TestFileDeviceLayout(t *testing.T) {
	layout := device.Layout{
		Name:     "chip",
		Gates:    []device.GateLayout{{Name: "top_barrier", SafetyMin: -2, SafetyMax: 0}},
		Channels: []string{"transport"},
	}
	f := NewFileFromConfig(&RawFileConfig{Device: &layout}, "")

	got := f.DeviceLayout()
	if got.Name != "chip" || len(got.Gates) != 1 || got.Gates[0].Name != "top_barrier" {
		t.Errorf("DeviceLayout() = %+v", got)
	}
}
