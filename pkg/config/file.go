package config

import (
	"encoding/json"
	"io"
	"os"
	"strings"
	"sync"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/classicvalues/nanotune/pkg/device"
	"github.com/classicvalues/nanotune/pkg/utils/ptr"
)

var defaultFileConfig = &RawFileConfig{
	VoltageStep:      ptr.To(0.2),
	VoltagePrecision: ptr.To(0.05),
	SignalThresholds: map[string]float64{"transport": 0.1},
	CalibrationCron:  ptr.To(""),
	// The daemon socket is root-owned by default; users opt in to wider
	// permissions explicitly.
	AllowNonRootAccess: ptr.To(false),
	DBName:             ptr.To("tuning.db"),
}

var _ Config = &File{}

// File is a JSON-file-backed Config.
type File struct {
	c        *RawFileConfig
	mu       *sync.RWMutex
	filepath string
}

// NewFile loads a file-backed config from configPath.
func NewFile(configPath string) (*File, error) {
	f := &File{
		filepath: configPath,
		mu:       &sync.RWMutex{},
	}
	if err := f.Load(); err != nil {
		return nil, err
	}

	return f, nil
}

// NewFileFromConfig wraps an existing raw config, falling back to defaults
// when nil.
func NewFileFromConfig(c *RawFileConfig, configPath string) *File {
	if c == nil {
		c = defaultFileConfig
	}

	return &File{
		c:        c,
		mu:       &sync.RWMutex{},
		filepath: configPath,
	}
}

// RawFileConfig is the on-disk shape of the config. Absent fields fall back
// to defaults.
type RawFileConfig struct {
	VoltageStep        *float64           `json:"voltageStep,omitempty"`
	VoltagePrecision   *float64           `json:"voltagePrecision,omitempty"`
	SignalThresholds   map[string]float64 `json:"signalThresholds,omitempty"`
	CalibrationCron    *string            `json:"calibrationCron,omitempty"`
	AllowNonRootAccess *bool              `json:"allowNonRootAccess,omitempty"`
	DBName             *string            `json:"dbName,omitempty"`
	Device             *device.Layout     `json:"device,omitempty"`
}

// NewRawFileConfigFromConfig snapshots a Config into its raw file shape.
func NewRawFileConfigFromConfig(c Config) (*RawFileConfig, error) {
	if c == nil {
		return nil, pkgerrors.New("config is nil")
	}

	layout := c.DeviceLayout()
	return &RawFileConfig{
		VoltageStep:        ptr.To(c.VoltageStep()),
		VoltagePrecision:   ptr.To(c.VoltagePrecision()),
		SignalThresholds:   c.SignalThresholds(),
		CalibrationCron:    ptr.To(c.CalibrationCron()),
		AllowNonRootAccess: ptr.To(c.AllowNonRootAccess()),
		DBName:             ptr.To(c.DBName()),
		Device:             &layout,
	}, nil
}

func (f *File) VoltageStep() float64 {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.c.VoltageStep != nil {
		return *f.c.VoltageStep
	}
	return *defaultFileConfig.VoltageStep
}

func (f *File) VoltagePrecision() float64 {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.c.VoltagePrecision != nil {
		return *f.c.VoltagePrecision
	}
	return *defaultFileConfig.VoltagePrecision
}

func (f *File) SignalThresholds() map[string]float64 {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	src := f.c.SignalThresholds
	if src == nil {
		src = defaultFileConfig.SignalThresholds
	}

	out := make(map[string]float64, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

func (f *File) CalibrationCron() string {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.c.CalibrationCron != nil {
		return *f.c.CalibrationCron
	}
	return *defaultFileConfig.CalibrationCron
}

func (f *File) AllowNonRootAccess() bool {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.c.AllowNonRootAccess != nil {
		return *f.c.AllowNonRootAccess
	}
	return *defaultFileConfig.AllowNonRootAccess
}

func (f *File) DBName() string {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.c.DBName != nil {
		return *f.c.DBName
	}
	return *defaultFileConfig.DBName
}

func (f *File) DeviceLayout() device.Layout {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.c.Device != nil {
		return *f.c.Device
	}
	return device.Layout{}
}

func (f *File) SetVoltageStep(v float64) {
	if f.c == nil {
		panic("config is nil")
	}
	if v <= 0 {
		panic("voltage step must be positive")
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.c.VoltageStep = &v
}

func (f *File) SetCalibrationCron(expr string) {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.c.CalibrationCron = &expr
}

func (f *File) SetAllowNonRootAccess(b bool) {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.c.AllowNonRootAccess = &b
}

func (f *File) Load() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	fp, err := os.Open(f.filepath)
	if err != nil {
		if os.IsNotExist(err) {
			// If the file does not exist, return the empty config.
			// Do not make f.c a nil.
			f.c = &RawFileConfig{}
			return nil
		}
		return pkgerrors.Wrapf(err, "failed to open file %s", f.filepath)
	}
	defer func(fp *os.File) {
		if err := fp.Close(); err != nil {
			logrus.Warnf("failed to close file %s", f.filepath)
		}
	}(fp)

	// Since we want to tell if the file is empty, using json.Decoder will
	// not work.
	b, err := io.ReadAll(fp)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to read file %s", f.filepath)
	}

	if strings.TrimSpace(string(b)) == "" {
		f.c = &RawFileConfig{}
		return nil
	}

	conf := RawFileConfig{}
	if err := json.Unmarshal(b, &conf); err != nil {
		return pkgerrors.Wrapf(err, "failed to unmarshal config from file %s", f.filepath)
	}
	f.c = &conf

	return nil
}

func (f *File) Save() error {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.c == nil {
		return pkgerrors.New("config is nil")
	}

	fp, err := os.OpenFile(f.filepath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to open file %s", f.filepath)
	}
	defer func(fp *os.File) {
		if err := fp.Close(); err != nil {
			logrus.Warnf("failed to close file %s", f.filepath)
		}
	}(fp)

	enc := json.NewEncoder(fp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(f.c); err != nil {
		return pkgerrors.Wrapf(err, "failed to encode config to file %s", f.filepath)
	}

	return nil
}

// LogrusFields returns the config as structured log fields.
func (f *File) LogrusFields() logrus.Fields {
	if f.c == nil {
		panic("config is nil")
	}

	return logrus.Fields{
		"voltageStep":        f.VoltageStep(),
		"voltagePrecision":   f.VoltagePrecision(),
		"signalThresholds":   f.SignalThresholds(),
		"calibrationCron":    f.CalibrationCron(),
		"allowNonRootAccess": f.AllowNonRootAccess(),
		"device":             f.DeviceLayout().Name,
	}
}
