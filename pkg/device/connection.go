package device

import (
	"sync"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Conn is the low-level hardware connection used to drive gate outputs and
// read signal channels. Implementations talk to the actual instrument stack;
// MockConn simulates one for tests and simulation mode.
type Conn interface {
	Open() error
	Close() error

	// GetVoltage reads the current output voltage of a gate key.
	GetVoltage(key string) (float64, error)
	// SetVoltage drives a gate key to the given voltage and blocks until the
	// output has settled.
	SetVoltage(key string, v float64) error
	// ReadSignal reads the raw value of a readout channel key.
	ReadSignal(key string) (float64, error)
}

// MockConn is an in-memory Conn with prefill values.
type MockConn struct {
	mu       sync.Mutex
	open     bool
	voltages map[string]float64
	signals  map[string]float64

	// SignalFunc, when set, computes readout values from the current gate
	// voltages instead of the static signals map.
	SignalFunc func(key string, voltages map[string]float64) (float64, error)
}

// NewMockConn returns a new mocked connection with prefill gate voltages and
// channel signals.
func NewMockConn(voltages map[string]float64, signals map[string]float64) *MockConn {
	c := &MockConn{
		voltages: make(map[string]float64),
		signals:  make(map[string]float64),
	}
	for k, v := range voltages {
		c.voltages[k] = v
	}
	for k, v := range signals {
		c.signals[k] = v
	}
	return c
}

func (c *MockConn) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.open = true
	return nil
}

func (c *MockConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.open = false
	return nil
}

func (c *MockConn) GetVoltage(key string) (float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	v, ok := c.voltages[key]
	if !ok {
		return 0, pkgerrors.Errorf("unknown gate key %q", key)
	}
	return v, nil
}

func (c *MockConn) SetVoltage(key string, v float64) error {
	logrus.WithFields(logrus.Fields{
		"key": key,
		"val": v,
	}).Trace("Trying to set gate voltage")

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.voltages[key]; !ok {
		return pkgerrors.Errorf("unknown gate key %q", key)
	}
	c.voltages[key] = v
	return nil
}

func (c *MockConn) ReadSignal(key string) (float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.SignalFunc != nil {
		voltages := make(map[string]float64, len(c.voltages))
		for k, v := range c.voltages {
			voltages[k] = v
		}
		return c.SignalFunc(key, voltages)
	}

	v, ok := c.signals[key]
	if !ok {
		return 0, pkgerrors.Errorf("unknown readout channel %q", key)
	}
	return v, nil
}

// SetSignal overrides a channel's static readout value.
func (c *MockConn) SetSignal(key string, v float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.signals[key] = v
}
