package device

import (
	"testing"
)

func TestGateSetValidRange(t *testing.T) {
	tests := []struct {
		name    string
		safety  Range
		r       Range
		wantErr bool
	}{
		{name: "within safety", safety: Range{Min: -2, Max: 0}, r: Range{Min: -1, Max: -0.5}},
		{name: "equal to safety", safety: Range{Min: -2, Max: 0}, r: Range{Min: -2, Max: 0}},
		{name: "below safety min", safety: Range{Min: -2, Max: 0}, r: Range{Min: -3, Max: 0}, wantErr: true},
		{name: "above safety max", safety: Range{Min: -2, Max: 0}, r: Range{Min: -1, Max: 1}, wantErr: true},
		{name: "inverted", safety: Range{Min: -2, Max: 0}, r: Range{Min: -0.5, Max: -1}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewGate("g", tt.safety)
			err := g.SetValidRange(tt.r)
			if (err != nil) != tt.wantErr {
				t.Fatalf("SetValidRange(%+v) error = %v, wantErr %v", tt.r, err, tt.wantErr)
			}
			if err == nil && g.ValidRange() != tt.r {
				t.Errorf("ValidRange() = %+v, want %+v", g.ValidRange(), tt.r)
			}
		})
	}
}

func TestNewDeviceDuplicateGate(t *testing.T) {
	gates := []*Gate{
		NewGate("g", Range{Min: -1, Max: 0}),
		NewGate("g", Range{Min: -1, Max: 0}),
	}
	if _, err := NewDevice("chip", gates, nil); err == nil {
		t.Error("NewDevice() should reject duplicate gate names")
	}
}

func TestNormalizationConstantsCopy(t *testing.T) {
	dev, err := NewDevice("chip", []*Gate{NewGate("g", Range{Min: -1, Max: 0})}, nil)
	if err != nil {
		t.Fatalf("NewDevice() error = %v", err)
	}

	in := map[string]Range{"transport": {Min: 0, Max: 2}}
	dev.SetNormalizationConstants(in)

	// Mutating either the input or the returned map must not change the
	// device's stored constants.
	in["transport"] = Range{Min: -9, Max: 9}
	out := dev.NormalizationConstants()
	out["transport"] = Range{Min: 5, Max: 6}

	if got := dev.NormalizationConstants()["transport"]; got != (Range{Min: 0, Max: 2}) {
		t.Errorf("stored constants = %+v, want (0, 2)", got)
	}
}

func TestDeviceStatus(t *testing.T) {
	conn := NewMockConn(map[string]float64{"g": -0.5}, nil)
	g := NewGate("g", Range{Min: -1, Max: 0})
	dev, err := NewDevice("chip", []*Gate{g}, nil)
	if err != nil {
		t.Fatalf("NewDevice() error = %v", err)
	}

	status, err := dev.Status(NewController(conn))
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}

	got := status["g"]
	if got.Voltage != -0.5 {
		t.Errorf("voltage = %v, want -0.5", got.Voltage)
	}
	if got.SafetyRange != g.SafetyRange() || got.ValidRange != g.ValidRange() {
		t.Errorf("status ranges = %+v", got)
	}
}
