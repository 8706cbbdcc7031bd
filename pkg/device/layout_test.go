package device

import (
	"testing"
)

func TestFromLayout(t *testing.T) {
	l := Layout{
		Name: "chip",
		Gates: []GateLayout{
			{Name: "top_barrier", SafetyMin: -2, SafetyMax: 0},
			{Name: "left_barrier", SafetyMin: -2, SafetyMax: 0},
		},
		Channels: []string{"transport"},
	}
	conn := MockConnForLayout(l)

	dev, err := FromLayout(l, conn)
	if err != nil {
		t.Fatalf("FromLayout() error = %v", err)
	}
	if len(dev.Gates()) != 2 {
		t.Fatalf("got %d gates, want 2", len(dev.Gates()))
	}
	if _, ok := dev.Readouts()["transport"]; !ok {
		t.Error("transport channel missing")
	}

	// The mock connection starts every gate at its safety maximum.
	for _, g := range dev.Gates() {
		v, err := conn.GetVoltage(g.Name())
		if err != nil {
			t.Fatalf("GetVoltage(%s) error = %v", g.Name(), err)
		}
		if v != g.SafetyRange().Max {
			t.Errorf("gate %s starts at %v, want %v", g.Name(), v, g.SafetyRange().Max)
		}
	}
}

func TestFromLayoutValidation(t *testing.T) {
	tests := []struct {
		name string
		l    Layout
	}{
		{name: "no name", l: Layout{Gates: []GateLayout{{Name: "g"}}}},
		{name: "no gates", l: Layout{Name: "chip"}},
		{name: "inverted safety range", l: Layout{
			Name:  "chip",
			Gates: []GateLayout{{Name: "g", SafetyMin: 0, SafetyMax: -1}},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := FromLayout(tt.l, NewMockConn(nil, nil)); err == nil {
				t.Error("FromLayout() should fail")
			}
		})
	}
}
