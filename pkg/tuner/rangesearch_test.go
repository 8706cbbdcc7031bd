package tuner

import (
	"errors"
	"math"
	"testing"

	"github.com/classicvalues/nanotune/pkg/device"
	"github.com/classicvalues/nanotune/pkg/stage"
)

func TestMeasureInitialRanges(t *testing.T) {
	dev, _, ctrl := newTestDevice(t, device.Range{Min: -2, Max: 0})
	driving, dependent := dev.Gates()[0], dev.Gates()[1]

	// Forward scan over [0, -1, -2]: the dependent gate responds at the
	// second step (driving gate at -1). The reverse probe succeeds
	// immediately with a fitted low voltage of -0.5.
	st := &scriptedStage{fn: func(call int, cfg stage.Config) (stage.Result, error) {
		switch call {
		case 0:
			return stage.Result{Success: false, TerminationReasons: []string{"no signature"}}, nil
		case 1:
			return stage.Result{Success: true, Features: map[string]float64{"low_voltage": -1.3}}, nil
		case 2:
			return stage.Result{Success: true, Features: map[string]float64{"low_voltage": -0.5}}, nil
		}
		t.Fatalf("unexpected stage call %d", call)
		return stage.Result{}, nil
	}}
	tn := New("tuner", ctrl, st, Options{})
	tn.RegisterClassifier(ClassifierPinchoff, alwaysYes{})

	got, result, err := tn.MeasureInitialRanges(dev, driving, []*device.Gate{dependent}, 1.0)
	if err != nil {
		t.Fatalf("MeasureInitialRanges() error = %v", err)
	}

	// Lower bound: driving gate's value where the scan stopped.
	if got.Min != -1 {
		t.Errorf("lower bound = %v, want -1", got.Min)
	}
	// Upper bound: -0.5 - 0.05 = -0.55, not clamped by safety min -2.
	if got.Max != -0.55 {
		t.Errorf("upper bound = %v, want -0.55", got.Max)
	}

	entries := result.Entries()
	wantNames := []string{
		"characterization_left_barrier",
		"characterization_left_barrier",
		"characterization_top_barrier",
	}
	wantSuccess := []bool{false, true, true}
	if len(entries) != len(wantNames) {
		t.Fatalf("got %d entries, want %d", len(entries), len(wantNames))
	}
	for i, e := range entries {
		if e.Name != wantNames[i] || e.Success != wantSuccess[i] {
			t.Errorf("entry %d = (%q, %v), want (%q, %v)", i, e.Name, e.Success, wantNames[i], wantSuccess[i])
		}
	}

	// The reverse probe measures the driving gate, not the dependent one.
	if gates := st.configs[2].Setpoints.GatesToSweep; len(gates) != 1 || gates[0] != "top_barrier" {
		t.Errorf("reverse probe swept %v, want [top_barrier]", gates)
	}

	// Terminal state: whole device back at its highest extreme.
	for _, g := range dev.Gates() {
		if v := mustVoltage(t, ctrl, g); v != 0 {
			t.Errorf("gate %s = %v after discovery, want 0", g.Name(), v)
		}
	}

	if history := tn.Results("chip"); len(history) != 1 || history[0] != result {
		t.Errorf("Results(chip) = %v, want the returned result", history)
	}
}

func TestMeasureInitialRangesClampsToSafetyMin(t *testing.T) {
	conn := device.NewMockConn(
		map[string]float64{"top_barrier": 0, "left_barrier": 0},
		map[string]float64{"transport": 0},
	)
	gates := []*device.Gate{
		device.NewGate("top_barrier", device.Range{Min: -4, Max: 0}),
		device.NewGate("left_barrier", device.Range{Min: -2, Max: 0}),
	}
	dev, err := device.NewDevice("chip", gates,
		map[string]device.Readout{"transport": device.ConnReadout{Conn: conn, Key: "transport"}})
	if err != nil {
		t.Fatalf("NewDevice() error = %v", err)
	}
	ctrl := device.NewController(conn)

	// Dependent gate responds at the very first forward step; the reverse
	// probe reports a low voltage below the driving gate's safety minimum.
	st := &scriptedStage{fn: func(call int, cfg stage.Config) (stage.Result, error) {
		switch call {
		case 0:
			return stage.Result{Success: true, Features: map[string]float64{"low_voltage": -1}}, nil
		case 1:
			return stage.Result{Success: true, Features: map[string]float64{"low_voltage": -5.0}}, nil
		}
		t.Fatalf("unexpected stage call %d", call)
		return stage.Result{}, nil
	}}
	tn := New("tuner", ctrl, st, Options{})
	tn.RegisterClassifier(ClassifierPinchoff, alwaysYes{})

	got, _, err := tn.MeasureInitialRanges(dev, gates[0], []*device.Gate{gates[1]}, 2.0)
	if err != nil {
		t.Fatalf("MeasureInitialRanges() error = %v", err)
	}

	// Responding at the first step legitimately yields that step's value.
	if got.Min != 0 {
		t.Errorf("lower bound = %v, want 0", got.Min)
	}
	// -5.0 - 0.5 = -5.5, clamped to the safety minimum -4, not -5.5.
	if got.Max != -4 {
		t.Errorf("upper bound = %v, want -4 (clamped)", got.Max)
	}
}

func TestMeasureInitialRangesForwardTermination(t *testing.T) {
	conn := device.NewMockConn(
		map[string]float64{"top": 0, "g1": 0, "g2": 0},
		map[string]float64{"transport": 0},
	)
	safety := device.Range{Min: -2, Max: 0}
	gates := []*device.Gate{
		device.NewGate("top", safety),
		device.NewGate("g1", safety),
		device.NewGate("g2", safety),
	}
	dev, err := device.NewDevice("chip", gates,
		map[string]device.Readout{"transport": device.ConnReadout{Conn: conn, Key: "transport"}})
	if err != nil {
		t.Fatalf("NewDevice() error = %v", err)
	}
	ctrl := device.NewController(conn)

	// g1 responds at step 0, g2 at step 2. Calls:
	//   step 0: g1 (success), g2 (fail)
	//   step 1: g2 (fail)        - g1 is skipped once responded
	//   step 2: g2 (success)     - scan stops at max(s1, s2)
	//   reverse: success
	st := &scriptedStage{fn: func(call int, cfg stage.Config) (stage.Result, error) {
		switch call {
		case 0, 3:
			return stage.Result{Success: true, Features: map[string]float64{"low_voltage": -1}}, nil
		case 1, 2:
			return stage.Result{Success: false}, nil
		case 4:
			return stage.Result{Success: true, Features: map[string]float64{"low_voltage": -0.2}}, nil
		}
		t.Fatalf("unexpected stage call %d", call)
		return stage.Result{}, nil
	}}
	tn := New("tuner", ctrl, st, Options{})
	tn.RegisterClassifier(ClassifierPinchoff, alwaysYes{})

	got, result, err := tn.MeasureInitialRanges(dev, gates[0], []*device.Gate{gates[1], gates[2]}, 1.0)
	if err != nil {
		t.Fatalf("MeasureInitialRanges() error = %v", err)
	}

	// The scan terminates at step 2 (driving gate at -2), not earlier.
	if got.Min != -2 {
		t.Errorf("lower bound = %v, want -2", got.Min)
	}

	// 4 forward attempts + 1 reverse probe, all recorded.
	if result.Len() != 5 {
		t.Errorf("recorded %d entries, want 5", result.Len())
	}

	// The reverse probe steps the last responding gate (g2): its first probe
	// setpoint is g2's safety maximum while g1 stays at the device extreme.
	if gates := st.configs[4].Setpoints.GatesToSweep; len(gates) != 1 || gates[0] != "top" {
		t.Errorf("reverse probe swept %v, want [top]", gates)
	}
}

func TestMeasureInitialRangesExhausted(t *testing.T) {
	tests := []struct {
		name      string
		fn        func(call int, cfg stage.Config) (stage.Result, error)
		wantPhase string
		wantCalls int
	}{
		{
			name: "reverse probe never succeeds",
			fn: func(call int, cfg stage.Config) (stage.Result, error) {
				// Forward succeeds immediately, every reverse probe fails.
				if call == 0 {
					return stage.Result{Success: true}, nil
				}
				return stage.Result{Success: false}, nil
			},
			wantPhase: "reverse probe",
			// 1 forward + 3 reverse steps over [0, -1, -2].
			wantCalls: 4,
		},
		{
			name: "nothing responds in the forward scan",
			fn: func(call int, cfg stage.Config) (stage.Result, error) {
				return stage.Result{Success: false}, nil
			},
			wantPhase: "forward scan",
			wantCalls: 3,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev, _, ctrl := newTestDevice(t, device.Range{Min: -2, Max: 0})
			st := &scriptedStage{fn: tt.fn}
			tn := New("tuner", ctrl, st, Options{})
			tn.RegisterClassifier(ClassifierPinchoff, alwaysYes{})

			_, result, err := tn.MeasureInitialRanges(dev, dev.Gates()[0], []*device.Gate{dev.Gates()[1]}, 1.0)

			var exhausted *RangeExhaustedError
			if !errors.As(err, &exhausted) {
				t.Fatalf("error = %v, want RangeExhaustedError", err)
			}
			if exhausted.Phase != tt.wantPhase {
				t.Errorf("phase = %q, want %q", exhausted.Phase, tt.wantPhase)
			}
			// The partial result is attached for inspection.
			if exhausted.Result == nil || exhausted.Result != result {
				t.Error("exhausted error does not carry the partial result")
			}
			if st.calls != tt.wantCalls {
				t.Errorf("stage ran %d times, want %d", st.calls, tt.wantCalls)
			}
			// Nothing lands in the history on failure.
			if history := tn.Results("chip"); len(history) != 0 {
				t.Errorf("Results(chip) has %d entries after failure, want 0", len(history))
			}
		})
	}
}

func TestStepCount(t *testing.T) {
	tests := []struct {
		name string
		r    device.Range
		step float64
		want int
	}{
		{name: "exact fit", r: device.Range{Min: -2, Max: 0}, step: 1.0, want: 3},
		{name: "ceiling on non-integer ratio", r: device.Range{Min: -3, Max: 0}, step: 1.0000001, want: 4},
		{name: "step wider than range", r: device.Range{Min: -1, Max: 0}, step: 5, want: 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := stepCount(tt.r, tt.step); got != tt.want {
				t.Errorf("stepCount(%+v, %v) = %d, want %d", tt.r, tt.step, got, tt.want)
			}
		})
	}
}

func TestLinspace(t *testing.T) {
	got := linspace(0, -2, 3)
	want := []float64{0, -1, -2}
	if len(got) != len(want) {
		t.Fatalf("linspace returned %d values, want %d", len(got), len(want))
	}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-12 {
			t.Errorf("linspace[%d] = %v, want %v", i, got[i], want[i])
		}
	}
	if got[len(got)-1] != -2 {
		t.Error("linspace must include the exact endpoint")
	}
}
