package tuner

import (
	"errors"
	"fmt"
)

var (
	// ErrNoClassifier is returned when a tuning operation requires a pinchoff
	// classifier and none is registered. Raised before any hardware mutation.
	ErrNoClassifier = errors.New("no pinchoff classifier registered")

	// ErrDegenerateCalibration is returned when a channel's normalization
	// constants have min == max, so readings cannot be normalized.
	ErrDegenerateCalibration = errors.New("degenerate normalization constants")

	// ErrNotCalibrated is returned when a channel has no normalization
	// constants at all.
	ErrNotCalibrated = errors.New("no normalization constants")
)

// RangeExhaustedError is returned by range discovery when a probe sequence is
// exhausted without the expected signature appearing. Result carries the
// partial tuning result so the caller can inspect what was tried.
type RangeExhaustedError struct {
	Gate   string
	Phase  string
	Result *TuningResult
}

func (e *RangeExhaustedError) Error() string {
	return fmt.Sprintf("range discovery for gate %s exhausted during %s", e.Gate, e.Phase)
}
