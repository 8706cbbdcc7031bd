package tuner

import (
	"errors"

	pkgerrors "github.com/pkg/errors"

	"github.com/classicvalues/nanotune/pkg/device"
)

// Snapshot captures one property of a set of gates so it can be restored
// later. Restoration is attempted for every gate even if some restores fail;
// all restore errors are aggregated.
type Snapshot struct {
	restores []func() error
}

// SnapshotValues captures the current output voltage of each gate. Gates are
// restored in the same order they appear in the input list.
func SnapshotValues(ctrl *device.Controller, gates []*device.Gate) (*Snapshot, error) {
	s := &Snapshot{restores: make([]func() error, 0, len(gates))}
	for _, g := range gates {
		g := g
		v, err := ctrl.GetValue(g)
		if err != nil {
			return nil, pkgerrors.Wrapf(err, "failed to snapshot voltage of gate %s", g.Name())
		}
		s.restores = append(s.restores, func() error {
			return ctrl.SetValue(g, v)
		})
	}
	return s, nil
}

// SnapshotRanges captures the current valid range of each gate.
func SnapshotRanges(ctrl *device.Controller, gates []*device.Gate) *Snapshot {
	s := &Snapshot{restores: make([]func() error, 0, len(gates))}
	for _, g := range gates {
		g := g
		r := ctrl.GetRange(g)
		s.restores = append(s.restores, func() error {
			return ctrl.SetRange(g, r)
		})
	}
	return s
}

// Restore puts every captured gate back. A failing restore does not abort the
// remaining ones; errors are joined and returned after all gates have been
// attempted.
func (s *Snapshot) Restore() error {
	var errs []error
	for _, restore := range s.restores {
		if err := restore(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// WithValuesRestored snapshots the gates' voltages, runs fn and restores the
// voltages on every exit path, including panics. Restore errors are joined
// onto fn's error.
func WithValuesRestored(ctrl *device.Controller, gates []*device.Gate, fn func() error) (err error) {
	snap, serr := SnapshotValues(ctrl, gates)
	if serr != nil {
		return serr
	}
	defer func() {
		err = errors.Join(err, snap.Restore())
	}()
	return fn()
}

// WithRangesRestored snapshots the gates' valid ranges, runs fn and restores
// the ranges on every exit path.
func WithRangesRestored(ctrl *device.Controller, gates []*device.Gate, fn func() error) (err error) {
	snap := SnapshotRanges(ctrl, gates)
	defer func() {
		err = errors.Join(err, snap.Restore())
	}()
	return fn()
}
