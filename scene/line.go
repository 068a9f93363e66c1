package scene

import "fmt"

// Line connects two WorldPoints and optionally asserts a world axis its
// direction must run parallel to and/or a target length. Axis-aligned
// lines with a known length are what lets initcam infer a third
// WorldPoint's coordinate from two already-known ones before any solve
// has run (spec's "inference propagation"), and what residual.Distance
// and residual.LineDirection hold the solver to afterward.
type Line struct {
	A, B ID // WorldPoint IDs.

	// HasAxis and Axis describe a direction constraint: B-A is expected
	// to run parallel to the named world axis. HasAxis is false for a
	// line that only carries a length constraint along its own
	// (unconstrained) direction.
	HasAxis bool
	Axis    WorldAxis

	// HasLength and Length/Tolerance describe a length constraint: the
	// Euclidean distance between A and B is expected to equal Length,
	// within Tolerance (residual.Build weights the line's
	// residual.Distance by 1/Tolerance² when Tolerance is positive).
	HasLength bool
	Length    float64
	Tolerance float64
}

// Validate checks that the line references two distinct WorldPoints and
// that any length constraint is non-negative.
func (l Line) Validate() error {
	if l.A == l.B {
		return fmt.Errorf("scene: line has identical endpoints (id %d)", l.A)
	}
	if l.HasLength && l.Length < 0 {
		return fmt.Errorf("scene: line has negative length %g", l.Length)
	}
	return nil
}
