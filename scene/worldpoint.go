package scene

import "fmt"

// OptimizationInfo summarizes a WorldPoint's standing after the most
// recent solve: how many image observations reference it, and the RMS of
// their reprojection residuals. It is a cache, refreshed by
// Project.RecomputeOptimizationInfo once a solve completes -- it is not
// recomputed on every read, since recomputing it requires scanning every
// viewpoint's image points.
type OptimizationInfo struct {
	NumObservations int
	RMSReprojection float64
}

// WorldPoint is a 3D point in the reconstruction. Each axis is tracked
// across three tiers, in descending priority: Locked (the user pinned it
// to a known value, e.g. from survey data), Inferred (an initialization
// strategy derived it from constraints before any solve ran), and
// Optimized (the solver's current estimate, the only tier it is allowed
// to write). EffectiveAxis reports whichever tier has a value, preferring
// the higher-priority one.
type WorldPoint struct {
	Name string

	Locked    [3]Axis
	Inferred  [3]Axis
	Optimized [3]Axis

	info OptimizationInfo
}

// NewWorldPoint returns a WorldPoint with no axis set in any tier.
func NewWorldPoint(name string) *WorldPoint {
	return &WorldPoint{Name: name}
}

// EffectiveAxis returns the coordinate a residual provider or exporter
// should use for axis i (0=X, 1=Y, 2=Z): the locked value if present,
// otherwise the inferred value if present, otherwise the optimized value.
// The second return reports which tier supplied it.
func (w *WorldPoint) EffectiveAxis(i int) (float64, AxisSource) {
	if w.Locked[i].Set {
		return w.Locked[i].Value, SourceLocked
	}
	if w.Inferred[i].Set {
		return w.Inferred[i].Value, SourceInferred
	}
	if w.Optimized[i].Set {
		return w.Optimized[i].Value, SourceOptimized
	}
	return 0, SourceNone
}

// AxisSource reports which tier currently supplies axis i, without
// returning the value.
func (w *WorldPoint) AxisSource(i int) AxisSource {
	_, src := w.EffectiveAxis(i)
	return src
}

// IsFree reports whether axis i is free for the solver to move: it is
// free exactly when no Locked and no Inferred value constrains it. An
// axis that only the Optimized tier has ever touched is still free --
// the solver is what is moving it.
func (w *WorldPoint) IsFree(i int) bool {
	return !w.Locked[i].Set && !w.Inferred[i].Set
}

// SetOptimized writes the solver's current estimate for axis i. It is a
// no-op in effect on IsFree/EffectiveAxis whenever a Locked or Inferred
// value also exists for that axis (those take priority), but the solver
// still records its own estimate so that residual providers built from
// variable-layout slots stay consistent with what the solver last wrote.
func (w *WorldPoint) SetOptimized(i int, v float64) {
	w.Optimized[i] = Fixed(v)
}

// OptimizationInfo returns the cached observation count and RMS
// reprojection error computed by the most recent
// Project.RecomputeOptimizationInfo call.
func (w *WorldPoint) OptimizationInfo() OptimizationInfo {
	return w.info
}

// Validate checks that the WorldPoint's axis tiers are internally
// consistent: a tier's Axis values must all carry finite numbers, which
// Go's float64 zero value already satisfies, so the only failure mode is
// an empty name.
func (w *WorldPoint) Validate() error {
	if w.Name == "" {
		return fmt.Errorf("scene: world point has no name")
	}
	return nil
}

func (w *WorldPoint) String() string {
	x, _ := w.EffectiveAxis(0)
	y, _ := w.EffectiveAxis(1)
	z, _ := w.EffectiveAxis(2)
	return fmt.Sprintf("WorldPoint(%s, [%v %v %v])", w.Name, x, y, z)
}
