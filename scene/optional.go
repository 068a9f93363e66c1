package scene

// Axis is an optional scalar coordinate value. Set is false when the
// axis has not been given a value by any tier (locked, inferred, or
// optimized); code reading a WorldPoint's effective coordinate must check
// Set before trusting Value.
type Axis struct {
	Value float64
	Set   bool
}

// Fixed returns a Set Axis with the given value.
func Fixed(v float64) Axis { return Axis{Value: v, Set: true} }

// AxisSource names which tier last supplied an Axis's value, in priority
// order from highest (Locked) to lowest (Optimized). It is reported by
// WorldPoint.AxisSource and WorldPoint.EffectiveAxis.
type AxisSource int

const (
	// SourceNone means no tier has a value for this axis yet.
	SourceNone AxisSource = iota
	// SourceLocked means the user pinned this axis to a known value.
	SourceLocked
	// SourceInferred means an initialization strategy derived this axis
	// (by triangulation from posed cameras, or from an axis-aligned line
	// length) before the solve began.
	SourceInferred
	// SourceOptimized means only the solver has ever assigned this axis
	// a value; it is free to keep moving on every iteration.
	SourceOptimized
)

func (s AxisSource) String() string {
	switch s {
	case SourceLocked:
		return "locked"
	case SourceInferred:
		return "inferred"
	case SourceOptimized:
		return "optimized"
	default:
		return "none"
	}
}
