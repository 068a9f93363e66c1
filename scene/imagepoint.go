package scene

import "github.com/scottlawsonbc/slam/code/photon/recon/r2"

// ImagePoint is a single 2D observation of a WorldPoint in a Viewpoint's
// image. It is owned by exactly one Viewpoint (stored in that
// Viewpoint's own slice, not a project-level arena), and references
// exactly one WorldPoint by ID.
type ImagePoint struct {
	WorldPointID ID
	Pixel        r2.Point

	// Excluded marks an observation as removed from the residual set by
	// outlier detection. It stays in the Viewpoint's slice (rather than
	// being deleted) so a later re-solve with a different candidate plan
	// can still see it, and so reporting can say how many were dropped.
	Excluded bool

	// LastResidual caches the (du, dv) pixel residual from the most
	// recent solve, in image pixel units. It is the value
	// WorldPoint.OptimizationInfo and outlier detection both read.
	LastResidual r2.Vec
}
