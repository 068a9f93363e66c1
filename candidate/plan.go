// Package candidate implements the branching orchestrator that tries a
// handful of initialization strategies against the same project and
// keeps whichever one the solver likes best. A single initialization
// path is often wrong in a way no amount of LM iteration recovers from
// (the vanishing-point Y axis guessed the wrong handedness, an inferred
// length took the wrong sign) -- trying a short, fixed list of
// plausible variants and scoring them by reprojection error is cheaper
// and more robust than trying to detect which variant is right ahead of
// time.
package candidate

import "github.com/scottlawsonbc/slam/code/photon/recon/initcam"

// Plan is one combination of initialization choices: whether to let the
// solver move every viewpoint's principal point, and which
// sign to commit to when PropagateAxisLengths resolves a Line's
// direction ambiguity. (The anchor choice itself --  vanishing-point vs.
// essential-matrix vs. PnP vs. none, per viewpoint -- is not branched
// over here: initcam.Initialize already picks the best available
// strategy per viewpoint from what the project's annotations support,
// so there is nothing to choose between at this layer except when that
// choice is genuinely ambiguous, which the axis sign capture.)
type Plan struct {
	Description     string
	PossiblyCropped bool
	AxisSign        initcam.AxisSign
}

// Enumerate returns up to maxAttempts plans, in the fixed order the
// orchestrator tries them: the straightforward case first, then the
// alternate axis-sign commitment, then relaxed-crop as a last resort for
// projects whose principal point is legitimately off-center. A
// maxAttempts of 1 runs only the straightforward case; values above the
// number of distinct plans defined here are capped.
func Enumerate(maxAttempts int) []Plan {
	all := []Plan{
		{Description: "default", AxisSign: initcam.AxisPositive},
		{Description: "negative-axis-sign", AxisSign: initcam.AxisNegative},
		{Description: "possibly-cropped", PossiblyCropped: true, AxisSign: initcam.AxisPositive},
	}
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if maxAttempts < len(all) {
		all = all[:maxAttempts]
	}
	return all
}
