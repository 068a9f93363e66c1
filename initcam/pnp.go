package initcam

import (
	"fmt"

	"github.com/scottlawsonbc/slam/code/photon/recon/linalg"
	"github.com/scottlawsonbc/slam/code/photon/recon/r2"
	"github.com/scottlawsonbc/slam/code/photon/recon/r3"
	"github.com/scottlawsonbc/slam/code/photon/recon/residual"
	"github.com/scottlawsonbc/slam/code/photon/recon/rng"
	"github.com/scottlawsonbc/slam/code/photon/recon/scene"
	"github.com/scottlawsonbc/slam/code/photon/recon/solve"
	"github.com/scottlawsonbc/slam/code/photon/recon/varlayout"
)

// ransacSeed fixes the sampling order of robustifyResection so that
// initialization is reproducible for the same input correspondences, per
// the determinism requirement every other stage of this package follows.
const ransacSeed = 0x504e50 // "PnP" in hex-ish, arbitrary but fixed.

// ransacSampleSize is the minimal correspondence count the linear DLT
// needs; robustifyResection draws subsets of exactly this size.
const ransacSampleSize = 6

// ransacRounds bounds how many random subsets robustifyResection tries.
// Six points drawn from a set that is mostly inliers has a high enough
// chance of an all-inlier sample within a few dozen rounds that a fixed,
// small round count is enough without an adaptive stopping rule.
const ransacRounds = 24

// ransacInlierPixels is the reprojection distance (ignoring lens
// distortion, since this is a cheap pre-polish scoring pass, not the
// final estimate) under which a correspondence counts as an inlier.
const ransacInlierPixels = 20.0

// PnPCorrespondence is one 2D-3D match used by ResectionCamera: a known
// world point observed at a pixel in the viewpoint being resected.
type PnPCorrespondence struct {
	World r3.Point
	Pixel r2.Point
}

// ResectionCamera estimates a Viewpoint's position and rotation from at
// least 6 known 2D-3D correspondences. Rather than a minimal-solution
// solver (P3P plus RANSAC, the textbook approach when only 3 or 4 points
// are known and many of them are suspect), this takes the direct linear
// transform: solve for the 3x4 camera projection matrix via SVD given
// enough correspondences, decompose it into an intrinsics-normalized
// rotation and translation, then hand the result to a short
// Levenberg-Marquardt polish (the same solve package recon.Optimize
// itself uses, with the world points held fixed) that accounts for lens
// distortion the linear step ignores entirely. Initialization only has
// to be in the basin of convergence for the main solve, not exact, so
// this tradeoff -- a simpler, more robust linear solve plus a polish
// pass -- costs little accuracy for a lot less code than a full
// polynomial minimal solver.
func ResectionCamera(corr []PnPCorrespondence, intr scene.Intrinsics) (r3.Point, r3.Quat, error) {
	if len(corr) < ransacSampleSize {
		return r3.Point{}, r3.Quat{}, fmt.Errorf("initcam: PnP needs at least %d correspondences, got %d", ransacSampleSize, len(corr))
	}

	position, rotation, err := fitLinearPnP(corr, intr)
	if err != nil {
		return r3.Point{}, r3.Quat{}, err
	}

	// With more correspondences than the minimal requirement, a handful
	// of bad 2D-3D matches (a mislabeled point, a detector glitch) can
	// still drag the all-points linear fit away from the true pose before
	// the polish ever sees it. robustifyResection samples minimal subsets
	// and keeps whichever reprojects the whole correspondence set best,
	// the same role RANSAC plays in a textbook PnP pipeline.
	if len(corr) > ransacSampleSize {
		position, rotation = robustifyResection(corr, intr, position, rotation)
	}

	return polishResection(corr, intr, position, rotation)
}

// fitLinearPnP is the direct-linear-transform core: solve for the 3x4
// camera projection matrix via SVD given enough correspondences, then
// decompose it into an intrinsics-normalized rotation and translation.
func fitLinearPnP(corr []PnPCorrespondence, intr scene.Intrinsics) (r3.Point, r3.Quat, error) {
	rows := make([]float64, 0, len(corr)*2*12)
	for _, c := range corr {
		xn := (c.Pixel.X - intr.Cx) / intr.Fx
		yn := (c.Pixel.Y - intr.Cy) / intr.Fy
		X, Y, Z := c.World.X, c.World.Y, c.World.Z
		rows = append(rows,
			X, Y, Z, 1, 0, 0, 0, 0, -xn*X, -xn*Y, -xn*Z, -xn,
			0, 0, 0, 0, X, Y, Z, 1, -yn*X, -yn*Y, -yn*Z, -yn,
		)
	}

	svd, err := linalg.ThinSVD(len(corr)*2, 12, rows)
	if err != nil {
		return r3.Point{}, r3.Quat{}, fmt.Errorf("initcam: PnP DLT SVD failed: %w", err)
	}
	p := svd.NullVector()

	m := r3.Mat3x3{M: [3][3]float64{
		{p[0], p[1], p[2]},
		{p[4], p[5], p[6]},
		{p[8], p[9], p[10]},
	}}
	t := r3.Vec{X: p[3], Y: p[7], Z: p[11]}

	// Normalize by the scale that makes the rotation part orthonormal: the
	// third row of a true [R|t] has unit length.
	scale := r3.Vec{X: m.M[2][0], Y: m.M[2][1], Z: m.M[2][2]}.Length()
	if scale == 0 {
		return r3.Point{}, r3.Quat{}, fmt.Errorf("initcam: degenerate PnP solution")
	}
	m = m.Mul(r3.Mat3x3{M: [3][3]float64{{1 / scale, 0, 0}, {0, 1 / scale, 0}, {0, 0, 1 / scale}}})
	t = t.Divs(scale)

	// The DLT determines sign up to an overall flip; pick the sign that
	// puts the majority of points in front of the camera (positive Z in
	// camera space).
	if cheiralitySign(corr, m, t) < 0 {
		m = m.Muls(-1)
		t = t.Muls(-1)
	}

	rot := orthonormalize(m)
	// rot, t satisfy cam = rot*world + t; the camera center is where that
	// maps to zero: C = -rot^T * t (rot is orthonormal, so rot^-1 = rot^T).
	camPosition := rot.Transpose().MulVec(t.Muls(-1))
	quat := r3.QuatFromMat3x3(rot).Conj() // rot maps world->camera; Viewpoint.Rotation maps camera->world.
	position := r3.Point{X: camPosition.X, Y: camPosition.Y, Z: camPosition.Z}

	return position, quat, nil
}

// robustifyResection draws ransacRounds random minimal subsets of corr,
// fits each with fitLinearPnP, and scores every candidate pose by how
// many of the full correspondence set it reprojects within
// ransacInlierPixels. It returns the best-scoring candidate, falling
// back to (fallbackPosition, fallbackRotation) -- the all-points fit --
// unless a sampled subset scores strictly better.
func robustifyResection(corr []PnPCorrespondence, intr scene.Intrinsics, fallbackPosition r3.Point, fallbackRotation r3.Quat) (r3.Point, r3.Quat) {
	best := inlierCount(corr, intr, fallbackPosition, fallbackRotation)
	bestPosition, bestRotation := fallbackPosition, fallbackRotation

	stream := rng.New(ransacSeed)
	for round := 0; round < ransacRounds; round++ {
		sample := sampleCorrespondences(stream, corr, ransacSampleSize)
		position, rotation, err := fitLinearPnP(sample, intr)
		if err != nil {
			continue
		}
		count := inlierCount(corr, intr, position, rotation)
		if count > best {
			best = count
			bestPosition, bestRotation = position, rotation
		}
	}
	return bestPosition, bestRotation
}

// sampleCorrespondences draws n distinct correspondences from corr using
// the first n entries of a fresh Fisher-Yates permutation from stream;
// each call draws an independent permutation, so two calls can return
// the same subset.
func sampleCorrespondences(stream *rng.RNG, corr []PnPCorrespondence, n int) []PnPCorrespondence {
	perm := stream.Perm(len(corr))
	sample := make([]PnPCorrespondence, n)
	for i := 0; i < n; i++ {
		sample[i] = corr[perm[i]]
	}
	return sample
}

// inlierCount reprojects every correspondence through (position,
// rotation) using the pinhole model only (no distortion -- this is a
// cheap scoring pass ahead of polishResection, which does account for
// it) and counts how many land within ransacInlierPixels of the observed
// pixel.
func inlierCount(corr []PnPCorrespondence, intr scene.Intrinsics, position r3.Point, rotation r3.Quat) int {
	count := 0
	for _, c := range corr {
		local := rotation.Conj().RotateVec(c.World.Sub(position))
		if local.Z <= 0 {
			continue
		}
		predicted := r2.Point{
			X: intr.Fx*local.X/local.Z + intr.Cx,
			Y: intr.Fy*local.Y/local.Z + intr.Cy,
		}
		delta := predicted.Sub(c.Pixel)
		if delta.Length() <= ransacInlierPixels {
			count++
		}
	}
	return count
}

func cheiralitySign(corr []PnPCorrespondence, m r3.Mat3x3, t r3.Vec) int {
	positive := 0
	for _, c := range corr {
		w := r3.Vec{X: c.World.X, Y: c.World.Y, Z: c.World.Z}
		cam := m.MulVec(w).Add(t)
		if cam.Z > 0 {
			positive++
		}
	}
	if positive*2 < len(corr) {
		return -1
	}
	return 1
}

// orthonormalize projects m onto the nearest proper rotation matrix via
// SVD (R = U*V^T), correcting the small departures from orthonormality
// the DLT's unconstrained least squares leaves behind.
func orthonormalize(m r3.Mat3x3) r3.Mat3x3 {
	svd := r3.ComputeSVD3x3(m)
	r := svd.U.Mul(svd.V.Transpose())
	if r.Det() < 0 {
		v := r3.Mat3x3{M: [3][3]float64{
			{svd.V.M[0][0], svd.V.M[0][1], -svd.V.M[0][2]},
			{svd.V.M[1][0], svd.V.M[1][1], -svd.V.M[1][2]},
			{svd.V.M[2][0], svd.V.M[2][1], -svd.V.M[2][2]},
		}}
		r = svd.U.Mul(v.Transpose())
	}
	return r
}

// polishResection refines a linear PnP estimate with a small run of the
// shared solve.Run Levenberg-Marquardt loop over just the 7 pose variables (position and
// quaternion), using the full distortion-aware Reprojection residual so
// the result the main solve starts from already accounts for lens
// distortion the DLT step cannot model.
func polishResection(corr []PnPCorrespondence, intr scene.Intrinsics, position r3.Point, rotation r3.Quat) (r3.Point, r3.Quat, error) {
	fixedIntr := intr
	fixedIntr.FocalLocked = true
	fixedIntr.PrincipalPointLocked = true

	vp := scene.NewViewpoint("pnp-polish", fixedIntr)
	vp.Position = position
	vp.Rotation = rotation

	project := scene.NewProject()
	vpID := project.AddViewpoint(vp)
	for i, c := range corr {
		wp := scene.NewWorldPoint(fmt.Sprintf("pnp-%d", i))
		wp.Locked[0] = scene.Fixed(c.World.X)
		wp.Locked[1] = scene.Fixed(c.World.Y)
		wp.Locked[2] = scene.Fixed(c.World.Z)
		wpID := project.AddWorldPoint(wp)
		vp.AddImagePoint(scene.ImagePoint{WorldPointID: wpID, Pixel: c.Pixel})
	}

	layout := varlayout.Build(project)
	providers, err := residual.Build(project, layout)
	if err != nil {
		return position, rotation, nil // Fall back to the linear estimate rather than fail initialization.
	}
	problem := solve.NewProblem(providers, layout.NumVariables())
	x0 := layout.ReadVector(project)
	result, err := solve.Run(problem, x0, solve.Options{Tolerance: 1e-8, MaxIterations: 30, Damping: 1e-3})
	if err != nil {
		return position, rotation, nil
	}
	layout.WriteVector(project, result.X)
	polished, ok := project.Viewpoint(vpID)
	if !ok {
		return position, rotation, nil
	}
	return polished.Position, polished.Rotation, nil
}
