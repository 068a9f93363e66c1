package initcam

import (
	"fmt"

	"github.com/scottlawsonbc/slam/code/photon/recon/linalg"
	"github.com/scottlawsonbc/slam/code/photon/recon/r2"
	"github.com/scottlawsonbc/slam/code/photon/recon/r3"
	"github.com/scottlawsonbc/slam/code/photon/recon/scene"
)

// Correspondence is one 2D-2D point match between two viewpoints, used
// by EssentialMatrixPose to recover their relative pose.
type Correspondence struct {
	A, B r2.Point
}

// RelativePose is the rotation and translation direction of the second
// camera relative to the first: Rotation maps the second camera's frame
// into the first's, and TranslationDir is the second camera's center in
// the first camera's frame, recovered only up to scale (an inherent
// ambiguity of two-view geometry without any known length in the scene).
// TranslationDir is unit length and nothing in initialization rescales
// it; the scene's scale comes only from the solve's length residuals
// (Lines with a length and Distance constraints).
type RelativePose struct {
	Rotation       r3.Quat
	TranslationDir r3.Vec
}

// EssentialMatrixPose recovers the relative pose between two viewpoints
// from at least 8 correspondences via the normalized eight-point
// algorithm, disambiguating the resulting four candidate (R, t) pairs by
// a cheirality check: triangulating a handful of the correspondences and
// counting how many land in front of both cameras.
func EssentialMatrixPose(corr []Correspondence, intrA, intrB scene.Intrinsics) (RelativePose, error) {
	if len(corr) < 8 {
		return RelativePose{}, fmt.Errorf("initcam: essential matrix needs at least 8 correspondences, got %d", len(corr))
	}

	rows := make([]float64, 0, len(corr)*9)
	normA := make([]r3.Vec, len(corr))
	normB := make([]r3.Vec, len(corr))
	for i, c := range corr {
		xa, ya := undistortPixel(c.A, intrA)
		xb, yb := undistortPixel(c.B, intrB)
		normA[i] = r3.Vec{X: xa, Y: ya, Z: 1}
		normB[i] = r3.Vec{X: xb, Y: yb, Z: 1}
		// Each row encodes a^T * E * b = 0, so the (R, t) decomposed from E
		// maps camera B's frame into camera A's, with t camera B's center
		// in camera A's frame: RelativePose's convention.
		rows = append(rows,
			xa*xb, xa*yb, xa,
			ya*xb, ya*yb, ya,
			xb, yb, 1,
		)
	}

	svd, err := linalg.ThinSVD(len(corr), 9, rows)
	if err != nil {
		return RelativePose{}, fmt.Errorf("initcam: eight-point SVD failed: %w", err)
	}
	e := svd.NullVector()
	eRaw := r3.Mat3x3{M: [3][3]float64{
		{e[0], e[1], e[2]},
		{e[3], e[4], e[5]},
		{e[6], e[7], e[8]},
	}}

	// Project onto the manifold of valid essential matrices: equal
	// nonzero singular values, third singular value zero.
	esvd := r3.ComputeSVD3x3(eRaw)
	s := (esvd.S.X + esvd.S.Y) / 2
	sigma := r3.Mat3x3{M: [3][3]float64{{s, 0, 0}, {0, s, 0}, {0, 0, 0}}}
	essential := esvd.U.Mul(sigma).Mul(esvd.V.Transpose())

	candidates := decomposeEssential(essential)
	best, err := disambiguateCheirality(candidates, normA, normB)
	if err != nil {
		return RelativePose{}, err
	}
	return best, nil
}

// decomposeEssential returns the four (rotation, translation-direction)
// candidates consistent with an essential matrix, following the
// standard construction: E = U * diag(1,1,0) * V^T, R = U*W*V^T or
// U*W^T*V^T (W a fixed 90-degree rotation about Z), t = +-U's third
// column.
func decomposeEssential(e r3.Mat3x3) []RelativePose {
	svd := r3.ComputeSVD3x3(e)
	u, v := svd.U, svd.V
	if u.Det() < 0 {
		u = r3.Mat3x3{M: [3][3]float64{
			{u.M[0][0], u.M[0][1], -u.M[0][2]},
			{u.M[1][0], u.M[1][1], -u.M[1][2]},
			{u.M[2][0], u.M[2][1], -u.M[2][2]},
		}}
	}
	if v.Det() < 0 {
		v = r3.Mat3x3{M: [3][3]float64{
			{v.M[0][0], v.M[0][1], -v.M[0][2]},
			{v.M[1][0], v.M[1][1], -v.M[1][2]},
			{v.M[2][0], v.M[2][1], -v.M[2][2]},
		}}
	}
	w := r3.Mat3x3{M: [3][3]float64{{0, -1, 0}, {1, 0, 0}, {0, 0, 1}}}

	r1 := u.Mul(w).Mul(v.Transpose())
	r2alt := u.Mul(w.Transpose()).Mul(v.Transpose())
	t := r3.Vec{X: u.M[0][2], Y: u.M[1][2], Z: u.M[2][2]}.Unit()

	mk := func(r r3.Mat3x3, t r3.Vec) RelativePose {
		return RelativePose{Rotation: r3.QuatFromMat3x3(r), TranslationDir: t}
	}
	return []RelativePose{
		mk(r1, t), mk(r1, t.Muls(-1)),
		mk(r2alt, t), mk(r2alt, t.Muls(-1)),
	}
}

// disambiguateCheirality picks the candidate pose under which the most
// correspondences triangulate in front of both cameras.
func disambiguateCheirality(candidates []RelativePose, normA, normB []r3.Vec) (RelativePose, error) {
	bestCount := -1
	var best RelativePose
	limit := len(normA)
	if limit > 32 {
		limit = 32 // Enough samples to disambiguate without quadratic cost on large correspondence sets.
	}
	for _, cand := range candidates {
		count := 0
		posA := r3.Point{}
		posB := posA.Add(cand.TranslationDir)
		rotA := r3.IdentityQuat()
		rotB := cand.Rotation
		for i := 0; i < limit; i++ {
			p, ok := Triangulate([]Ray{
				{Origin: posA, Direction: rotA.RotateVec(normA[i]).Unit()},
				{Origin: posB, Direction: rotB.RotateVec(normB[i]).Unit()},
			})
			if !ok {
				continue
			}
			camA := rotA.Conj().RotateVec(p.Sub(posA))
			camB := rotB.Conj().RotateVec(p.Sub(posB))
			if camA.Z > 0 && camB.Z > 0 {
				count++
			}
		}
		if count > bestCount {
			bestCount = count
			best = cand
		}
	}
	if bestCount <= 0 {
		return RelativePose{}, fmt.Errorf("initcam: no essential matrix candidate passed the cheirality check")
	}
	return best, nil
}
