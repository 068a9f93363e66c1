package initcam

import (
	"fmt"

	"github.com/scottlawsonbc/slam/code/photon/recon/r3"
)

// Ray is a camera center and a unit direction in world space, the input
// to Triangulate.
type Ray struct {
	Origin    r3.Point
	Direction r3.Vec
}

// Triangulate estimates the 3D point nearest (in the least-squares
// sense) to every ray in rays, by the midpoint method: for two rays it
// is the midpoint of their mutual perpendicular segment; for more than
// two it generalizes to the point minimizing the sum of squared
// perpendicular distances to all rays, found by solving a 3x3 linear
// system built from each ray's projection matrix (I - d*d^T).
//
// It returns ok=false if the rays are (near-)parallel, which happens
// when the two viewpoints used for a seed pair are too close together
// or looking in nearly the same direction.
func Triangulate(rays []Ray) (r3.Point, bool) {
	if len(rays) < 2 {
		return r3.Point{}, false
	}

	var a r3.Mat3x3
	var b r3.Vec
	for _, ray := range rays {
		d := ray.Direction.Unit()
		// Projection matrix onto the plane orthogonal to d: I - d*d^T.
		proj := r3.Mat3x3{M: [3][3]float64{
			{1 - d.X*d.X, -d.X * d.Y, -d.X * d.Z},
			{-d.Y * d.X, 1 - d.Y*d.Y, -d.Y * d.Z},
			{-d.Z * d.X, -d.Z * d.Y, 1 - d.Z*d.Z},
		}}
		for i := 0; i < 3; i++ {
			for j := 0; j < 3; j++ {
				a.M[i][j] += proj.M[i][j]
			}
		}
		o := r3.Vec{X: ray.Origin.X, Y: ray.Origin.Y, Z: ray.Origin.Z}
		pb := proj.MulVec(o)
		b = b.Add(pb)
	}

	x, ok := solve3x3(a, b)
	if !ok {
		return r3.Point{}, false
	}
	return r3.Point{X: x.X, Y: x.Y, Z: x.Z}, true
}

// solve3x3 solves a*x = b for a 3x3 system via Cramer's rule, returning
// ok=false when a is (near-)singular.
func solve3x3(a r3.Mat3x3, b r3.Vec) (r3.Vec, bool) {
	det := a.Det()
	if det == 0 || absf(det) < 1e-12 {
		return r3.Vec{}, false
	}
	col := func(m r3.Mat3x3, c int, v r3.Vec) r3.Mat3x3 {
		out := m
		for i := 0; i < 3; i++ {
			out.M[i][c] = v.Get(i)
		}
		return out
	}
	dx := col(a, 0, b).Det()
	dy := col(a, 1, b).Det()
	dz := col(a, 2, b).Det()
	return r3.Vec{X: dx / det, Y: dy / det, Z: dz / det}, true
}

func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// errNotEnoughRays is returned by callers composing Triangulate results
// into a WorldPoint when fewer than two enabled, non-excluded
// observations are available.
var errNotEnoughRays = fmt.Errorf("initcam: triangulation needs at least 2 rays")
