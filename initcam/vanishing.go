// Package initcam recovers initial camera poses and world point
// coordinates before the solver ever runs, the way many structure-from-
// motion pipelines do: vanishing-point rotation from parallel line
// annotations, relative pose from two-view correspondences via the
// essential matrix, absolute pose from 2D-3D correspondences via PnP,
// and axis-aligned coordinate inference from known line lengths. A good
// starting point both shrinks the number of Levenberg-Marquardt
// iterations recon.Optimize needs and avoids the local minima a cold
// start (all zeros, identity rotation) tends to fall into.
package initcam

import (
	"fmt"
	"math"

	"github.com/scottlawsonbc/slam/code/photon/recon/r2"
	"github.com/scottlawsonbc/slam/code/photon/recon/r3"
	"github.com/scottlawsonbc/slam/code/photon/recon/scene"
)

// vanishingPointDirection intersects a group of VanishingLines sharing an
// axis and returns the unit 3D ray from the camera center through their
// common vanishing point, in camera space. Lines are intersected
// pairwise in image space via their homogeneous cross product, and the
// resulting vanishing points are averaged -- the least-squares estimate
// for noisy annotations is a full eigen-decomposition of the line
// coefficients, but pairwise intersection averaging is what a
// closed-form two/three-axis solver needs and is simple to make
// deterministic (lines are walked in the fixed order the Viewpoint
// stores them).
func vanishingPointDirection(lines []scene.VanishingLine, intr scene.Intrinsics) (r3.Vec, error) {
	if len(lines) < 2 {
		return r3.Vec{}, fmt.Errorf("initcam: need at least 2 lines to find a vanishing point, got %d", len(lines))
	}
	type homog struct{ a, b, c float64 }
	toLine := func(l scene.VanishingLine) homog {
		// Cross product of homogeneous endpoints gives the line through them.
		x1, y1 := l.P1.X, l.P1.Y
		x2, y2 := l.P2.X, l.P2.Y
		return homog{a: y1 - y2, b: x2 - x1, c: x1*y2 - x2*y1}
	}
	var sumX, sumY float64
	var count int
	for i := 0; i < len(lines); i++ {
		for j := i + 1; j < len(lines); j++ {
			li, lj := toLine(lines[i]), toLine(lines[j])
			// Intersection of two lines in homogeneous form is their cross product.
			px := li.b*lj.c - li.c*lj.b
			py := li.c*lj.a - li.a*lj.c
			pw := li.a*lj.b - li.b*lj.a
			if math.Abs(pw) < 1e-9 {
				continue // Parallel in image space: no finite intersection.
			}
			sumX += px / pw
			sumY += py / pw
			count++
		}
	}
	if count == 0 {
		return r3.Vec{}, fmt.Errorf("initcam: vanishing lines do not converge to a finite point")
	}
	vx := sumX / float64(count)
	vy := sumY / float64(count)

	// Back-project the vanishing point pixel through the intrinsics to a
	// camera-space ray direction (undistorted, since these are user-drawn
	// annotations on straight edges rather than raw detector output).
	xn := (vx - intr.Cx) / intr.Fx
	yn := (vy - intr.Cy) / intr.Fy
	return r3.Vec{X: xn, Y: yn, Z: 1}.Unit(), nil
}

// RotationFromVanishingLines recovers a Viewpoint's camera-to-world
// rotation from its VanishingLine annotations, grouped by axis. It
// supports the two-axis case (any two of X/Y/Z present, the third
// recovered by orthogonality) and the three-axis case (all three
// present; X is kept as measured, Y is averaged with the direction that
// Z and X imply, and Z is re-derived from X and that averaged Y).
//
// The returned quaternion maps camera-space directions to world-space
// directions (Viewpoint.Rotation's convention): World = Rotation *
// Camera.
func RotationFromVanishingLines(lines []scene.VanishingLine, intr scene.Intrinsics) (r3.Quat, error) {
	groups := map[scene.WorldAxis][]scene.VanishingLine{}
	for _, l := range lines {
		groups[l.Axis] = append(groups[l.Axis], l)
	}

	dirs := map[scene.WorldAxis]r3.Vec{}
	for axis, group := range groups {
		d, err := vanishingPointDirection(group, intr)
		if err != nil {
			return r3.Quat{}, fmt.Errorf("initcam: axis %s: %w", axis, err)
		}
		dirs[axis] = d
	}

	switch len(dirs) {
	case 2:
		return rotationFromTwoAxes(dirs)
	case 3:
		return rotationFromThreeAxes(dirs)
	default:
		return r3.Quat{}, fmt.Errorf("initcam: need vanishing lines for at least 2 axes, got %d", len(dirs))
	}
}

// rotationFromTwoAxes builds a proper (det = +1) rotation from any two of
// the three camera-space axis directions, completing the third via the
// cross product so the basis is exactly orthonormal even if the two
// measured directions are not quite perpendicular (the first present axis
// in X, Y, Z order is kept as measured and the second is re-derived from
// it and the completed third, so the second absorbs the error).
func rotationFromTwoAxes(dirs map[scene.WorldAxis]r3.Vec) (r3.Quat, error) {
	// Deterministic order: x, y, z.
	order := []scene.WorldAxis{scene.AxisX, scene.AxisY, scene.AxisZ}
	var present []scene.WorldAxis
	for _, a := range order {
		if _, ok := dirs[a]; ok {
			present = append(present, a)
		}
	}

	camX := dirs[scene.AxisX]
	camY := dirs[scene.AxisY]
	camZ := dirs[scene.AxisZ]

	switch {
	case present[0] == scene.AxisX && present[1] == scene.AxisY:
		camZ = camX.Cross(camY).Unit()
		camY = camZ.Cross(camX).Unit()
	case present[0] == scene.AxisX && present[1] == scene.AxisZ:
		camY = camZ.Cross(camX).Unit()
		camZ = camX.Cross(camY).Unit()
	default: // y, z
		camX = camY.Cross(camZ).Unit()
		camZ = camX.Cross(camY).Unit()
	}

	return rotationFromCameraBasis(camX, camY, camZ)
}

// rotationFromThreeAxes builds a rotation from all three measured
// directions, nudging Y to sit exactly orthogonal to X and centered
// between its measured position and the one implied by X and Z, then
// re-deriving Z for exact orthonormality.
func rotationFromThreeAxes(dirs map[scene.WorldAxis]r3.Vec) (r3.Quat, error) {
	camX := dirs[scene.AxisX]
	camY := dirs[scene.AxisY]
	camZ := dirs[scene.AxisZ]

	impliedY := camZ.Cross(camX).Unit()
	yMid := camY.Add(impliedY).Unit()
	camZ = camX.Cross(yMid).Unit()
	camY = camZ.Cross(camX).Unit()

	return rotationFromCameraBasis(camX, camY, camZ)
}

// rotationFromCameraBasis builds the camera-to-world rotation quaternion
// from the three world axis directions expressed in camera space. The
// rotation matrix whose columns are those directions maps world space to
// camera space (column i is where world axis i lands in the camera
// frame), so the quaternion returned is the conjugate of that matrix's.
func rotationFromCameraBasis(camX, camY, camZ r3.Vec) (r3.Quat, error) {
	m := r3.MatFromCols(camX, camY, camZ)
	if m.Det() < 0 {
		// A left-handed basis from noisy or mis-labeled annotations; flip Z
		// to recover a proper rotation rather than silently returning an
		// improper one that would corrupt every downstream quaternion op.
		camZ = camZ.Muls(-1)
		m = r3.MatFromCols(camX, camY, camZ)
	}
	q := r3.QuatFromMat3x3(m)
	if q.IsNaN() {
		return r3.Quat{}, fmt.Errorf("initcam: degenerate camera basis from vanishing lines")
	}
	return q.Conj(), nil
}

// undistortPixel inverts the OpenCV distortion model for a single pixel,
// the same 8-iteration fixed-point scheme phys/camera_calibrated.go uses
// (undistortNormalized), operating on normalized coordinates.
func undistortPixel(pixel r2.Point, intr scene.Intrinsics) (xn, yn float64) {
	xd := (pixel.X - intr.Cx) / intr.Fx
	yd := (pixel.Y - intr.Cy) / intr.Fy
	x, y := xd, yd
	for i := 0; i < 8; i++ {
		r2v := x*x + y*y
		r4 := r2v * r2v
		r6 := r4 * r2v
		num := 1 + intr.K1*r2v + intr.K2*r4 + intr.K3*r6
		den := 1 + intr.K4*r2v + intr.K5*r4 + intr.K6*r6
		if den == 0 {
			den = 1
		}
		radial := num / den
		dx := 2*intr.P1*x*y + intr.P2*(r2v+2*x*x)
		dy := intr.P1*(r2v+2*y*y) + 2*intr.P2*x*y
		if radial == 0 {
			radial = 1
		}
		x = (xd - dx) / radial
		y = (yd - dy) / radial
	}
	return x, y
}
