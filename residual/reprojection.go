package residual

import (
	"fmt"
	"math"

	"github.com/scottlawsonbc/slam/code/photon/recon/linalg"
	"github.com/scottlawsonbc/slam/code/photon/recon/r2"
	"github.com/scottlawsonbc/slam/code/photon/recon/r3"
	"github.com/scottlawsonbc/slam/code/photon/recon/scene"
	"github.com/scottlawsonbc/slam/code/photon/recon/varlayout"
)

// behindCameraPenalty is the fixed residual magnitude (in pixels)
// assigned to an observation whose world point has moved behind the
// camera (camera-space Z below behindCameraZ). It is large enough to
// dominate any well-conditioned reprojection residual and push the
// solver's damped step away from the degenerate configuration, but
// finite, so the normal equations stay solvable.
const (
	behindCameraPenalty = 1000.0
	behindCameraZ        = 0.099
)

// Reprojection is the residual between a WorldPoint's predicted pixel
// location in a Viewpoint (via the pinhole-plus-OpenCV-distortion
// forward model) and its observed pixel location. It contributes two
// rows (du, dv).
type Reprojection struct {
	ViewpointID  scene.ID
	WorldPointID scene.ID
	Observed     r2.Point
	WeightValue  float64

	layout *varlayout.Layout
	vp     *scene.Viewpoint
	wp     *scene.WorldPoint
}

// NewReprojection builds a Reprojection provider for one observation.
func NewReprojection(layout *varlayout.Layout, vp *scene.Viewpoint, viewpointID scene.ID, wp *scene.WorldPoint, worldPointID scene.ID, observedU, observedV, weight float64) *Reprojection {
	return &Reprojection{
		ViewpointID:  viewpointID,
		WorldPointID: worldPointID,
		Observed:     r2.Point{X: observedU, Y: observedV},
		WeightValue:  weightOrDefault(weight),
		layout:       layout,
		vp:           vp,
		wp:           wp,
	}
}

func (r *Reprojection) Name() string {
	return fmt.Sprintf("reprojection[viewpoint %d, point %d]", r.ViewpointID, r.WorldPointID)
}

func (r *Reprojection) NumResiduals() int { return 2 }
func (r *Reprojection) Weight() float64   { return r.WeightValue }

// worldPosition returns the world point's effective (x,y,z), reading
// locked/inferred axes directly from the scene since those never appear
// in x, and free axes from x at the layout's assigned columns.
func (r *Reprojection) worldPosition(x []float64) r3.Point {
	var p r3.Point
	for axis := 0; axis < 3; axis++ {
		if col, ok := r.layout.WorldPointAxisColumn(r.WorldPointID, axis); ok {
			p = p.Set(axis, x[col])
		} else {
			v, _ := r.wp.EffectiveAxis(axis)
			p = p.Set(axis, v)
		}
	}
	return p
}

func (r *Reprojection) viewpointPose(x []float64) (r3.Point, r3.Quat) {
	pos := r.vp.Position
	if cols, ok := r.layout.ViewpointPositionColumns(r.ViewpointID); ok {
		pos = r3.Point{X: x[cols[0]], Y: x[cols[1]], Z: x[cols[2]]}
	}
	rot := r.vp.Rotation
	if cols, ok := r.layout.ViewpointQuaternionColumns(r.ViewpointID); ok {
		rot = r3.Quat{W: x[cols[0]], X: x[cols[1]], Y: x[cols[2]], Z: x[cols[3]]}.Normalize()
	}
	return pos, rot
}

func (r *Reprojection) intrinsics(x []float64) (fx, fy, cx, cy float64) {
	fx, fy, cx, cy = r.vp.Intrinsics.Fx, r.vp.Intrinsics.Fy, r.vp.Intrinsics.Cx, r.vp.Intrinsics.Cy
	if cols, ok := r.layout.ViewpointFocalColumns(r.ViewpointID); ok {
		fx, fy = x[cols[0]], x[cols[1]]
	}
	if cols, ok := r.layout.ViewpointPrincipalPointColumns(r.ViewpointID); ok {
		cx, cy = x[cols[0]], x[cols[1]]
	}
	return
}

// project applies the forward pinhole-plus-distortion model: camera-space
// point, normalized coordinates, distorted normalized coordinates, pixel.
func (r *Reprojection) project(x []float64) (pixel r2.Point, pc r3.Vec, xn, yn, xd, yd, fx, fy float64, inFront bool) {
	world := r.worldPosition(x)
	pos, rot := r.viewpointPose(x)
	d := world.Sub(pos)
	pc = rot.Conj().RotateVec(d)

	inFront = pc.Z >= behindCameraZ
	if !inFront {
		return r2.Point{}, pc, 0, 0, 0, 0, 0, 0, false
	}
	xn = pc.X / pc.Z
	yn = pc.Y / pc.Z

	ci := r.vp.Intrinsics
	r2v := xn*xn + yn*yn
	r4 := r2v * r2v
	r6 := r4 * r2v
	num := 1 + ci.K1*r2v + ci.K2*r4 + ci.K3*r6
	den := 1 + ci.K4*r2v + ci.K5*r4 + ci.K6*r6
	if den == 0 {
		den = 1
	}
	radial := num / den

	xd = xn*radial + 2*ci.P1*xn*yn + ci.P2*(r2v+2*xn*xn)
	yd = yn*radial + ci.P1*(r2v+2*yn*yn) + 2*ci.P2*xn*yn

	var cx, cy float64
	fx, fy, cx, cy = r.intrinsics(x)
	pixel = r2.Point{X: fx*xd + ci.Skew*yd + cx, Y: fy*yd + cy}
	return pixel, pc, xn, yn, xd, yd, fx, fy, true
}

// PixelResidual returns the unweighted, un-penalized pixel-space
// reprojection error (predicted minus observed) and whether the world
// point currently projects in front of the camera. Candidate scoring and
// outlier detection both need the true pixel error, not the weighted
// residual vector LM consumes, and not the fixed penalty substituted for
// a behind-camera point.
func (r *Reprojection) PixelResidual(x []float64) (delta r2.Vec, inFront bool) {
	pixel, _, _, _, _, _, _, _, inFront := r.project(x)
	if !inFront {
		return r2.Vec{}, false
	}
	return pixel.Sub(r.Observed), true
}

func (r *Reprojection) Residuals(x []float64) []float64 {
	w := math.Sqrt(r.WeightValue)
	pixel, _, _, _, _, _, _, _, inFront := r.project(x)
	if !inFront {
		return []float64{behindCameraPenalty * w, behindCameraPenalty * w}
	}
	return []float64{(pixel.X - r.Observed.X) * w, (pixel.Y - r.Observed.Y) * w}
}

// Jacobian computes the analytic derivative of (du, dv) with respect to
// every free parameter this observation depends on: the world point's
// free axes, the viewpoint's free position/quaternion, and the
// viewpoint's free focal length/principal point. A behind-camera
// observation contributes no Jacobian entries -- its fixed penalty
// residual is already pushing the solver away, and its true derivative
// is undefined at the z=0 singularity.
func (r *Reprojection) Jacobian(x []float64) []linalg.Triplet {
	world := r.worldPosition(x)
	pos, rot := r.viewpointPose(x)
	d := world.Sub(pos)
	qc := rot.Conj()
	pc := qc.RotateVec(d)
	if pc.Z < behindCameraZ {
		return nil
	}

	w := math.Sqrt(r.WeightValue)
	ci := r.vp.Intrinsics
	fx, fy, _, _ := r.intrinsics(x)

	xn := pc.X / pc.Z
	yn := pc.Y / pc.Z
	r2v := xn*xn + yn*yn
	r4 := r2v * r2v

	num := 1 + ci.K1*r2v + ci.K2*r4 + ci.K3*r4*r2v
	den := 1 + ci.K4*r2v + ci.K5*r4 + ci.K6*r4*r2v
	if den == 0 {
		den = 1
	}
	radial := num / den

	dNumDxn := 2 * xn * (ci.K1 + 2*ci.K2*r2v + 3*ci.K3*r4)
	dNumDyn := 2 * yn * (ci.K1 + 2*ci.K2*r2v + 3*ci.K3*r4)
	dDenDxn := 2 * xn * (ci.K4 + 2*ci.K5*r2v + 3*ci.K6*r4)
	dDenDyn := 2 * yn * (ci.K4 + 2*ci.K5*r2v + 3*ci.K6*r4)
	dRadialDxn := (dNumDxn*den - num*dDenDxn) / (den * den)
	dRadialDyn := (dNumDyn*den - num*dDenDyn) / (den * den)

	dxdDxn := radial + xn*dRadialDxn + 2*ci.P1*yn + ci.P2*6*xn
	dxdDyn := xn*dRadialDyn + 2*ci.P1*xn + ci.P2*2*yn
	dydDxn := yn*dRadialDxn + ci.P1*2*xn + 2*ci.P2*yn
	dydDyn := radial + yn*dRadialDyn + ci.P1*6*yn + 2*ci.P2*xn

	// d(u,v)/d(xn,yn); u = fx*xd + skew*yd + cx picks up a skew*dyd term.
	duDxn, duDyn := fx*dxdDxn+ci.Skew*dydDxn, fx*dxdDyn+ci.Skew*dydDyn
	dvDxn, dvDyn := fy*dydDxn, fy*dydDyn

	// d(xn,yn)/d(pc)
	invZ := 1 / pc.Z
	invZ2 := invZ * invZ
	dxnDpc := r3.Vec{X: invZ, Y: 0, Z: -pc.X * invZ2}
	dynDpc := r3.Vec{X: 0, Y: invZ, Z: -pc.Y * invZ2}

	// d(u,v)/d(pc) by chain rule through (xn, yn).
	duDpc := dxnDpc.Muls(duDxn).Add(dynDpc.Muls(duDyn))
	dvDpc := dxnDpc.Muls(dvDxn).Add(dynDpc.Muls(dvDyn))

	var triplets []linalg.Triplet
	add := func(row int, col int, value float64) {
		if value == 0 {
			return
		}
		triplets = append(triplets, linalg.Triplet{Row: row, Col: col, Value: value * w})
	}

	// d(pc)/d(world) = Rinv = M(qc); d(pc)/d(Position) = -M(qc).
	mqc := qc.Mat3x3()
	for axis := 0; axis < 3; axis++ {
		if col, ok := r.layout.WorldPointAxisColumn(r.WorldPointID, axis); ok {
			dpcDaxis := r3.Vec{X: mqc.M[0][axis], Y: mqc.M[1][axis], Z: mqc.M[2][axis]}
			add(0, col, duDpc.Dot(dpcDaxis))
			add(1, col, dvDpc.Dot(dpcDaxis))
		}
	}
	if cols, ok := r.layout.ViewpointPositionColumns(r.ViewpointID); ok {
		for axis := 0; axis < 3; axis++ {
			dpcDaxis := r3.Vec{X: -mqc.M[0][axis], Y: -mqc.M[1][axis], Z: -mqc.M[2][axis]}
			add(0, cols[axis], duDpc.Dot(dpcDaxis))
			add(1, cols[axis], dvDpc.Dot(dpcDaxis))
		}
	}

	if cols, ok := r.layout.ViewpointQuaternionColumns(r.ViewpointID); ok {
		dMdw, dMdx, dMdy, dMdz := rotationPartials(qc)
		// qc = Conj(q): qc.w = q.w, qc.x = -q.x, qc.y = -q.y, qc.z = -q.z.
		dpcDw := dMdw.MulVec(d)
		dpcDx := dMdx.MulVec(d).Muls(-1)
		dpcDy := dMdy.MulVec(d).Muls(-1)
		dpcDz := dMdz.MulVec(d).Muls(-1)
		add(0, cols[0], duDpc.Dot(dpcDw))
		add(1, cols[0], dvDpc.Dot(dpcDw))
		add(0, cols[1], duDpc.Dot(dpcDx))
		add(1, cols[1], dvDpc.Dot(dpcDx))
		add(0, cols[2], duDpc.Dot(dpcDy))
		add(1, cols[2], dvDpc.Dot(dpcDy))
		add(0, cols[3], duDpc.Dot(dpcDz))
		add(1, cols[3], dvDpc.Dot(dpcDz))
	}

	xd := xn*radial + 2*ci.P1*xn*yn + ci.P2*(r2v+2*xn*xn)
	yd := yn*radial + ci.P1*(r2v+2*yn*yn) + 2*ci.P2*xn*yn
	if cols, ok := r.layout.ViewpointFocalColumns(r.ViewpointID); ok {
		add(0, cols[0], xd)
		add(1, cols[1], yd)
	}
	if cols, ok := r.layout.ViewpointPrincipalPointColumns(r.ViewpointID); ok {
		add(0, cols[0], 1)
		add(1, cols[1], 1)
	}
	return triplets
}

// rotationPartials returns the partial derivatives of the rotation
// matrix r3.Quat.Mat3x3 with respect to each quaternion component,
// evaluated at q. Derived by direct differentiation of the closed-form
// quaternion-to-matrix formula.
func rotationPartials(q r3.Quat) (dw, dx, dy, dz r3.Mat3x3) {
	w, x, y, z := q.W, q.X, q.Y, q.Z
	dw = r3.Mat3x3{M: [3][3]float64{
		{0, -2 * z, 2 * y},
		{2 * z, 0, -2 * x},
		{-2 * y, 2 * x, 0},
	}}
	dx = r3.Mat3x3{M: [3][3]float64{
		{0, 2 * y, 2 * z},
		{2 * y, -4 * x, -2 * w},
		{2 * z, 2 * w, -4 * x},
	}}
	dy = r3.Mat3x3{M: [3][3]float64{
		{-4 * y, 2 * x, 2 * w},
		{2 * x, 0, 2 * z},
		{-2 * w, 2 * z, -4 * y},
	}}
	dz = r3.Mat3x3{M: [3][3]float64{
		{-4 * z, -2 * w, 2 * x},
		{2 * w, -4 * z, 2 * y},
		{2 * x, 2 * y, 0},
	}}
	return
}
