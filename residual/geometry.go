package residual

import (
	"fmt"
	"math"

	"github.com/scottlawsonbc/slam/code/photon/recon/linalg"
	"github.com/scottlawsonbc/slam/code/photon/recon/r3"
	"github.com/scottlawsonbc/slam/code/photon/recon/scene"
	"github.com/scottlawsonbc/slam/code/photon/recon/varlayout"
)

// point reads a WorldPoint's effective position from x, using the
// layout's columns for whichever axes are free and the scene's own
// locked/inferred value for the rest.
func point(layout *varlayout.Layout, wp *scene.WorldPoint, id scene.ID, x []float64) r3.Point {
	var p r3.Point
	for axis := 0; axis < 3; axis++ {
		if col, ok := layout.WorldPointAxisColumn(id, axis); ok {
			p = p.Set(axis, x[col])
		} else {
			v, _ := wp.EffectiveAxis(axis)
			p = p.Set(axis, v)
		}
	}
	return p
}

// addPointGradient appends Jacobian triplets for a scalar residual row
// whose gradient with respect to a WorldPoint's position is grad, scaled
// by sign (+1 or -1, since many geometric residuals are linear
// combinations like B-A).
func addPointGradient(triplets []linalg.Triplet, layout *varlayout.Layout, id scene.ID, row int, grad r3.Vec, sign, weight float64) []linalg.Triplet {
	for axis := 0; axis < 3; axis++ {
		if col, ok := layout.WorldPointAxisColumn(id, axis); ok {
			v := grad.Get(axis) * sign * weight
			if v != 0 {
				triplets = append(triplets, linalg.Triplet{Row: row, Col: col, Value: v})
			}
		}
	}
	return triplets
}

// numericJacobian computes a central-difference Jacobian restricted to
// the given columns, for constraint kinds (cross-product-based angular
// relationships between several points) whose closed-form derivative is
// heavy enough that a numeric derivative is the pragmatic choice; the
// high-multiplicity reprojection residual keeps its full analytic
// Jacobian regardless.
func numericJacobian(cols []int, x []float64, f func([]float64) []float64) []linalg.Triplet {
	const h = 1e-6
	base := append([]float64(nil), x...)
	var triplets []linalg.Triplet
	for _, col := range cols {
		orig := base[col]
		base[col] = orig + h
		plus := f(base)
		base[col] = orig - h
		minus := f(base)
		base[col] = orig
		for row := range plus {
			d := (plus[row] - minus[row]) / (2 * h)
			if d != 0 {
				triplets = append(triplets, linalg.Triplet{Row: row, Col: col, Value: d})
			}
		}
	}
	return triplets
}

func pointColumns(layout *varlayout.Layout, ids ...scene.ID) []int {
	seen := make(map[int]bool)
	var cols []int
	for _, id := range ids {
		for axis := 0; axis < 3; axis++ {
			if col, ok := layout.WorldPointAxisColumn(id, axis); ok && !seen[col] {
				seen[col] = true
				cols = append(cols, col)
			}
		}
	}
	return cols
}

// ---------------------------------------------------------------------
// Distance
// ---------------------------------------------------------------------

// Distance is the residual for a scene.Distance or scene.Line
// length constraint: the Euclidean distance between two WorldPoints
// against a target value.
type Distance struct {
	A, B        scene.ID
	Target      float64
	WeightValue float64

	layout     *varlayout.Layout
	wpA, wpB   *scene.WorldPoint
}

func NewDistance(layout *varlayout.Layout, wpA *scene.WorldPoint, a scene.ID, wpB *scene.WorldPoint, b scene.ID, target, weight float64) *Distance {
	return &Distance{A: a, B: b, Target: target, WeightValue: weightOrDefault(weight), layout: layout, wpA: wpA, wpB: wpB}
}

func (d *Distance) Name() string        { return fmt.Sprintf("distance[%d-%d]", d.A, d.B) }
func (d *Distance) NumResiduals() int   { return 1 }
func (d *Distance) Weight() float64     { return d.WeightValue }

func (d *Distance) length(x []float64) (float64, r3.Vec) {
	pa := point(d.layout, d.wpA, d.A, x)
	pb := point(d.layout, d.wpB, d.B, x)
	v := pb.Sub(pa)
	return v.Length(), v
}

func (d *Distance) Residuals(x []float64) []float64 {
	w := math.Sqrt(d.WeightValue)
	length, _ := d.length(x)
	return []float64{(length - d.Target) * w}
}

func (d *Distance) Jacobian(x []float64) []linalg.Triplet {
	w := math.Sqrt(d.WeightValue)
	length, v := d.length(x)
	if length == 0 {
		return nil
	}
	unit := v.Divs(length)
	var triplets []linalg.Triplet
	triplets = addPointGradient(triplets, d.layout, d.B, 0, unit, 1, w)
	triplets = addPointGradient(triplets, d.layout, d.A, 0, unit, -1, w)
	return triplets
}

// ---------------------------------------------------------------------
// LineDirection
// ---------------------------------------------------------------------

// LineDirection is the residual for a scene.Line with an axis constraint:
// the two components of the line's unit direction orthogonal to the
// named world axis should be zero.
type LineDirection struct {
	A, B        scene.ID
	Axis        int
	WeightValue float64

	layout   *varlayout.Layout
	wpA, wpB *scene.WorldPoint
}

func NewLineDirection(layout *varlayout.Layout, wpA *scene.WorldPoint, a scene.ID, wpB *scene.WorldPoint, b scene.ID, axis int, weight float64) *LineDirection {
	return &LineDirection{A: a, B: b, Axis: axis, WeightValue: weightOrDefault(weight), layout: layout, wpA: wpA, wpB: wpB}
}

func (d *LineDirection) Name() string      { return fmt.Sprintf("line_direction[%d-%d]", d.A, d.B) }
func (d *LineDirection) NumResiduals() int { return 2 }
func (d *LineDirection) Weight() float64   { return d.WeightValue }

func (d *LineDirection) otherAxes() (int, int) {
	switch d.Axis {
	case 0:
		return 1, 2
	case 1:
		return 0, 2
	default:
		return 0, 1
	}
}

func (d *LineDirection) unitVec(x []float64) (r3.Vec, float64) {
	pa := point(d.layout, d.wpA, d.A, x)
	pb := point(d.layout, d.wpB, d.B, x)
	v := pb.Sub(pa)
	n := v.Length()
	if n == 0 {
		return r3.Vec{}, 0
	}
	return v.Divs(n), n
}

func (d *LineDirection) Residuals(x []float64) []float64 {
	w := math.Sqrt(d.WeightValue)
	u, n := d.unitVec(x)
	if n == 0 {
		return []float64{0, 0}
	}
	i, j := d.otherAxes()
	return []float64{u.Get(i) * w, u.Get(j) * w}
}

func (d *LineDirection) Jacobian(x []float64) []linalg.Triplet {
	w := math.Sqrt(d.WeightValue)
	u, n := d.unitVec(x)
	if n == 0 {
		return nil
	}
	i, j := d.otherAxes()
	var triplets []linalg.Triplet
	// d(u_m)/dv_k = (delta(m,k) - u_m*u_k)/n ; dv/dA = -I, dv/dB = +I.
	for row, m := range []int{i, j} {
		var comp [3]float64
		for k := 0; k < 3; k++ {
			delta := 0.0
			if m == k {
				delta = 1
			}
			comp[k] = (delta - u.Get(m)*u.Get(k)) / n
		}
		grad := r3.Vec{X: comp[0], Y: comp[1], Z: comp[2]}
		triplets = addPointGradient(triplets, d.layout, d.B, row, grad, 1, w)
		triplets = addPointGradient(triplets, d.layout, d.A, row, grad, -1, w)
	}
	return triplets
}

// ---------------------------------------------------------------------
// Angle
// ---------------------------------------------------------------------

// Angle is the residual for the angle at vertex B formed by rays to A
// and C, against a target value in radians.
type Angle struct {
	A, B, C     scene.ID
	Target      float64
	WeightValue float64

	layout           *varlayout.Layout
	wpA, wpB, wpC    *scene.WorldPoint
}

func NewAngle(layout *varlayout.Layout, wpA *scene.WorldPoint, a scene.ID, wpB *scene.WorldPoint, b scene.ID, wpC *scene.WorldPoint, c scene.ID, target, weight float64) *Angle {
	return &Angle{A: a, B: b, C: c, Target: target, WeightValue: weightOrDefault(weight), layout: layout, wpA: wpA, wpB: wpB, wpC: wpC}
}

func (a *Angle) Name() string      { return fmt.Sprintf("angle[%d-%d-%d]", a.A, a.B, a.C) }
func (a *Angle) NumResiduals() int { return 1 }
func (a *Angle) Weight() float64   { return a.WeightValue }

func (a *Angle) vectors(x []float64) (u, v r3.Vec) {
	pa := point(a.layout, a.wpA, a.A, x)
	pb := point(a.layout, a.wpB, a.B, x)
	pc := point(a.layout, a.wpC, a.C, x)
	return pa.Sub(pb), pc.Sub(pb)
}

func angleBetween(u, v r3.Vec) (theta, lu, lv, cosTheta float64) {
	lu, lv = u.Length(), v.Length()
	if lu == 0 || lv == 0 {
		return 0, lu, lv, 1
	}
	cosTheta = u.Dot(v) / (lu * lv)
	cosTheta = math.Max(-1, math.Min(1, cosTheta))
	return math.Acos(cosTheta), lu, lv, cosTheta
}

func (a *Angle) Residuals(x []float64) []float64 {
	w := math.Sqrt(a.WeightValue)
	u, v := a.vectors(x)
	theta, _, _, _ := angleBetween(u, v)
	return []float64{(theta - a.Target) * w}
}

func (a *Angle) Jacobian(x []float64) []linalg.Triplet {
	w := math.Sqrt(a.WeightValue)
	u, v := a.vectors(x)
	theta, lu, lv, cosTheta := angleBetween(u, v)
	sinTheta := math.Sin(theta)
	if lu == 0 || lv == 0 || sinTheta < 1e-9 {
		return nil
	}
	un, vn := u.Divs(lu), v.Divs(lv)
	dCosDu := vn.Sub(un.Muls(cosTheta)).Divs(lu)
	dCosDv := un.Sub(vn.Muls(cosTheta)).Divs(lv)
	dThetaDu := dCosDu.Muls(-1 / sinTheta)
	dThetaDv := dCosDv.Muls(-1 / sinTheta)

	var triplets []linalg.Triplet
	triplets = addPointGradient(triplets, a.layout, a.A, 0, dThetaDu, 1, w)
	triplets = addPointGradient(triplets, a.layout, a.C, 0, dThetaDv, 1, w)
	dThetaDb := dThetaDu.Add(dThetaDv).Muls(-1)
	triplets = addPointGradient(triplets, a.layout, a.B, 0, dThetaDb, 1, w)
	return triplets
}

// ---------------------------------------------------------------------
// FixedPoint
// ---------------------------------------------------------------------

// FixedPoint softly pulls a WorldPoint toward a target coordinate on each
// free axis.
type FixedPoint struct {
	Point       scene.ID
	Target      [3]float64
	WeightValue float64

	layout *varlayout.Layout
	wp     *scene.WorldPoint
}

func NewFixedPoint(layout *varlayout.Layout, wp *scene.WorldPoint, id scene.ID, target [3]float64, weight float64) *FixedPoint {
	return &FixedPoint{Point: id, Target: target, WeightValue: weightOrDefault(weight), layout: layout, wp: wp}
}

func (f *FixedPoint) Name() string      { return fmt.Sprintf("fixed_point[%d]", f.Point) }
func (f *FixedPoint) NumResiduals() int { return 3 }
func (f *FixedPoint) Weight() float64   { return f.WeightValue }

func (f *FixedPoint) Residuals(x []float64) []float64 {
	w := math.Sqrt(f.WeightValue)
	p := point(f.layout, f.wp, f.Point, x)
	return []float64{(p.X - f.Target[0]) * w, (p.Y - f.Target[1]) * w, (p.Z - f.Target[2]) * w}
}

func (f *FixedPoint) Jacobian(x []float64) []linalg.Triplet {
	w := math.Sqrt(f.WeightValue)
	var triplets []linalg.Triplet
	for axis := 0; axis < 3; axis++ {
		if col, ok := f.layout.WorldPointAxisColumn(f.Point, axis); ok {
			triplets = append(triplets, linalg.Triplet{Row: axis, Col: col, Value: w})
		}
	}
	return triplets
}

// ---------------------------------------------------------------------
// EqualDistances
// ---------------------------------------------------------------------

// EqualDistances constrains two Lines (A0-B0, A1-B1) to equal length,
// without pinning either to a specific target.
type EqualDistances struct {
	A0, B0, A1, B1 scene.ID
	WeightValue    float64

	layout                 *varlayout.Layout
	wpA0, wpB0, wpA1, wpB1 *scene.WorldPoint
}

func NewEqualDistances(layout *varlayout.Layout, wpA0 *scene.WorldPoint, a0 scene.ID, wpB0 *scene.WorldPoint, b0 scene.ID, wpA1 *scene.WorldPoint, a1 scene.ID, wpB1 *scene.WorldPoint, b1 scene.ID, weight float64) *EqualDistances {
	return &EqualDistances{A0: a0, B0: b0, A1: a1, B1: b1, WeightValue: weightOrDefault(weight), layout: layout, wpA0: wpA0, wpB0: wpB0, wpA1: wpA1, wpB1: wpB1}
}

func (e *EqualDistances) Name() string      { return fmt.Sprintf("equal_distances[%d-%d,%d-%d]", e.A0, e.B0, e.A1, e.B1) }
func (e *EqualDistances) NumResiduals() int { return 1 }
func (e *EqualDistances) Weight() float64   { return e.WeightValue }

func (e *EqualDistances) lengths(x []float64) (float64, r3.Vec, float64, r3.Vec) {
	v0 := point(e.layout, e.wpB0, e.B0, x).Sub(point(e.layout, e.wpA0, e.A0, x))
	v1 := point(e.layout, e.wpB1, e.B1, x).Sub(point(e.layout, e.wpA1, e.A1, x))
	return v0.Length(), v0, v1.Length(), v1
}

func (e *EqualDistances) Residuals(x []float64) []float64 {
	w := math.Sqrt(e.WeightValue)
	l0, _, l1, _ := e.lengths(x)
	return []float64{(l0 - l1) * w}
}

func (e *EqualDistances) Jacobian(x []float64) []linalg.Triplet {
	w := math.Sqrt(e.WeightValue)
	l0, v0, l1, v1 := e.lengths(x)
	var triplets []linalg.Triplet
	if l0 > 0 {
		u0 := v0.Divs(l0)
		triplets = addPointGradient(triplets, e.layout, e.B0, 0, u0, 1, w)
		triplets = addPointGradient(triplets, e.layout, e.A0, 0, u0, -1, w)
	}
	if l1 > 0 {
		u1 := v1.Divs(l1)
		triplets = addPointGradient(triplets, e.layout, e.B1, 0, u1, -1, w)
		triplets = addPointGradient(triplets, e.layout, e.A1, 0, u1, 1, w)
	}
	return triplets
}

// ---------------------------------------------------------------------
// QuaternionUnit
// ---------------------------------------------------------------------

// QuaternionUnit softly holds a Viewpoint's rotation quaternion to unit
// norm. The solver updates the quaternion additively and varlayout
// renormalizes it only when the solution is written back, so during the
// solve this residual is what penalizes drift off the unit sphere
// (Reprojection normalizes the quaternion it reads, so drift does not
// distort the projection itself).
type QuaternionUnit struct {
	Viewpoint   scene.ID
	WeightValue float64

	layout *varlayout.Layout
	vp     *scene.Viewpoint
}

func NewQuaternionUnit(layout *varlayout.Layout, vp *scene.Viewpoint, id scene.ID, weight float64) *QuaternionUnit {
	return &QuaternionUnit{Viewpoint: id, WeightValue: weightOrDefault(weight), layout: layout, vp: vp}
}

func (q *QuaternionUnit) Name() string      { return fmt.Sprintf("quaternion_unit[%d]", q.Viewpoint) }
func (q *QuaternionUnit) NumResiduals() int { return 1 }
func (q *QuaternionUnit) Weight() float64   { return q.WeightValue }

func (q *QuaternionUnit) quat(x []float64) r3.Quat {
	rot := q.vp.Rotation
	if cols, ok := q.layout.ViewpointQuaternionColumns(q.Viewpoint); ok {
		rot = r3.Quat{W: x[cols[0]], X: x[cols[1]], Y: x[cols[2]], Z: x[cols[3]]}
	}
	return rot
}

func (q *QuaternionUnit) Residuals(x []float64) []float64 {
	w := math.Sqrt(q.WeightValue)
	return []float64{(q.quat(x).Norm() - 1) * w}
}

func (q *QuaternionUnit) Jacobian(x []float64) []linalg.Triplet {
	w := math.Sqrt(q.WeightValue)
	cols, ok := q.layout.ViewpointQuaternionColumns(q.Viewpoint)
	if !ok {
		return nil
	}
	qq := q.quat(x)
	n := qq.Norm()
	if n == 0 {
		return nil
	}
	comps := []float64{qq.W, qq.X, qq.Y, qq.Z}
	var triplets []linalg.Triplet
	for i, c := range comps {
		triplets = append(triplets, linalg.Triplet{Row: 0, Col: cols[i], Value: (c / n) * w})
	}
	return triplets
}
