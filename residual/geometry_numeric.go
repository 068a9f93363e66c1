package residual

import (
	"fmt"
	"math"

	"github.com/scottlawsonbc/slam/code/photon/recon/linalg"
	"github.com/scottlawsonbc/slam/code/photon/recon/r3"
	"github.com/scottlawsonbc/slam/code/photon/recon/scene"
	"github.com/scottlawsonbc/slam/code/photon/recon/varlayout"
)

// The providers in this file share a central-difference Jacobian
// (numericJacobian, in geometry.go) rather than a hand-differentiated
// one: each residual is a cross product or a difference of angles
// between several points, and the closed form is long enough relative to
// how rarely these constraint kinds appear in a typical project that a
// numeric derivative is the pragmatic choice. The reprojection residual,
// evaluated far more often per solve, keeps its fully analytic Jacobian
// in reprojection.go.

// ---------------------------------------------------------------------
// ParallelLines / PerpendicularLines
// ---------------------------------------------------------------------

type linePair struct {
	A0, B0, A1, B1         scene.ID
	wpA0, wpB0, wpA1, wpB1 *scene.WorldPoint
	layout                 *varlayout.Layout
	weight                 float64
}

func newLinePair(layout *varlayout.Layout, wpA0 *scene.WorldPoint, a0 scene.ID, wpB0 *scene.WorldPoint, b0 scene.ID, wpA1 *scene.WorldPoint, a1 scene.ID, wpB1 *scene.WorldPoint, b1 scene.ID, weight float64) linePair {
	return linePair{A0: a0, B0: b0, A1: a1, B1: b1, wpA0: wpA0, wpB0: wpB0, wpA1: wpA1, wpB1: wpB1, layout: layout, weight: weightOrDefault(weight)}
}

func (p linePair) directions(x []float64) (r3.Vec, r3.Vec) {
	v0 := point(p.layout, p.wpB0, p.B0, x).Sub(point(p.layout, p.wpA0, p.A0, x))
	v1 := point(p.layout, p.wpB1, p.B1, x).Sub(point(p.layout, p.wpA1, p.A1, x))
	return v0, v1
}

func (p linePair) columns() []int {
	return pointColumns(p.layout, p.A0, p.B0, p.A1, p.B1)
}

// ParallelLines constrains two Lines' directions to be parallel: the
// cross product of their unit directions should vanish.
type ParallelLines struct {
	linePair
}

func NewParallelLines(layout *varlayout.Layout, wpA0 *scene.WorldPoint, a0 scene.ID, wpB0 *scene.WorldPoint, b0 scene.ID, wpA1 *scene.WorldPoint, a1 scene.ID, wpB1 *scene.WorldPoint, b1 scene.ID, weight float64) *ParallelLines {
	return &ParallelLines{newLinePair(layout, wpA0, a0, wpB0, b0, wpA1, a1, wpB1, b1, weight)}
}

func (p *ParallelLines) Name() string      { return fmt.Sprintf("parallel_lines[%d-%d,%d-%d]", p.A0, p.B0, p.A1, p.B1) }
func (p *ParallelLines) NumResiduals() int { return 3 }
func (p *ParallelLines) Weight() float64   { return p.weight }

func (p *ParallelLines) rawResiduals(x []float64) []float64 {
	v0, v1 := p.directions(x)
	n0, n1 := v0.Length(), v1.Length()
	if n0 == 0 || n1 == 0 {
		return []float64{0, 0, 0}
	}
	c := v0.Divs(n0).Cross(v1.Divs(n1))
	return []float64{c.X, c.Y, c.Z}
}

func (p *ParallelLines) Residuals(x []float64) []float64 {
	w := math.Sqrt(p.weight)
	r := p.rawResiduals(x)
	return []float64{r[0] * w, r[1] * w, r[2] * w}
}

func (p *ParallelLines) Jacobian(x []float64) []linalg.Triplet {
	w := math.Sqrt(p.weight)
	triplets := numericJacobian(p.columns(), x, p.rawResiduals)
	for i := range triplets {
		triplets[i].Value *= w
	}
	return triplets
}

// PerpendicularLines constrains two Lines' directions to be
// perpendicular: the dot product of their unit directions should vanish.
type PerpendicularLines struct {
	linePair
}

func NewPerpendicularLines(layout *varlayout.Layout, wpA0 *scene.WorldPoint, a0 scene.ID, wpB0 *scene.WorldPoint, b0 scene.ID, wpA1 *scene.WorldPoint, a1 scene.ID, wpB1 *scene.WorldPoint, b1 scene.ID, weight float64) *PerpendicularLines {
	return &PerpendicularLines{newLinePair(layout, wpA0, a0, wpB0, b0, wpA1, a1, wpB1, b1, weight)}
}

func (p *PerpendicularLines) Name() string {
	return fmt.Sprintf("perpendicular_lines[%d-%d,%d-%d]", p.A0, p.B0, p.A1, p.B1)
}
func (p *PerpendicularLines) NumResiduals() int { return 1 }
func (p *PerpendicularLines) Weight() float64   { return p.weight }

func (p *PerpendicularLines) rawResiduals(x []float64) []float64 {
	v0, v1 := p.directions(x)
	n0, n1 := v0.Length(), v1.Length()
	if n0 == 0 || n1 == 0 {
		return []float64{0}
	}
	return []float64{v0.Divs(n0).Dot(v1.Divs(n1))}
}

func (p *PerpendicularLines) Residuals(x []float64) []float64 {
	return []float64{p.rawResiduals(x)[0] * math.Sqrt(p.weight)}
}

func (p *PerpendicularLines) Jacobian(x []float64) []linalg.Triplet {
	w := math.Sqrt(p.weight)
	triplets := numericJacobian(p.columns(), x, p.rawResiduals)
	for i := range triplets {
		triplets[i].Value *= w
	}
	return triplets
}

// ---------------------------------------------------------------------
// CollinearPoints
// ---------------------------------------------------------------------

// CollinearPoints constrains three or more WorldPoints to lie on a
// common line through the first two points: for every later point P, the
// cross product of (P-points[0]) and (points[1]-points[0]) should
// vanish.
type CollinearPoints struct {
	ids         []scene.ID
	wps         []*scene.WorldPoint
	WeightValue float64
	layout      *varlayout.Layout
}

func NewCollinearPoints(layout *varlayout.Layout, wps []*scene.WorldPoint, ids []scene.ID, weight float64) *CollinearPoints {
	return &CollinearPoints{ids: ids, wps: wps, WeightValue: weightOrDefault(weight), layout: layout}
}

func (c *CollinearPoints) Name() string      { return fmt.Sprintf("collinear_points%v", c.ids) }
func (c *CollinearPoints) NumResiduals() int { return 3 * (len(c.ids) - 2) }
func (c *CollinearPoints) Weight() float64   { return c.WeightValue }

func (c *CollinearPoints) rawResiduals(x []float64) []float64 {
	p0 := point(c.layout, c.wps[0], c.ids[0], x)
	p1 := point(c.layout, c.wps[1], c.ids[1], x)
	base := p1.Sub(p0)
	n := base.Length()
	out := make([]float64, 0, c.NumResiduals())
	for i := 2; i < len(c.ids); i++ {
		pi := point(c.layout, c.wps[i], c.ids[i], x)
		v := pi.Sub(p0)
		var cr r3.Vec
		if n > 0 {
			cr = v.Cross(base).Divs(n)
		}
		out = append(out, cr.X, cr.Y, cr.Z)
	}
	return out
}

func (c *CollinearPoints) Residuals(x []float64) []float64 {
	w := math.Sqrt(c.WeightValue)
	raw := c.rawResiduals(x)
	out := make([]float64, len(raw))
	for i, v := range raw {
		out[i] = v * w
	}
	return out
}

func (c *CollinearPoints) Jacobian(x []float64) []linalg.Triplet {
	w := math.Sqrt(c.WeightValue)
	triplets := numericJacobian(pointColumns(c.layout, c.ids...), x, c.rawResiduals)
	for i := range triplets {
		triplets[i].Value *= w
	}
	return triplets
}

// ---------------------------------------------------------------------
// EqualAngles
// ---------------------------------------------------------------------

// EqualAngles constrains the angle at vertex B (rays to A, C) to equal
// the angle at vertex E (rays to D, F).
type EqualAngles struct {
	A, B, C, D, E, F             scene.ID
	wpA, wpB, wpC, wpD, wpE, wpF *scene.WorldPoint
	WeightValue                  float64
	layout                       *varlayout.Layout
}

func NewEqualAngles(layout *varlayout.Layout,
	wpA *scene.WorldPoint, a scene.ID, wpB *scene.WorldPoint, b scene.ID, wpC *scene.WorldPoint, c scene.ID,
	wpD *scene.WorldPoint, d scene.ID, wpE *scene.WorldPoint, e scene.ID, wpF *scene.WorldPoint, f scene.ID,
	weight float64) *EqualAngles {
	return &EqualAngles{A: a, B: b, C: c, D: d, E: e, F: f, wpA: wpA, wpB: wpB, wpC: wpC, wpD: wpD, wpE: wpE, wpF: wpF, WeightValue: weightOrDefault(weight), layout: layout}
}

func (e *EqualAngles) Name() string      { return fmt.Sprintf("equal_angles[%d-%d-%d,%d-%d-%d]", e.A, e.B, e.C, e.D, e.E, e.F) }
func (e *EqualAngles) NumResiduals() int { return 1 }
func (e *EqualAngles) Weight() float64   { return e.WeightValue }

func (e *EqualAngles) rawResiduals(x []float64) []float64 {
	u1 := point(e.layout, e.wpA, e.A, x).Sub(point(e.layout, e.wpB, e.B, x))
	v1 := point(e.layout, e.wpC, e.C, x).Sub(point(e.layout, e.wpB, e.B, x))
	u2 := point(e.layout, e.wpD, e.D, x).Sub(point(e.layout, e.wpE, e.E, x))
	v2 := point(e.layout, e.wpF, e.F, x).Sub(point(e.layout, e.wpE, e.E, x))
	theta1, _, _, _ := angleBetween(u1, v1)
	theta2, _, _, _ := angleBetween(u2, v2)
	return []float64{theta1 - theta2}
}

func (e *EqualAngles) Residuals(x []float64) []float64 {
	return []float64{e.rawResiduals(x)[0] * math.Sqrt(e.WeightValue)}
}

func (e *EqualAngles) Jacobian(x []float64) []linalg.Triplet {
	w := math.Sqrt(e.WeightValue)
	cols := pointColumns(e.layout, e.A, e.B, e.C, e.D, e.E, e.F)
	triplets := numericJacobian(cols, x, e.rawResiduals)
	for i := range triplets {
		triplets[i].Value *= w
	}
	return triplets
}

// ---------------------------------------------------------------------
// CoplanarPoints
// ---------------------------------------------------------------------

// CoplanarPoints constrains four or more WorldPoints to lie on a common
// plane, fitted to the current points in the least-squares sense via
// linalg's thin SVD: the residual for each point is its signed distance
// to that best-fit plane.
type CoplanarPoints struct {
	ids         []scene.ID
	wps         []*scene.WorldPoint
	WeightValue float64
	layout      *varlayout.Layout
}

func NewCoplanarPoints(layout *varlayout.Layout, wps []*scene.WorldPoint, ids []scene.ID, weight float64) *CoplanarPoints {
	return &CoplanarPoints{ids: ids, wps: wps, WeightValue: weightOrDefault(weight), layout: layout}
}

func (c *CoplanarPoints) Name() string      { return fmt.Sprintf("coplanar_points%v", c.ids) }
func (c *CoplanarPoints) NumResiduals() int { return len(c.ids) }
func (c *CoplanarPoints) Weight() float64   { return c.WeightValue }

func (c *CoplanarPoints) rawResiduals(x []float64) []float64 {
	pts := make([]r3.Point, len(c.ids))
	var centroid r3.Vec
	for i, id := range c.ids {
		p := point(c.layout, c.wps[i], id, x)
		pts[i] = p
		centroid = centroid.Add(r3.Vec{X: p.X, Y: p.Y, Z: p.Z})
	}
	centroid = centroid.Divs(float64(len(pts)))

	data := make([]float64, 0, len(pts)*3)
	for _, p := range pts {
		data = append(data, p.X-centroid.X, p.Y-centroid.Y, p.Z-centroid.Z)
	}
	svd, err := linalg.ThinSVD(len(pts), 3, data)
	if err != nil {
		return make([]float64, len(pts))
	}
	n := svd.NullVector()
	normal := r3.Vec{X: n[0], Y: n[1], Z: n[2]}.Unit()

	out := make([]float64, len(pts))
	for i, p := range pts {
		v := r3.Vec{X: p.X - centroid.X, Y: p.Y - centroid.Y, Z: p.Z - centroid.Z}
		out[i] = v.Dot(normal)
	}
	return out
}

func (c *CoplanarPoints) Residuals(x []float64) []float64 {
	w := math.Sqrt(c.WeightValue)
	raw := c.rawResiduals(x)
	out := make([]float64, len(raw))
	for i, v := range raw {
		out[i] = v * w
	}
	return out
}

func (c *CoplanarPoints) Jacobian(x []float64) []linalg.Triplet {
	w := math.Sqrt(c.WeightValue)
	triplets := numericJacobian(pointColumns(c.layout, c.ids...), x, c.rawResiduals)
	for i := range triplets {
		triplets[i].Value *= w
	}
	return triplets
}
