// Package varlayout assembles the flat variable vector x the solver
// operates on from a scene.Project, and writes the solver's updates back.
// A free scalar (a WorldPoint axis with no locked or inferred value, a
// Viewpoint's position/rotation when its pose is not locked, its focal
// length when not locked, or its principal point when not locked and the
// Viewpoint is PossiblyCropped) gets exactly one column; everything else is
// omitted from x entirely, rather than included and held at a fixed
// value, so the Jacobian never carries a zero column for a frozen
// parameter.
package varlayout

import (
	"github.com/scottlawsonbc/slam/code/photon/recon/r3"
	"github.com/scottlawsonbc/slam/code/photon/recon/scene"
)

// Layout is the slot assignment for one Project at one point in time. It
// must be rebuilt (via Build) whenever a WorldPoint's lock/inference tier
// or a Viewpoint's PoseLocked/FocalLocked/PrincipalPointLocked/PossiblyCropped flags
// change -- which only happens between solve attempts, never mid-solve.
type Layout struct {
	n int

	worldPointAxis map[scene.ID][3]int

	viewpointPosition  map[scene.ID][3]int
	viewpointQuat      map[scene.ID][4]int
	viewpointFocal     map[scene.ID][2]int
	viewpointPrincipal map[scene.ID][2]int
}

const unassigned = -1

// Build assigns one column to each free scalar in project, in the fixed
// order: WorldPoints then Viewpoints, both in insertion order; within a
// WorldPoint, axes X, Y, Z; within a Viewpoint, position (X,Y,Z), then
// quaternion (W,X,Y,Z), then focal length (Fx,Fy) if free, then
// principal point (Cx,Cy) if free. The fixed order is what makes the
// Jacobian's column indices -- and therefore JᵀJ's reduction order --
// reproducible across runs over the same project.
func Build(p *scene.Project) *Layout {
	l := &Layout{
		worldPointAxis:     make(map[scene.ID][3]int),
		viewpointPosition:  make(map[scene.ID][3]int),
		viewpointQuat:      make(map[scene.ID][4]int),
		viewpointFocal:     make(map[scene.ID][2]int),
		viewpointPrincipal: make(map[scene.ID][2]int),
	}
	col := 0
	for _, wp := range p.WorldPoints() {
		var cols [3]int
		for axis := 0; axis < 3; axis++ {
			if wp.Item.IsFree(axis) {
				cols[axis] = col
				col++
			} else {
				cols[axis] = unassigned
			}
		}
		l.worldPointAxis[wp.ID] = cols
	}
	for _, vp := range p.Viewpoints() {
		var pos [3]int
		var quat [4]int
		var focal [2]int
		var pp [2]int
		for i := range pos {
			pos[i] = unassigned
		}
		for i := range quat {
			quat[i] = unassigned
		}
		for i := range focal {
			focal[i] = unassigned
		}
		for i := range pp {
			pp[i] = unassigned
		}
		if !vp.Item.PoseLocked {
			for axis := 0; axis < 3; axis++ {
				pos[axis] = col
				col++
			}
			for axis := 0; axis < 4; axis++ {
				quat[axis] = col
				col++
			}
		}
		if !vp.Item.Intrinsics.FocalLocked {
			focal[0] = col
			col++
			focal[1] = col
			col++
		}
		if !vp.Item.Intrinsics.PrincipalPointLocked && vp.Item.PossiblyCropped {
			pp[0] = col
			col++
			pp[1] = col
			col++
		}
		l.viewpointPosition[vp.ID] = pos
		l.viewpointQuat[vp.ID] = quat
		l.viewpointFocal[vp.ID] = focal
		l.viewpointPrincipal[vp.ID] = pp
	}
	l.n = col
	return l
}

// NumVariables returns the length of the flat variable vector.
func (l *Layout) NumVariables() int { return l.n }

// WorldPointAxisColumn returns the column for a WorldPoint's axis, and
// whether that axis is free (has a column at all).
func (l *Layout) WorldPointAxisColumn(id scene.ID, axis int) (int, bool) {
	cols, ok := l.worldPointAxis[id]
	if !ok || cols[axis] == unassigned {
		return 0, false
	}
	return cols[axis], true
}

// ViewpointPositionColumns returns the three position columns for a
// Viewpoint, and whether its pose is free.
func (l *Layout) ViewpointPositionColumns(id scene.ID) ([3]int, bool) {
	cols, ok := l.viewpointPosition[id]
	if !ok || cols[0] == unassigned {
		return [3]int{}, false
	}
	return cols, true
}

// ViewpointQuaternionColumns returns the four quaternion columns for a
// Viewpoint, and whether its pose is free.
func (l *Layout) ViewpointQuaternionColumns(id scene.ID) ([4]int, bool) {
	cols, ok := l.viewpointQuat[id]
	if !ok || cols[0] == unassigned {
		return [4]int{}, false
	}
	return cols, true
}

// ViewpointFocalColumns returns the two focal-length columns for a
// Viewpoint, and whether its focal length is free.
func (l *Layout) ViewpointFocalColumns(id scene.ID) ([2]int, bool) {
	cols, ok := l.viewpointFocal[id]
	if !ok || cols[0] == unassigned {
		return [2]int{}, false
	}
	return cols, true
}

// ViewpointPrincipalPointColumns returns the two principal-point columns
// for a Viewpoint, and whether its principal point is free.
func (l *Layout) ViewpointPrincipalPointColumns(id scene.ID) ([2]int, bool) {
	cols, ok := l.viewpointPrincipal[id]
	if !ok || cols[0] == unassigned {
		return [2]int{}, false
	}
	return cols, true
}

// ReadVector reads the project's current free-parameter values into a
// flat vector in this layout's column order.
func (l *Layout) ReadVector(p *scene.Project) []float64 {
	x := make([]float64, l.n)
	for _, wp := range p.WorldPoints() {
		for axis := 0; axis < 3; axis++ {
			if col, ok := l.WorldPointAxisColumn(wp.ID, axis); ok {
				v, _ := wp.Item.EffectiveAxis(axis)
				x[col] = v
			}
		}
	}
	for _, vp := range p.Viewpoints() {
		if cols, ok := l.ViewpointPositionColumns(vp.ID); ok {
			x[cols[0]] = vp.Item.Position.X
			x[cols[1]] = vp.Item.Position.Y
			x[cols[2]] = vp.Item.Position.Z
		}
		if cols, ok := l.ViewpointQuaternionColumns(vp.ID); ok {
			x[cols[0]] = vp.Item.Rotation.W
			x[cols[1]] = vp.Item.Rotation.X
			x[cols[2]] = vp.Item.Rotation.Y
			x[cols[3]] = vp.Item.Rotation.Z
		}
		if cols, ok := l.ViewpointFocalColumns(vp.ID); ok {
			x[cols[0]] = vp.Item.Intrinsics.Fx
			x[cols[1]] = vp.Item.Intrinsics.Fy
		}
		if cols, ok := l.ViewpointPrincipalPointColumns(vp.ID); ok {
			x[cols[0]] = vp.Item.Intrinsics.Cx
			x[cols[1]] = vp.Item.Intrinsics.Cy
		}
	}
	return x
}

// WriteVector writes a flat vector in this layout's column order back
// into the project, renormalizing every free quaternion so it stays unit
// length after the solver's additive update.
func (l *Layout) WriteVector(p *scene.Project, x []float64) {
	for _, wp := range p.WorldPoints() {
		for axis := 0; axis < 3; axis++ {
			if col, ok := l.WorldPointAxisColumn(wp.ID, axis); ok {
				wp.Item.SetOptimized(axis, x[col])
			}
		}
	}
	for _, vp := range p.Viewpoints() {
		if cols, ok := l.ViewpointPositionColumns(vp.ID); ok {
			vp.Item.Position = r3.Point{X: x[cols[0]], Y: x[cols[1]], Z: x[cols[2]]}
		}
		if cols, ok := l.ViewpointQuaternionColumns(vp.ID); ok {
			q := r3.Quat{W: x[cols[0]], X: x[cols[1]], Y: x[cols[2]], Z: x[cols[3]]}
			vp.Item.Rotation = q.Normalize()
		}
		if cols, ok := l.ViewpointFocalColumns(vp.ID); ok {
			vp.Item.Intrinsics.Fx = x[cols[0]]
			vp.Item.Intrinsics.Fy = x[cols[1]]
		}
		if cols, ok := l.ViewpointPrincipalPointColumns(vp.ID); ok {
			vp.Item.Intrinsics.Cx = x[cols[0]]
			vp.Item.Intrinsics.Cy = x[cols[1]]
		}
	}
}
