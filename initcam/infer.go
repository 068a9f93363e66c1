package initcam

import (
	"fmt"

	"github.com/scottlawsonbc/slam/code/photon/recon/scene"
)

// TriangulateAllPoints estimates Inferred coordinates for every
// WorldPoint that is not already Locked or Inferred on some axis, from
// every enabled viewpoint's posed camera and non-excluded observation of
// that point. It is the step that runs after seed-pair initialization
// and any PnP resectioning: by then every viewpoint that can be posed
// has been, and triangulation can use all of them at once rather than
// just the seed pair, averaging out pixel noise the same way bundle
// adjustment eventually will.
func TriangulateAllPoints(project *scene.Project) error {
	rays := make(map[scene.ID][]Ray)
	for _, ref := range project.AllImagePoints() {
		vp, ip, ok := ref.Resolve(project)
		if !ok || ip.Excluded || !vp.EnabledInSolve {
			continue
		}
		ray := Ray{
			Origin:    vp.Position,
			Direction: vp.Rotation.RotateVec(normalizedRay(ip.Pixel, vp.Intrinsics)),
		}
		rays[ip.WorldPointID] = append(rays[ip.WorldPointID], ray)
	}

	var failed int
	for _, item := range project.WorldPoints() {
		wp := item.Item
		needsAny := false
		for axis := 0; axis < 3; axis++ {
			if wp.IsFree(axis) {
				needsAny = true
			}
		}
		if !needsAny {
			continue
		}
		group := rays[item.ID]
		if len(group) < 2 {
			failed++
			continue
		}
		p, ok := Triangulate(group)
		if !ok {
			failed++
			continue
		}
		for axis := 0; axis < 3; axis++ {
			if wp.IsFree(axis) {
				wp.Inferred[axis] = scene.Fixed(p.Get(axis))
			}
		}
	}
	if failed > 0 {
		return fmt.Errorf("initcam: %d world points could not be triangulated (%w)", failed, errNotEnoughRays)
	}
	return nil
}

// AxisSign disambiguates which direction along a Line's declared Axis
// its length extends, one bit of the branching a candidate plan fixes
// before a solve attempt: a known length alone constrains distance, not
// direction, so callers (the candidate package) try both signs as
// separate plans and let reprojection error pick the winner.
type AxisSign int

const (
	AxisPositive AxisSign = 1
	AxisNegative AxisSign = -1
)

// PropagateAxisLengths runs a fixed-point iteration over every Line that
// carries both an Axis and a Length: whenever one endpoint's coordinate
// along that axis is fully known (Locked, Inferred, or previously
// propagated) and the other's is still free, it infers the unknown
// endpoint's coordinate as the known one offset by sign*Length along
// that axis. It iterates until no further point gains a coordinate, so
// a chain of axis-aligned lines (A-B-C-D, all parallel to the same
// axis) propagates end to end in one call.
func PropagateAxisLengths(project *scene.Project, sign AxisSign) error {
	for {
		changed := false
		for _, item := range project.Lines() {
			line := item.Item
			if !line.HasAxis || !line.HasLength {
				continue
			}
			a, ok := project.WorldPoint(line.A)
			if !ok {
				continue
			}
			b, ok := project.WorldPoint(line.B)
			if !ok {
				continue
			}
			axis := int(line.Axis)
			aKnown, aSrc := a.EffectiveAxis(axis)
			bKnown, bSrc := b.EffectiveAxis(axis)
			aSet := aSrc != scene.SourceNone
			bSet := bSrc != scene.SourceNone
			switch {
			case aSet && !bSet:
				b.Inferred[axis] = scene.Fixed(aKnown + float64(sign)*line.Length)
				changed = true
			case bSet && !aSet:
				a.Inferred[axis] = scene.Fixed(bKnown - float64(sign)*line.Length)
				changed = true
			}
		}
		if !changed {
			return nil
		}
	}
}
