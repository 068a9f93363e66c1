package initcam

import (
	"fmt"

	"github.com/scottlawsonbc/slam/code/photon/recon/r2"
	"github.com/scottlawsonbc/slam/code/photon/recon/r3"
	"github.com/scottlawsonbc/slam/code/photon/recon/scene"
)

// sharedPoints returns, for two viewpoints, the WorldPoint IDs both
// observe (non-excluded), along with their pixel pair.
func sharedPoints(project *scene.Project, a, b *scene.Viewpoint) (ids []scene.ID, corr []Correspondence) {
	pixelsA := make(map[scene.ID][]scene.ImagePoint)
	for _, ip := range a.ImagePoints() {
		if ip.Excluded {
			continue
		}
		pixelsA[ip.WorldPointID] = append(pixelsA[ip.WorldPointID], ip)
	}
	for _, ip := range b.ImagePoints() {
		if ip.Excluded {
			continue
		}
		matches, ok := pixelsA[ip.WorldPointID]
		if !ok || len(matches) == 0 {
			continue
		}
		ids = append(ids, ip.WorldPointID)
		corr = append(corr, Correspondence{A: matches[0].Pixel, B: ip.Pixel})
	}
	return ids, corr
}

// seedRank is the priority key SeedPair maximizes, compared
// lexicographically: a pair with a metric scale reference beats one
// without regardless of point count, a pair with more fully-locked
// shared points beats one with fewer, and raw shared-observation count
// only breaks what survives those two tiers.
type seedRank struct {
	hasScale    bool
	lockedCount int
	rawCount    int
}

// less reports whether r ranks below other.
func (r seedRank) less(other seedRank) bool {
	if r.hasScale != other.hasScale {
		return !r.hasScale
	}
	if r.lockedCount != other.lockedCount {
		return r.lockedCount < other.lockedCount
	}
	return r.rawCount < other.rawCount
}

// rankSharedPoints scores a candidate seed pair's shared WorldPoint set:
// whether any Line with a known length connects two of them (giving the
// essential-matrix pose a metric scale instead of an arbitrary one), and
// how many of them have all three axes already Locked (each one anchors
// the pair's absolute pose, not just its relative one).
func rankSharedPoints(project *scene.Project, ids []scene.ID) seedRank {
	shared := make(map[scene.ID]bool, len(ids))
	for _, id := range ids {
		shared[id] = true
	}

	rank := seedRank{rawCount: len(ids)}
	for _, id := range ids {
		wp, ok := project.WorldPoint(id)
		if !ok {
			continue
		}
		locked := true
		for axis := 0; axis < 3; axis++ {
			if !wp.Locked[axis].Set {
				locked = false
				break
			}
		}
		if locked {
			rank.lockedCount++
		}
	}
	for _, ref := range project.Lines() {
		l := ref.Item
		if l.HasLength && shared[l.A] && shared[l.B] {
			rank.hasScale = true
			break
		}
	}
	return rank
}

// SeedPair picks the two enabled viewpoints whose shared observations
// make the best-conditioned two-view seed, the standard first step of
// an incremental structure-from-motion pipeline. Candidates are ranked
// by rankSharedPoints rather than by raw shared-observation count alone:
// a pair whose shared points carry a known-length Line or are already
// fully locked gives the essential-matrix estimate a real scale and
// absolute pose to anchor to, which a larger but unconstrained shared
// set cannot. Raw count only decides between pairs tied on both of
// those, since more shared observations still makes the eight-point
// algorithm's least-squares estimate more stable against pixel noise.
func SeedPair(project *scene.Project) (scene.ID, scene.ID, error) {
	viewpoints := project.Viewpoints()
	bestCount := -1
	var bestRank seedRank
	var bestA, bestB scene.ID
	found := false
	for i := 0; i < len(viewpoints); i++ {
		if !viewpoints[i].Item.EnabledInSolve {
			continue
		}
		for j := i + 1; j < len(viewpoints); j++ {
			if !viewpoints[j].Item.EnabledInSolve {
				continue
			}
			ids, _ := sharedPoints(project, viewpoints[i].Item, viewpoints[j].Item)
			if len(ids) > bestCount {
				bestCount = len(ids)
			}
			if len(ids) < 8 {
				continue
			}
			rank := rankSharedPoints(project, ids)
			if !found || bestRank.less(rank) {
				bestRank = rank
				bestA, bestB = viewpoints[i].ID, viewpoints[j].ID
				found = true
			}
		}
	}
	if !found {
		return 0, 0, fmt.Errorf("initcam: no viewpoint pair shares at least 8 observations (best %d)", bestCount)
	}
	return bestA, bestB, nil
}

// InitializeSeedPair poses the second viewpoint relative to the first
// (held fixed at its current pose, typically identity at the origin)
// via the essential matrix, then triangulates every point they both
// observe and records the result as each WorldPoint's Inferred
// coordinates -- a starting guess the solver can still move, distinct
// from a Locked measurement.
func InitializeSeedPair(project *scene.Project, aID, bID scene.ID) error {
	a, ok := project.Viewpoint(aID)
	if !ok {
		return fmt.Errorf("initcam: unknown viewpoint %d", aID)
	}
	b, ok := project.Viewpoint(bID)
	if !ok {
		return fmt.Errorf("initcam: unknown viewpoint %d", bID)
	}
	ids, corr := sharedPoints(project, a, b)
	if len(ids) < 8 {
		return fmt.Errorf("initcam: seed pair shares only %d observations, need 8", len(ids))
	}

	pose, err := EssentialMatrixPose(corr, a.Intrinsics, b.Intrinsics)
	if err != nil {
		return fmt.Errorf("initcam: seed pair pose estimation: %w", err)
	}
	b.Rotation = a.Rotation.Mul(pose.Rotation)
	b.Position = a.Position.Add(a.Rotation.RotateVec(pose.TranslationDir))

	for i, id := range ids {
		rayA := Ray{
			Origin:    a.Position,
			Direction: a.Rotation.RotateVec(normalizedRay(corr[i].A, a.Intrinsics)),
		}
		rayB := Ray{
			Origin:    b.Position,
			Direction: b.Rotation.RotateVec(normalizedRay(corr[i].B, b.Intrinsics)),
		}
		p, ok := Triangulate([]Ray{rayA, rayB})
		if !ok {
			continue
		}
		wp, ok := project.WorldPoint(id)
		if !ok {
			continue
		}
		for axis := 0; axis < 3; axis++ {
			if wp.IsFree(axis) {
				wp.Inferred[axis] = scene.Fixed(p.Get(axis))
			}
		}
	}
	return nil
}

func normalizedRay(pixel r2.Point, intr scene.Intrinsics) r3.Vec {
	xn := (pixel.X - intr.Cx) / intr.Fx
	yn := (pixel.Y - intr.Cy) / intr.Fy
	return r3.Vec{X: xn, Y: yn, Z: 1}.Unit()
}
