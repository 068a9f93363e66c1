package initcam

import (
	"fmt"

	"github.com/scottlawsonbc/slam/code/photon/recon/r3"
	"github.com/scottlawsonbc/slam/code/photon/recon/scene"
)

// Report summarizes what Initialize managed to pose and triangulate, so
// callers (recon.Optimize, and the candidate package's plan enumeration)
// can decide whether the result is usable before spending a full LM
// solve on it.
type Report struct {
	PosedByVanishingLines []scene.ID
	SeedPairA, SeedPairB  scene.ID
	PosedByPnP            []scene.ID
	FailedToPose          []scene.ID
	TriangulationError    error
}

// Initialize runs the full cold-start pipeline over a project in place:
// vanishing-line rotations first (they need no other viewpoint to be
// posed already), then a seed pair via the essential matrix, then every
// remaining enabled viewpoint via PnP against whatever world points are
// already known, and finally a triangulation pass that fills in every
// WorldPoint axis still free. Axis-aligned length propagation is left to
// the caller (PropagateAxisLengths), since its sign is exactly the
// branching decision the candidate package makes per plan.
func Initialize(project *scene.Project) (Report, error) {
	var report Report

	for _, item := range project.Viewpoints() {
		vp := item.Item
		if !vp.EnabledInSolve || vp.PoseLocked {
			continue
		}
		lines := vp.VanishingLines()
		if len(lines) == 0 {
			continue
		}
		q, err := RotationFromVanishingLines(lines, vp.Intrinsics)
		if err != nil {
			continue
		}
		vp.Rotation = q
		report.PosedByVanishingLines = append(report.PosedByVanishingLines, item.ID)
	}

	aID, bID, err := SeedPair(project)
	if err != nil {
		return report, fmt.Errorf("initcam: %w", err)
	}
	if err := InitializeSeedPair(project, aID, bID); err != nil {
		return report, fmt.Errorf("initcam: %w", err)
	}
	report.SeedPairA, report.SeedPairB = aID, bID

	for _, item := range project.Viewpoints() {
		vp := item.Item
		if item.ID == aID || item.ID == bID || !vp.EnabledInSolve || vp.PoseLocked {
			continue
		}
		corr := pnpCorrespondences(project, vp)
		if len(corr) < 6 {
			report.FailedToPose = append(report.FailedToPose, item.ID)
			continue
		}
		position, rotation, err := ResectionCamera(corr, vp.Intrinsics)
		if err != nil {
			report.FailedToPose = append(report.FailedToPose, item.ID)
			continue
		}
		vp.Position = position
		vp.Rotation = rotation
		report.PosedByPnP = append(report.PosedByPnP, item.ID)
	}

	if err := TriangulateAllPoints(project); err != nil {
		report.TriangulationError = err
	}
	return report, nil
}

// pnpCorrespondences collects the 2D-3D matches available for resectioning
// vp: every non-excluded observation of a WorldPoint that already has a
// known coordinate on every axis (Locked, Inferred from the seed pair, or
// both).
func pnpCorrespondences(project *scene.Project, vp *scene.Viewpoint) []PnPCorrespondence {
	var out []PnPCorrespondence
	for _, ip := range vp.ImagePoints() {
		if ip.Excluded {
			continue
		}
		wp, ok := project.WorldPoint(ip.WorldPointID)
		if !ok {
			continue
		}
		known := true
		var x, y, z float64
		for axis, dst := range []*float64{&x, &y, &z} {
			v, src := wp.EffectiveAxis(axis)
			if src == scene.SourceNone {
				known = false
				break
			}
			*dst = v
		}
		if !known {
			continue
		}
		out = append(out, PnPCorrespondence{
			World: r3.Point{X: x, Y: y, Z: z},
			Pixel: ip.Pixel,
		})
	}
	return out
}
