package initcam_test

import (
	"testing"

	"github.com/scottlawsonbc/slam/code/photon/recon/initcam"
	"github.com/scottlawsonbc/slam/code/photon/recon/r2"
	"github.com/scottlawsonbc/slam/code/photon/recon/scene"
)

func addSharedPoints(t *testing.T, project *scene.Project, vpA, vpB *scene.Viewpoint, n int, namePrefix string) []scene.ID {
	t.Helper()
	var ids []scene.ID
	for i := 0; i < n; i++ {
		wp := scene.NewWorldPoint(namePrefix + string(rune('a'+i)))
		id := project.AddWorldPoint(wp)
		ids = append(ids, id)
		pixel := r2.Point{X: float64(100 + i*10), Y: float64(200 + i*5)}
		vpA.AddImagePoint(scene.ImagePoint{WorldPointID: id, Pixel: pixel})
		vpB.AddImagePoint(scene.ImagePoint{WorldPointID: id, Pixel: pixel})
	}
	return ids
}

func intr() scene.Intrinsics {
	return scene.Intrinsics{Width: 1920, Height: 1080, Fx: 1000, Fy: 1000, Cx: 960, Cy: 540}
}

func TestSeedPairPrefersFullyLockedSharedPoints(t *testing.T) {
	project := scene.NewProject()
	vpA := scene.NewViewpoint("a", intr())
	vpB := scene.NewViewpoint("b", intr())
	vpC := scene.NewViewpoint("c", intr())
	aID := project.AddViewpoint(vpA)
	project.AddViewpoint(vpB)
	cID := project.AddViewpoint(vpC)

	// A-B shares more raw observations but none are locked.
	addSharedPoints(t, project, vpA, vpB, 10, "ab-")

	// A-C shares fewer observations, but two of them are fully locked
	// 3D points -- a stronger seed than raw count alone would suggest.
	cIDs := addSharedPoints(t, project, vpA, vpC, 8, "ac-")
	for _, id := range cIDs[:2] {
		wp, _ := project.WorldPoint(id)
		wp.Locked[0] = scene.Fixed(1)
		wp.Locked[1] = scene.Fixed(2)
		wp.Locked[2] = scene.Fixed(3)
	}

	gotA, gotB, err := initcam.SeedPair(project)
	if err != nil {
		t.Fatalf("SeedPair: %v", err)
	}
	if !((gotA == aID && gotB == cID) || (gotA == cID && gotB == aID)) {
		t.Errorf("SeedPair = (%d, %d), want the A-C pair (locked shared points) over A-B (more raw points)", gotA, gotB)
	}
}

func TestSeedPairPrefersScaleConstraint(t *testing.T) {
	project := scene.NewProject()
	vpA := scene.NewViewpoint("a", intr())
	vpB := scene.NewViewpoint("b", intr())
	vpC := scene.NewViewpoint("c", intr())
	aID := project.AddViewpoint(vpA)
	project.AddViewpoint(vpB)
	cID := project.AddViewpoint(vpC)

	// A-B shares more raw observations but carries no length constraint.
	addSharedPoints(t, project, vpA, vpB, 10, "ab-")

	// A-C shares fewer observations, but a known-length Line between two
	// of them gives the pair a metric scale reference.
	cIDs := addSharedPoints(t, project, vpA, vpC, 8, "ac-")
	project.AddLine(scene.Line{A: cIDs[0], B: cIDs[1], HasLength: true, Length: 2})

	gotA, gotB, err := initcam.SeedPair(project)
	if err != nil {
		t.Fatalf("SeedPair: %v", err)
	}
	if !((gotA == aID && gotB == cID) || (gotA == cID && gotB == aID)) {
		t.Errorf("SeedPair = (%d, %d), want the A-C pair (scale constraint) over A-B (more raw points)", gotA, gotB)
	}
}

func TestSeedPairFallsBackToRawCount(t *testing.T) {
	project := scene.NewProject()
	vpA := scene.NewViewpoint("a", intr())
	vpB := scene.NewViewpoint("b", intr())
	vpC := scene.NewViewpoint("c", intr())
	aID := project.AddViewpoint(vpA)
	project.AddViewpoint(vpB)
	cID := project.AddViewpoint(vpC)

	// Neither pair has a locked point or a scale constraint, so the pair
	// with more raw shared observations wins.
	addSharedPoints(t, project, vpA, vpB, 8, "ab-")
	addSharedPoints(t, project, vpA, vpC, 12, "ac-")

	gotA, gotB, err := initcam.SeedPair(project)
	if err != nil {
		t.Fatalf("SeedPair: %v", err)
	}
	if !((gotA == aID && gotB == cID) || (gotA == cID && gotB == aID)) {
		t.Errorf("SeedPair = (%d, %d), want the A-C pair (12 shared) over A-B (8 shared)", gotA, gotB)
	}
}
