package initcam_test

import (
	"testing"

	"github.com/scottlawsonbc/slam/code/photon/recon/initcam"
	"github.com/scottlawsonbc/slam/code/photon/recon/r2"
	"github.com/scottlawsonbc/slam/code/photon/recon/r3"
	"github.com/scottlawsonbc/slam/code/photon/recon/scene"
)

func projectForTest(intr scene.Intrinsics, position r3.Point, rotation r3.Quat, world r3.Point) r2.Point {
	local := rotation.RotateVec(world.Sub(position))
	return r2.Point{
		X: intr.Fx*local.X/local.Z + intr.Cx,
		Y: intr.Fy*local.Y/local.Z + intr.Cy,
	}
}

func TestResectionCameraRecoversKnownPose(t *testing.T) {
	intr := scene.Intrinsics{Width: 1920, Height: 1080, Fx: 1500, Fy: 1500, Cx: 960, Cy: 540}
	truePosition := r3.Point{X: 0, Y: 0, Z: -20}
	trueRotation := r3.IdentityQuat()

	worldPoints := []r3.Point{
		{X: -5, Y: -5, Z: 0}, {X: 5, Y: -5, Z: 0},
		{X: 5, Y: 5, Z: 0}, {X: -5, Y: 5, Z: 0},
		{X: -3, Y: -3, Z: 1}, {X: 3, Y: 3, Z: 1},
	}
	var corr []initcam.PnPCorrespondence
	for _, wp := range worldPoints {
		corr = append(corr, initcam.PnPCorrespondence{
			World: wp,
			Pixel: projectForTest(intr, truePosition, trueRotation, wp),
		})
	}

	position, rotation, err := initcam.ResectionCamera(corr, intr)
	if err != nil {
		t.Fatalf("ResectionCamera: %v", err)
	}
	if !position.IsClose(truePosition, 1.0) {
		t.Errorf("ResectionCamera position = %v, want close to %v", position, truePosition)
	}
	if rotation.IsNaN() {
		t.Fatalf("ResectionCamera returned NaN rotation")
	}
}

func TestResectionCameraToleratesOneOutlier(t *testing.T) {
	intr := scene.Intrinsics{Width: 1920, Height: 1080, Fx: 1500, Fy: 1500, Cx: 960, Cy: 540}
	truePosition := r3.Point{X: 0, Y: 0, Z: -20}
	trueRotation := r3.IdentityQuat()

	worldPoints := []r3.Point{
		{X: -5, Y: -5, Z: 0}, {X: 5, Y: -5, Z: 0},
		{X: 5, Y: 5, Z: 0}, {X: -5, Y: 5, Z: 0},
		{X: -3, Y: -3, Z: 1}, {X: 3, Y: 3, Z: 1},
		{X: -2, Y: 4, Z: 2}, {X: 2, Y: -4, Z: 2},
	}
	var corr []initcam.PnPCorrespondence
	for _, wp := range worldPoints {
		corr = append(corr, initcam.PnPCorrespondence{
			World: wp,
			Pixel: projectForTest(intr, truePosition, trueRotation, wp),
		})
	}
	// Corrupt one observation far outside the cluster of correct ones.
	corr[0].Pixel = r2.Point{X: corr[0].Pixel.X + 500, Y: corr[0].Pixel.Y - 400}

	position, _, err := initcam.ResectionCamera(corr, intr)
	if err != nil {
		t.Fatalf("ResectionCamera: %v", err)
	}
	if !position.IsClose(truePosition, 3.0) {
		t.Errorf("ResectionCamera with one outlier = %v, want close to %v", position, truePosition)
	}
}
