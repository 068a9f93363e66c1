// This example demonstrates single-camera PnP resectioning: one
// viewpoint observing four locked, coplanar world points. It is the
// smallest scene recon.Optimize can solve end to end, and a useful
// sanity check that a fresh build still reproduces the expected
// sub-pixel reprojection error.
package main

import (
	"context"
	"flag"
	"log"

	"github.com/scottlawsonbc/slam/code/photon/recon"
	"github.com/scottlawsonbc/slam/code/photon/recon/r2"
	"github.com/scottlawsonbc/slam/code/photon/recon/r3"
	"github.com/scottlawsonbc/slam/code/photon/recon/scene"
)

var verbose = flag.Bool("verbose", false, "log LM iteration progress")

// cornerPixel projects a locked world point through the known ground
// truth camera so the example has a consistent observation to feed the
// solver without needing an image or a detector.
func cornerPixel(intr scene.Intrinsics, camPos r3.Point, camRot r3.Quat, world r3.Point) r2.Point {
	local := camRot.RotateVec(world.Sub(camPos))
	x := local.X / local.Z
	y := local.Y / local.Z
	return r2.Point{
		X: intr.Fx*x + intr.Cx,
		Y: intr.Fy*y + intr.Cy,
	}
}

func main() {
	flag.Parse()

	intr := scene.Intrinsics{
		Width: 1920, Height: 1080,
		Fx: 1500, Fy: 1500,
		Cx: 960, Cy: 540,
	}
	camPos := r3.Point{X: 0, Y: 0, Z: -20}
	camRot := r3.IdentityQuat()

	project := scene.NewProject()
	vp := scene.NewViewpoint("cam0", intr)
	vpID := project.AddViewpoint(vp)

	corners := [4]r3.Point{
		{X: -5, Y: -5, Z: 0},
		{X: 5, Y: -5, Z: 0},
		{X: 5, Y: 5, Z: 0},
		{X: -5, Y: 5, Z: 0},
	}
	for i, corner := range corners {
		wp := scene.NewWorldPoint(cornerName(i))
		wp.Locked[0] = scene.Fixed(corner.X)
		wp.Locked[1] = scene.Fixed(corner.Y)
		wp.Locked[2] = scene.Fixed(corner.Z)
		wpID := project.AddWorldPoint(wp)

		pixel := cornerPixel(intr, camPos, camRot, corner)
		vp.AddImagePoint(scene.ImagePoint{WorldPointID: wpID, Pixel: pixel})
	}

	opts := recon.DefaultOptimizeOptions()
	opts.Verbose = *verbose
	hooks := recon.Hooks{}
	if *verbose {
		hooks.Log = func(msg string) { log.Println(msg) }
	}

	result, err := recon.Optimize(context.Background(), project, opts, hooks)
	if err != nil {
		log.Fatalf("scenario01: optimize failed: %v", err)
	}

	solved, _ := project.Viewpoint(vpID)
	log.Printf("scenario01: converged=%v iterations=%d median=%.4fpx rms=%.4fpx",
		result.Converged, result.Iterations, result.MedianReprojectionError, result.RMSReprojectionError)
	log.Printf("scenario01: recovered camera position=%v rotation=%v", solved.Position, solved.Rotation)
}

func cornerName(i int) string {
	names := [4]string{"corner-a", "corner-b", "corner-c", "corner-d"}
	return names[i]
}
