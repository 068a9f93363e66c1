// This example demonstrates two-view reconstruction from unlocked world
// points: two cameras observe a cube's eight corners with no prior
// pose or position information beyond the image observations themselves.
// recon.Optimize has to run initcam's essential-matrix seed-pair pass
// before the solver has anything to refine.
package main

import (
	"context"
	"flag"
	"log"
	"math"

	"github.com/scottlawsonbc/slam/code/photon/recon"
	"github.com/scottlawsonbc/slam/code/photon/recon/r2"
	"github.com/scottlawsonbc/slam/code/photon/recon/r3"
	"github.com/scottlawsonbc/slam/code/photon/recon/scene"
)

var verbose = flag.Bool("verbose", false, "log LM iteration progress")

func projectPoint(intr scene.Intrinsics, camPos r3.Point, camRot r3.Quat, world r3.Point) r2.Point {
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
		Fx: 1920, Fy: 1920,
		Cx: 960, Cy: 540,
	}

	cam0Pos := r3.Point{X: 0, Y: 0, Z: -20}
	cam0Rot := r3.IdentityQuat()

	yaw := math.Pi / 12
	cam1Pos := r3.Point{X: 10, Y: 0, Z: -20}
	cam1Rot := r3.QuatFromMat3x3(r3.Mat3x3{M: [3][3]float64{
		{math.Cos(yaw), 0, math.Sin(yaw)},
		{0, 1, 0},
		{-math.Sin(yaw), 0, math.Cos(yaw)},
	}})

	cubePoints := [8]r3.Point{
		{X: -1, Y: -1, Z: -1}, {X: 1, Y: -1, Z: -1},
		{X: 1, Y: 1, Z: -1}, {X: -1, Y: 1, Z: -1},
		{X: -1, Y: -1, Z: 1}, {X: 1, Y: -1, Z: 1},
		{X: 1, Y: 1, Z: 1}, {X: -1, Y: 1, Z: 1},
	}

	project := scene.NewProject()
	vp0 := scene.NewViewpoint("cam0", intr)
	vp0ID := project.AddViewpoint(vp0)
	vp1 := scene.NewViewpoint("cam1", intr)
	vp1ID := project.AddViewpoint(vp1)

	for i, world := range cubePoints {
		wp := scene.NewWorldPoint(cubePointName(i))
		wpID := project.AddWorldPoint(wp)

		vp0.AddImagePoint(scene.ImagePoint{
			WorldPointID: wpID,
			Pixel:        projectPoint(intr, cam0Pos, cam0Rot, world),
		})
		vp1.AddImagePoint(scene.ImagePoint{
			WorldPointID: wpID,
			Pixel:        projectPoint(intr, cam1Pos, cam1Rot, world),
		})
	}

	opts := recon.DefaultOptimizeOptions()
	opts.Verbose = *verbose
	hooks := recon.Hooks{}
	if *verbose {
		hooks.Log = func(msg string) { log.Println(msg) }
	}

	result, err := recon.Optimize(context.Background(), project, opts, hooks)
	if err != nil {
		log.Fatalf("scenario05: optimize failed: %v", err)
	}

	solvedCam0, _ := project.Viewpoint(vp0ID)
	solvedCam1, _ := project.Viewpoint(vp1ID)
	baseline := solvedCam1.Position.Sub(solvedCam0.Position).Length()

	log.Printf("scenario05: converged=%v iterations=%d median=%.4fpx rms=%.4fpx",
		result.Converged, result.Iterations, result.MedianReprojectionError, result.RMSReprojectionError)
	log.Printf("scenario05: recovered baseline=%.4f (ground truth 10.0)", baseline)
}

func cubePointName(i int) string {
	return [8]string{
		"cube-000", "cube-100", "cube-110", "cube-010",
		"cube-001", "cube-101", "cube-111", "cube-011",
	}[i]
}
