package recon_test

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/scottlawsonbc/slam/code/photon/recon"
	"github.com/scottlawsonbc/slam/code/photon/recon/r2"
	"github.com/scottlawsonbc/slam/code/photon/recon/r3"
	"github.com/scottlawsonbc/slam/code/photon/recon/scene"
)

func TestOptimizeOptionsValidateRejectsNonPositiveTolerance(t *testing.T) {
	opts := recon.DefaultOptimizeOptions()
	opts.Tolerance = 0
	if err := opts.Validate(); !errors.Is(err, recon.ErrConfiguration) {
		t.Errorf("Validate() = %v, want wrapping ErrConfiguration", err)
	}
}

func TestOptimizeOptionsValidateRejectsZeroMaxAttempts(t *testing.T) {
	opts := recon.DefaultOptimizeOptions()
	opts.MaxAttempts = 0
	if err := opts.Validate(); !errors.Is(err, recon.ErrConfiguration) {
		t.Errorf("Validate() = %v, want wrapping ErrConfiguration", err)
	}
}

func TestDefaultOptimizeOptionsValidates(t *testing.T) {
	if err := recon.DefaultOptimizeOptions().Validate(); err != nil {
		t.Errorf("DefaultOptimizeOptions() should validate cleanly, got %v", err)
	}
}

func TestOptimizeReportsConfigurationError(t *testing.T) {
	project := scene.NewProject()
	opts := recon.DefaultOptimizeOptions()
	opts.MaxIterations = -1
	_, err := recon.Optimize(context.Background(), project, opts, recon.Hooks{})
	if !errors.Is(err, recon.ErrConfiguration) {
		t.Errorf("Optimize with invalid options returned %v, want ErrConfiguration", err)
	}
}

func TestOptimizeHonorsImmediateCancellation(t *testing.T) {
	project := scene.NewProject()
	opts := recon.DefaultOptimizeOptions()
	hooks := recon.Hooks{ShouldCancel: func() bool { return true }}
	_, err := recon.Optimize(context.Background(), project, opts, hooks)
	if !errors.Is(err, recon.ErrCancelled) {
		t.Errorf("Optimize with immediate cancel returned %v, want ErrCancelled", err)
	}
}

// twoViewCubeProject builds the same two-camera, eight-point scene
// example/scenario05 uses: two unlocked cameras observing a cube's corners,
// with nothing but image observations to go on, so recon.Optimize has
// to run initcam's essential-matrix seed pass and then several LM
// iterations before converging -- unlike an empty project, this one
// actually enters solve.Run's iteration loop.
func twoViewCubeProject() *scene.Project {
	intr := scene.Intrinsics{Width: 1920, Height: 1080, Fx: 1920, Fy: 1920, Cx: 960, Cy: 540}

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
	project.AddViewpoint(vp0)
	vp1 := scene.NewViewpoint("cam1", intr)
	project.AddViewpoint(vp1)

	for i, world := range cubePoints {
		wp := scene.NewWorldPoint(string(rune('a' + i)))
		wpID := project.AddWorldPoint(wp)
		vp0.AddImagePoint(scene.ImagePoint{WorldPointID: wpID, Pixel: projectForRecon(intr, cam0Pos, cam0Rot, world)})
		vp1.AddImagePoint(scene.ImagePoint{WorldPointID: wpID, Pixel: projectForRecon(intr, cam1Pos, cam1Rot, world)})
	}
	return project
}

func projectForRecon(intr scene.Intrinsics, camPos r3.Point, camRot r3.Quat, world r3.Point) r2.Point {
	local := camRot.RotateVec(world.Sub(camPos))
	return r2.Point{X: intr.Fx*local.X/local.Z + intr.Cx, Y: intr.Fy*local.Y/local.Z + intr.Cy}
}

func TestOptimizeCancelsMidSolve(t *testing.T) {
	project := twoViewCubeProject()
	opts := recon.DefaultOptimizeOptions()

	var iterationsEntered int
	hooks := recon.Hooks{
		Yield: func() { iterationsEntered++ },
		ShouldCancel: func() bool {
			return iterationsEntered > 3
		},
	}

	_, err := recon.Optimize(context.Background(), project, opts, hooks)
	if !errors.Is(err, recon.ErrCancelled) {
		t.Fatalf("Optimize with mid-solve cancel returned %v, want ErrCancelled", err)
	}
	if iterationsEntered > 4 {
		t.Errorf("solve loop entered %d iterations after a cancel scheduled past iteration 3, want <= 4", iterationsEntered)
	}
}

func TestOptimizeBatchHandlesEmptyInput(t *testing.T) {
	results := recon.OptimizeBatch(context.Background(), nil, recon.DefaultOptimizeOptions(), recon.Hooks{})
	if len(results) != 0 {
		t.Errorf("OptimizeBatch(nil) returned %d results, want 0", len(results))
	}
}

func TestOptimizeBatchPreservesIndexOrdering(t *testing.T) {
	projects := []*scene.Project{
		scene.NewProject(),
		scene.NewProject(),
		scene.NewProject(),
	}
	opts := recon.DefaultOptimizeOptions()
	opts.MaxIterations = -1 // force every Optimize call to fail fast on Validate
	results := recon.OptimizeBatch(context.Background(), projects, opts, recon.Hooks{})
	if len(results) != len(projects) {
		t.Fatalf("OptimizeBatch returned %d results, want %d", len(results), len(projects))
	}
	for i, r := range results {
		if r.Index != i {
			t.Errorf("results[%d].Index = %d, want %d", i, r.Index, i)
		}
		if !errors.Is(r.Err, recon.ErrConfiguration) {
			t.Errorf("results[%d].Err = %v, want ErrConfiguration", i, r.Err)
		}
	}
}
