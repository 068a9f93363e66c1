package residual_test

import (
	"math"
	"testing"

	"github.com/scottlawsonbc/slam/code/photon/recon/r2"
	"github.com/scottlawsonbc/slam/code/photon/recon/r3"
	"github.com/scottlawsonbc/slam/code/photon/recon/residual"
	"github.com/scottlawsonbc/slam/code/photon/recon/scene"
	"github.com/scottlawsonbc/slam/code/photon/recon/varlayout"
)

// lockedSingleObservation builds a project with one pose-locked
// Viewpoint observing one fully-locked WorldPoint, so the resulting
// Layout has zero free variables and its sole Reprojection provider can
// be evaluated against an empty x.
func lockedSingleObservation(t *testing.T, intr scene.Intrinsics, world r3.Point, pixel r2.Point) *residual.Reprojection {
	t.Helper()
	project := scene.NewProject()
	vp := scene.NewViewpoint("cam", intr)
	vp.PoseLocked = true
	project.AddViewpoint(vp)

	wp := scene.NewWorldPoint("p")
	wp.Locked[0] = scene.Fixed(world.X)
	wp.Locked[1] = scene.Fixed(world.Y)
	wp.Locked[2] = scene.Fixed(world.Z)
	wpID := project.AddWorldPoint(wp)
	vp.AddImagePoint(scene.ImagePoint{WorldPointID: wpID, Pixel: pixel})

	layout := varlayout.Build(project)
	providers, err := residual.Build(project, layout)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(providers) != 1 {
		t.Fatalf("got %d providers, want 1", len(providers))
	}
	reproj, ok := providers[0].(*residual.Reprojection)
	if !ok {
		t.Fatalf("provider is %T, want *residual.Reprojection", providers[0])
	}
	return reproj
}

// expectedPixel applies the same pinhole-plus-skew formula
// reprojection.go's project() uses, with distortion coefficients at
// zero, as an independent check on the wiring (not a re-derivation of
// the distortion model itself).
func expectedPixel(intr scene.Intrinsics, world r3.Point) r2.Point {
	xn := world.X / world.Z
	yn := world.Y / world.Z
	return r2.Point{X: intr.Fx*xn + intr.Skew*yn + intr.Cx, Y: intr.Fy*yn + intr.Cy}
}

func TestReprojectionAppliesSkewCrossTerm(t *testing.T) {
	intr := scene.Intrinsics{
		Width: 1920, Height: 1080, Fx: 1000, Fy: 1000, Cx: 960, Cy: 540, Skew: 50,
		FocalLocked: true, PrincipalPointLocked: true,
	}
	world := r3.Point{X: 2, Y: 1, Z: 10}

	observed := expectedPixel(intr, world)
	reproj := lockedSingleObservation(t, intr, world, observed)

	delta, inFront := reproj.PixelResidual(nil)
	if !inFront {
		t.Fatalf("point unexpectedly behind camera")
	}
	if math.Abs(delta.X) > 1e-9 || math.Abs(delta.Y) > 1e-9 {
		t.Errorf("PixelResidual() = %v, want ~(0,0) against the skew-aware expected pixel", delta)
	}

	// Observing the same pixel but against zero-skew intrinsics should
	// now show a nonzero x residual equal to skew*yn -- proof the skew
	// term is actually load-bearing in project(), not a dead field.
	noSkew := intr
	noSkew.Skew = 0
	reprojNoSkew := lockedSingleObservation(t, noSkew, world, observed)
	deltaNoSkew, inFront := reprojNoSkew.PixelResidual(nil)
	if !inFront {
		t.Fatalf("point unexpectedly behind camera")
	}
	wantDx := -intr.Skew * (world.Y / world.Z)
	if math.Abs(deltaNoSkew.X-wantDx) > 1e-9 {
		t.Errorf("zero-skew residual.X = %v, want %v", deltaNoSkew.X, wantDx)
	}
}
