package initcam_test

import (
	"math"
	"testing"

	"github.com/scottlawsonbc/slam/code/photon/recon/initcam"
	"github.com/scottlawsonbc/slam/code/photon/recon/r2"
	"github.com/scottlawsonbc/slam/code/photon/recon/r3"
	"github.com/scottlawsonbc/slam/code/photon/recon/scene"
)

func TestTriangulateTwoRaysMeetAtPoint(t *testing.T) {
	want := r3.Point{X: 1, Y: 2, Z: 10}
	rays := []initcam.Ray{
		{Origin: r3.Point{X: 0, Y: 0, Z: 0}, Direction: want.Sub(r3.Point{}).Unit()},
		{Origin: r3.Point{X: 2, Y: 0, Z: 0}, Direction: want.Sub(r3.Point{X: 2, Y: 0, Z: 0}).Unit()},
	}
	got, ok := initcam.Triangulate(rays)
	if !ok {
		t.Fatalf("Triangulate reported failure for two convergent rays")
	}
	if !got.IsClose(want, 1e-6) {
		t.Errorf("Triangulate = %v, want %v", got, want)
	}
}

func TestTriangulateParallelRaysFail(t *testing.T) {
	rays := []initcam.Ray{
		{Origin: r3.Point{X: 0, Y: 0, Z: 0}, Direction: r3.Vec{X: 0, Y: 0, Z: 1}},
		{Origin: r3.Point{X: 1, Y: 0, Z: 0}, Direction: r3.Vec{X: 0, Y: 0, Z: 1}},
	}
	if _, ok := initcam.Triangulate(rays); ok {
		t.Errorf("Triangulate should fail for exactly parallel rays")
	}
}

func TestRotationFromVanishingLinesTwoAxes(t *testing.T) {
	intr := scene.Intrinsics{Width: 1000, Height: 1000, Fx: 500, Fy: 500, Cx: 500, Cy: 500}

	// Two lines whose vanishing point sits straight ahead (world X axis
	// maps to the camera's own +Z, a 90-degree pan) and two whose vanishing
	// point sits far to one side (world Y axis maps to camera +X).
	xLines := []scene.VanishingLine{
		{Axis: scene.AxisX, P1: r2.Point{X: 400, Y: 400}, P2: r2.Point{X: 300, Y: 300}},
		{Axis: scene.AxisX, P1: r2.Point{X: 600, Y: 300}, P2: r2.Point{X: 700, Y: 100}},
	}
	yLines := []scene.VanishingLine{
		{Axis: scene.AxisY, P1: r2.Point{X: 500, Y: 200}, P2: r2.Point{X: 900, Y: 212}},
		{Axis: scene.AxisY, P1: r2.Point{X: 500, Y: 800}, P2: r2.Point{X: 900, Y: 788}},
	}
	all := append(append([]scene.VanishingLine{}, xLines...), yLines...)

	q, err := initcam.RotationFromVanishingLines(all, intr)
	if err != nil {
		t.Fatalf("RotationFromVanishingLines: %v", err)
	}
	if q.IsNaN() {
		t.Fatalf("RotationFromVanishingLines returned NaN quaternion")
	}
	if math.Abs(q.Norm()-1) > 1e-6 {
		t.Errorf("RotationFromVanishingLines returned non-unit quaternion, norm=%g", q.Norm())
	}
}

func TestRotationFromVanishingLinesNeedsTwoAxes(t *testing.T) {
	intr := scene.Intrinsics{Width: 1000, Height: 1000, Fx: 500, Fy: 500, Cx: 500, Cy: 500}
	lines := []scene.VanishingLine{
		{Axis: scene.AxisX, P1: r2.Point{X: 400, Y: 400}, P2: r2.Point{X: 300, Y: 300}},
		{Axis: scene.AxisX, P1: r2.Point{X: 600, Y: 300}, P2: r2.Point{X: 700, Y: 100}},
	}
	if _, err := initcam.RotationFromVanishingLines(lines, intr); err == nil {
		t.Errorf("RotationFromVanishingLines should fail with only one axis present")
	}
}

func TestPropagateAxisLengthsChain(t *testing.T) {
	project := scene.NewProject()
	a := scene.NewWorldPoint("a")
	a.Locked[2] = scene.Fixed(0)
	b := scene.NewWorldPoint("b")
	c := scene.NewWorldPoint("c")
	aID := project.AddWorldPoint(a)
	bID := project.AddWorldPoint(b)
	cID := project.AddWorldPoint(c)

	project.AddLine(scene.Line{A: aID, B: bID, HasAxis: true, Axis: scene.AxisZ, HasLength: true, Length: 5})
	project.AddLine(scene.Line{A: bID, B: cID, HasAxis: true, Axis: scene.AxisZ, HasLength: true, Length: 3})

	if err := initcam.PropagateAxisLengths(project, initcam.AxisPositive); err != nil {
		t.Fatalf("PropagateAxisLengths: %v", err)
	}

	bz, bSrc := b.EffectiveAxis(2)
	if bSrc == scene.SourceNone {
		t.Fatalf("expected b's Z axis to be inferred")
	}
	if math.Abs(bz-5) > 1e-9 {
		t.Errorf("b.z = %g, want 5", bz)
	}
	cz, cSrc := c.EffectiveAxis(2)
	if cSrc == scene.SourceNone {
		t.Fatalf("expected c's Z axis to be inferred")
	}
	if math.Abs(cz-8) > 1e-9 {
		t.Errorf("c.z = %g, want 8", cz)
	}
}
