package scene

import (
	"fmt"
	"math"

	"github.com/scottlawsonbc/slam/code/photon/recon/r3"
)

// Intrinsics holds the pixel geometry and OpenCV-style distortion model of
// a camera, directly modeled on phys/camera_calibrated.go's
// CameraIntrinsics -- same field names and same distortion-coefficient
// ordering, so a project's intrinsics can be dropped straight into the
// renderer's camera model for visualization.
type Intrinsics struct {
	Width, Height int

	Fx, Fy float64
	Cx, Cy float64
	// Skew is the pixel-axis non-orthogonality term, 0 for nearly every
	// real sensor. It appears only in the x-pixel formula:
	// u = fx*xd + skew*yd + cx.
	Skew float64

	K1, K2, P1, P2, K3 float64
	K4, K5, K6         float64

	// FocalLocked and PrincipalPointLocked mirror WorldPoint's axis-tier
	// model for the camera's own free parameters: when true, the solver
	// never adjusts that parameter, even if AutoInitializeCameras would
	// otherwise refine it.
	FocalLocked          bool
	PrincipalPointLocked bool
}

// Validate checks that the intrinsics are self-consistent, mirroring
// CameraIntrinsics.Validate.
func (ci Intrinsics) Validate() error {
	if ci.Width <= 0 || ci.Height <= 0 {
		return fmt.Errorf("scene: intrinsics have invalid image size %dx%d", ci.Width, ci.Height)
	}
	if !(ci.Fx > 0 && ci.Fy > 0) {
		return fmt.Errorf("scene: intrinsics have invalid focal length fx=%g fy=%g", ci.Fx, ci.Fy)
	}
	if math.IsNaN(ci.Cx) || math.IsNaN(ci.Cy) {
		return fmt.Errorf("scene: intrinsics have NaN principal point")
	}
	return nil
}

// K returns the 3x3 pinhole calibration matrix.
func (ci Intrinsics) K() [3][3]float64 {
	return [3][3]float64{
		{ci.Fx, ci.Skew, ci.Cx},
		{0, ci.Fy, ci.Cy},
		{0, 0, 1},
	}
}

// D returns the distortion coefficients in OpenCV order, 5 entries unless
// any of the rational-model terms K4..K6 are non-zero.
func (ci Intrinsics) D() []float64 {
	if ci.K4 == 0 && ci.K5 == 0 && ci.K6 == 0 {
		return []float64{ci.K1, ci.K2, ci.P1, ci.P2, ci.K3}
	}
	return []float64{ci.K1, ci.K2, ci.P1, ci.P2, ci.K3, ci.K4, ci.K5, ci.K6}
}

// Viewpoint is a single calibrated camera pose: the extrinsics (Position,
// Rotation) are variables the solver adjusts directly in quaternion form,
// unlike phys's CameraExtrinsics which derives its basis from
// LookFrom/LookAt/VUp -- a quaternion has no gimbal singularity and its
// unit-norm constraint is cheap to maintain after every LM step.
type Viewpoint struct {
	Name       string
	Intrinsics Intrinsics

	Position r3.Point
	Rotation r3.Quat

	// EnabledInSolve excludes this viewpoint's image points from the
	// residual set entirely, e.g. while its initialization has failed.
	EnabledInSolve bool
	// PoseLocked freezes Position and Rotation: the solver may still
	// refine this viewpoint's intrinsics (if not themselves locked) but
	// never moves the camera.
	PoseLocked bool
	// PossiblyCropped lets the solver move the principal point (unless
	// PrincipalPointLocked): a cropped image legitimately has an
	// off-center principal point. When false the principal point is held
	// fixed.
	PossiblyCropped bool

	imagePoints    []ImagePoint
	vanishingLines []VanishingLine
}

// NewViewpoint returns a Viewpoint with the given name and intrinsics,
// enabled in the solve and with an identity pose.
func NewViewpoint(name string, intr Intrinsics) *Viewpoint {
	return &Viewpoint{
		Name:           name,
		Intrinsics:     intr,
		Rotation:       r3.IdentityQuat(),
		EnabledInSolve: true,
	}
}

// AddImagePoint appends an observation to this viewpoint and returns its
// index within the viewpoint's own image point list.
func (v *Viewpoint) AddImagePoint(p ImagePoint) int {
	v.imagePoints = append(v.imagePoints, p)
	return len(v.imagePoints) - 1
}

// ImagePoints returns the viewpoint's observations in insertion order.
func (v *Viewpoint) ImagePoints() []ImagePoint { return v.imagePoints }

// ImagePointAt returns a pointer to the observation at index i so callers
// can update its cached residual in place.
func (v *Viewpoint) ImagePointAt(i int) *ImagePoint { return &v.imagePoints[i] }

// AddVanishingLine appends a vanishing line annotation to this viewpoint.
func (v *Viewpoint) AddVanishingLine(l VanishingLine) int {
	v.vanishingLines = append(v.vanishingLines, l)
	return len(v.vanishingLines) - 1
}

// VanishingLines returns the viewpoint's vanishing line annotations in
// insertion order.
func (v *Viewpoint) VanishingLines() []VanishingLine { return v.vanishingLines }

// Validate checks that the viewpoint's intrinsics and pose are usable.
func (v *Viewpoint) Validate() error {
	if v.Name == "" {
		return fmt.Errorf("scene: viewpoint has no name")
	}
	if err := v.Intrinsics.Validate(); err != nil {
		return fmt.Errorf("scene: viewpoint %q: %w", v.Name, err)
	}
	if v.Rotation.IsNaN() {
		return fmt.Errorf("scene: viewpoint %q has NaN rotation", v.Name)
	}
	return nil
}
