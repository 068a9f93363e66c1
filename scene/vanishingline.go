package scene

import (
	"fmt"

	"github.com/scottlawsonbc/slam/code/photon/recon/r2"
)

// WorldAxis names one of the three principal world axes a VanishingLine
// or Line can be associated with.
type WorldAxis int

const (
	AxisX WorldAxis = iota
	AxisY
	AxisZ
)

func (a WorldAxis) String() string {
	switch a {
	case AxisX:
		return "x"
	case AxisY:
		return "y"
	case AxisZ:
		return "z"
	default:
		return "unknown"
	}
}

// VanishingLine is a user-drawn pixel-space line segment, annotated with
// the world axis it is believed to run parallel to. Groups of
// VanishingLines sharing an axis converge toward a vanishing point in the
// image, which initcam uses to recover a Viewpoint's rotation without any
// WorldPoint correspondences.
type VanishingLine struct {
	Axis WorldAxis
	P1   r2.Point
	P2   r2.Point
}

// Validate checks that the line has two distinct endpoints.
func (l VanishingLine) Validate() error {
	if l.P1 == l.P2 {
		return fmt.Errorf("scene: vanishing line has coincident endpoints")
	}
	return nil
}
