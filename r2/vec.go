package r2

import (
	"fmt"
	"math"
)

// Vec is a pixel-space residual: the distance and direction between a
// projected and an observed pixel. Reconstruction only ever measures
// its magnitude (outlier gating, RANSAC inlier scoring), so the type
// carries just that operation rather than a full vector algebra.
type Vec struct {
	X float64
	Y float64
}

// Length returns the Euclidean length of the residual, in pixels.
func (v Vec) Length() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y)
}

func (v Vec) String() string {
	return fmt.Sprintf("(%v, %v)", v.X, v.Y)
}
