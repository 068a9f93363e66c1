package r2

import "fmt"

// Point is a location in pixel space: an observed feature pixel, a
// projected pixel, or a vanishing-line endpoint.
type Point struct {
	X float64
	Y float64
}

// Sub subtracts p2 from the current Point, giving the pixel-space
// displacement from p2 to p -- the shape every reprojection residual
// and RANSAC inlier check in this package takes.
func (p Point) Sub(p2 Point) Vec {
	return Vec{p.X - p2.X, p.Y - p2.Y}
}

func (p Point) String() string {
	return fmt.Sprintf("(%v, %v)", p.X, p.Y)
}
