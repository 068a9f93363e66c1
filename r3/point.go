package r3

import (
	"fmt"
	"math"
)

// Point is a location in world space: a viewpoint's position, a
// triangulated landmark, or a world point under construction from a
// partially-locked coordinate plus a solver variable.
type Point struct {
	X float64
	Y float64
	Z float64
}

// Set returns a new Point with the specified axis set to v.
// Index 0 corresponds to X, 1 to Y, and 2 to Z. Used to assemble a
// point from a mix of locked coordinates and free solver variables,
// one axis at a time.
func (p Point) Set(i int, v float64) Point {
	switch i {
	case 0:
		return Point{v, p.Y, p.Z}
	case 1:
		return Point{p.X, v, p.Z}
	case 2:
		return Point{p.X, p.Y, v}
	}
	panic(fmt.Sprintf("invalid index `%d` for Point", i))
}

// Get returns the value of the point component at the specified index.
// Index 0 corresponds to X, 1 to Y, and 2 to Z.
func (p Point) Get(i int) float64 {
	switch i {
	case 0:
		return p.X
	case 1:
		return p.Y
	case 2:
		return p.Z
	}
	panic(fmt.Sprintf("invalid index `%d` for Point", i))
}

// Sub subtracts another Point from the current Point, resulting in a Vec.
// This represents the vector from p2 to p.
func (p Point) Sub(p2 Point) Vec {
	return Vec{p.X - p2.X, p.Y - p2.Y, p.Z - p2.Z}
}

// Add adds a Vec to the current Point, resulting in a new Point.
// This translates the point by the given vector -- a camera center
// displaced by a translation, a ray origin advanced along its direction.
func (p Point) Add(v Vec) Point {
	return Point{p.X + v.X, p.Y + v.Y, p.Z + v.Z}
}

// IsClose checks if the current Point is approximately equal to p2 within a small epsilon.
func (p Point) IsClose(p2 Point, atol float64) bool {
	return math.Abs(p.X-p2.X) < atol && math.Abs(p.Y-p2.Y) < atol && math.Abs(p.Z-p2.Z) < atol
}

// IsNaN checks if any coordinate of the point is NaN (Not a Number).
func (p Point) IsNaN() bool {
	return math.IsNaN(p.X) || math.IsNaN(p.Y) || math.IsNaN(p.Z)
}

// String returns a string representation of the point.
func (p Point) String() string {
	return fmt.Sprintf("(%v, %v, %v)", p.X, p.Y, p.Z)
}
