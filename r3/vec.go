package r3

import (
	"fmt"
	"math"
)

// Vec is a direction or displacement in world space: a camera ray, a
// translation between viewpoints, a surface normal, or a row of a
// rotation matrix. Every reconstruction stage that builds or consumes
// one of those needs exactly the algebra kept here.
type Vec struct {
	X float64
	Y float64
	Z float64
}

// Add returns the vector addition of the current vector and v2.
func (v Vec) Add(v2 Vec) Vec {
	return Vec{v.X + v2.X, v.Y + v2.Y, v.Z + v2.Z}
}

// Sub returns the vector subtraction of v2 from the current vector.
func (v Vec) Sub(v2 Vec) Vec {
	return Vec{v.X - v2.X, v.Y - v2.Y, v.Z - v2.Z}
}

// Mul returns the component-wise multiplication of the current vector and v2.
func (v Vec) Mul(v2 Vec) Vec {
	return Vec{v.X * v2.X, v.Y * v2.Y, v.Z * v2.Z}
}

// Muls returns the current vector multiplied by a scalar value s.
func (v Vec) Muls(s float64) Vec {
	return Vec{v.X * s, v.Y * s, v.Z * s}
}

// Divs returns the current vector divided by a scalar value s.
func (v Vec) Divs(s float64) Vec {
	return Vec{v.X / s, v.Y / s, v.Z / s}
}

// Dot computes the dot product of the current vector with v2.
func (v Vec) Dot(v2 Vec) float64 {
	return v.X*v2.X + v.Y*v2.Y + v.Z*v2.Z
}

// Cross computes the cross product of the current vector with v2,
// e.g. a ray direction from two vanishing-line bearings, or a rotation
// axis from two observed axis directions.
func (v Vec) Cross(v2 Vec) Vec {
	return Vec{v.Y*v2.Z - v.Z*v2.Y, v.Z*v2.X - v.X*v2.Z, v.X*v2.Y - v.Y*v2.X}
}

// IsClose checks if the current vector is approximately equal to v2 within an absolute tolerance.
func (v Vec) IsClose(v2 Vec, atol float64) bool {
	return math.Abs(v.X-v2.X) < atol && math.Abs(v.Y-v2.Y) < atol && math.Abs(v.Z-v2.Z) < atol
}

// Length returns the Euclidean length (magnitude) of the vector.
func (v Vec) Length() float64 {
	return math.Sqrt(v.Dot(v))
}

// Unit returns the unit vector (vector with length 1) in the direction of the current vector.
// If the vector is zero, it returns the zero vector to avoid division by zero.
func (v Vec) Unit() Vec {
	length := v.Length()
	if length == 0 {
		return Vec{0, 0, 0}
	}
	return v.Divs(length)
}

// IsNaN checks if any component of the vector is NaN (Not a Number).
func (v Vec) IsNaN() bool {
	return math.IsNaN(v.X) || math.IsNaN(v.Y) || math.IsNaN(v.Z)
}

// Get returns the value of the vector component at the specified index.
// Index 0 corresponds to X, 1 to Y, and 2 to Z.
// It panics if the index is out of bounds.
func (v Vec) Get(i int) float64 {
	switch i {
	case 0:
		return v.X
	case 1:
		return v.Y
	case 2:
		return v.Z
	}
	panic(fmt.Sprintf("invalid index %d", i))
}

func (v Vec) String() string {
	return fmt.Sprintf("(%v, %v, %v)", v.X, v.Y, v.Z)
}
