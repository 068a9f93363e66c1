package r3

import (
	"fmt"
	"math"
)

// Quat represents a unit quaternion (W, X, Y, Z) used to encode a 3D
// rotation. The scalar part is W; the vector part is (X, Y, Z).
type Quat struct {
	W float64
	X float64
	Y float64
	Z float64
}

// IdentityQuat returns the identity rotation.
func IdentityQuat() Quat {
	return Quat{W: 1}
}

// Add returns the component-wise sum of the current quaternion and q2.
func (q Quat) Add(q2 Quat) Quat {
	return Quat{q.W + q2.W, q.X + q2.X, q.Y + q2.Y, q.Z + q2.Z}
}

// Muls returns the current quaternion scaled by s.
func (q Quat) Muls(s float64) Quat {
	return Quat{q.W * s, q.X * s, q.Y * s, q.Z * s}
}

// Mul returns the Hamilton product of the current quaternion with q2,
// representing the composed rotation that applies q2 first, then q.
func (q Quat) Mul(q2 Quat) Quat {
	return Quat{
		W: q.W*q2.W - q.X*q2.X - q.Y*q2.Y - q.Z*q2.Z,
		X: q.W*q2.X + q.X*q2.W + q.Y*q2.Z - q.Z*q2.Y,
		Y: q.W*q2.Y - q.X*q2.Z + q.Y*q2.W + q.Z*q2.X,
		Z: q.W*q2.Z + q.X*q2.Y - q.Y*q2.X + q.Z*q2.W,
	}
}

// Conj returns the conjugate of the current quaternion.
func (q Quat) Conj() Quat {
	return Quat{q.W, -q.X, -q.Y, -q.Z}
}

// Norm returns the Euclidean norm of the current quaternion.
func (q Quat) Norm() float64 {
	return math.Sqrt(q.W*q.W + q.X*q.X + q.Y*q.Y + q.Z*q.Z)
}

// Normalize returns the current quaternion scaled to unit norm. If the
// norm is zero, it returns the identity quaternion to avoid division by
// zero.
func (q Quat) Normalize() Quat {
	n := q.Norm()
	if n == 0 {
		return IdentityQuat()
	}
	return q.Muls(1 / n)
}

// IsNaN checks if any component of the quaternion is NaN.
func (q Quat) IsNaN() bool {
	return math.IsNaN(q.W) || math.IsNaN(q.X) || math.IsNaN(q.Y) || math.IsNaN(q.Z)
}

// RotateVec rotates v by the current quaternion, which is assumed unit.
func (q Quat) RotateVec(v Vec) Vec {
	qv := Quat{0, v.X, v.Y, v.Z}
	r := q.Mul(qv).Mul(q.Conj())
	return Vec{r.X, r.Y, r.Z}
}

// Mat3x3 returns the rotation matrix corresponding to the current unit
// quaternion.
func (q Quat) Mat3x3() Mat3x3 {
	w, x, y, z := q.W, q.X, q.Y, q.Z
	return Mat3x3{
		M: [3][3]float64{
			{1 - 2*(y*y+z*z), 2 * (x*y - z*w), 2 * (x*z + y*w)},
			{2 * (x*y + z*w), 1 - 2*(x*x+z*z), 2 * (y*z - x*w)},
			{2 * (x*z - y*w), 2 * (y*z + x*w), 1 - 2*(x*x+y*y)},
		},
	}
}

func (q Quat) String() string {
	return fmt.Sprintf("(w=%v, x=%v, y=%v, z=%v)", q.W, q.X, q.Y, q.Z)
}

// QuatFromMat3x3 converts a proper rotation matrix (det = +1, orthonormal
// columns) to a unit quaternion using Shepperd's method, which picks the
// numerically stable branch based on the matrix trace.
func QuatFromMat3x3(m Mat3x3) Quat {
	trace := m.M[0][0] + m.M[1][1] + m.M[2][2]
	var q Quat
	switch {
	case trace > 0:
		s := 0.5 / math.Sqrt(trace+1.0)
		q = Quat{
			W: 0.25 / s,
			X: (m.M[2][1] - m.M[1][2]) * s,
			Y: (m.M[0][2] - m.M[2][0]) * s,
			Z: (m.M[1][0] - m.M[0][1]) * s,
		}
	case m.M[0][0] > m.M[1][1] && m.M[0][0] > m.M[2][2]:
		s := 2.0 * math.Sqrt(1.0+m.M[0][0]-m.M[1][1]-m.M[2][2])
		q = Quat{
			W: (m.M[2][1] - m.M[1][2]) / s,
			X: 0.25 * s,
			Y: (m.M[0][1] + m.M[1][0]) / s,
			Z: (m.M[0][2] + m.M[2][0]) / s,
		}
	case m.M[1][1] > m.M[2][2]:
		s := 2.0 * math.Sqrt(1.0+m.M[1][1]-m.M[0][0]-m.M[2][2])
		q = Quat{
			W: (m.M[0][2] - m.M[2][0]) / s,
			X: (m.M[0][1] + m.M[1][0]) / s,
			Y: 0.25 * s,
			Z: (m.M[1][2] + m.M[2][1]) / s,
		}
	default:
		s := 2.0 * math.Sqrt(1.0+m.M[2][2]-m.M[0][0]-m.M[1][1])
		q = Quat{
			W: (m.M[1][0] - m.M[0][1]) / s,
			X: (m.M[0][2] + m.M[2][0]) / s,
			Y: (m.M[1][2] + m.M[2][1]) / s,
			Z: 0.25 * s,
		}
	}
	return q.Normalize()
}

// Det returns the determinant of the matrix.
func (m Mat3x3) Det() float64 {
	return m.M[0][0]*(m.M[1][1]*m.M[2][2]-m.M[1][2]*m.M[2][1]) -
		m.M[0][1]*(m.M[1][0]*m.M[2][2]-m.M[1][2]*m.M[2][0]) +
		m.M[0][2]*(m.M[1][0]*m.M[2][1]-m.M[1][1]*m.M[2][0])
}

// MatFromRows builds a Mat3x3 whose rows are the given vectors.
func MatFromRows(r0, r1, r2 Vec) Mat3x3 {
	return Mat3x3{
		M: [3][3]float64{
			{r0.X, r0.Y, r0.Z},
			{r1.X, r1.Y, r1.Z},
			{r2.X, r2.Y, r2.Z},
		},
	}
}

// MatFromCols builds a Mat3x3 whose columns are the given vectors.
func MatFromCols(c0, c1, c2 Vec) Mat3x3 {
	return Mat3x3{
		M: [3][3]float64{
			{c0.X, c1.X, c2.X},
			{c0.Y, c1.Y, c2.Y},
			{c0.Z, c1.Z, c2.Z},
		},
	}
}
