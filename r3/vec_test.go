package r3_test

import (
	"fmt"
	"math"
	"testing"

	"github.com/scottlawsonbc/slam/code/photon/recon/r3"
)

func ExampleVec_angleBetweenVectors() {
	v1 := r3.Vec{X: 1, Y: 0, Z: 0}
	v2 := r3.Vec{X: 0, Y: 1, Z: 0}

	dotProduct := v1.Dot(v2)
	magnitudeV1 := v1.Length()
	magnitudeV2 := v2.Length()
	angleRadians := math.Acos(dotProduct / (magnitudeV1 * magnitudeV2))
	angleDegrees := angleRadians * (180 / math.Pi)

	fmt.Printf("The angle between %v and %v is %.2f degrees\n", v1, v2, angleDegrees)
	// Output: The angle between (1, 0, 0) and (0, 1, 0) is 90.00 degrees
}

func ExampleVec_rotationAxisFromTwoBearings() {
	// Two observed axis directions imply a rotation axis via their cross
	// product, the way RotationFromVanishingLines derives a camera's
	// remaining axis from two known ones.
	bearingX := r3.Vec{X: 1, Y: 0, Z: 0}
	bearingY := r3.Vec{X: 0, Y: 1, Z: 0}

	axis := bearingX.Cross(bearingY)

	fmt.Printf("Implied axis: %v\n", axis)
	// Output: Implied axis: (0, 0, 1)
}

func ExampleVec_scaleToLength() {
	v := r3.Vec{X: 3, Y: 4, Z: 0}
	newLength := 10.0
	vScaled := v.Unit().Muls(newLength)

	fmt.Printf("Scaled vector: %v\n", vScaled)
	// Output: Scaled vector: (6, 8, 0)
}

func TestVecAdd(t *testing.T) {
	v1 := r3.Vec{1, 2, 3}
	v2 := r3.Vec{4, 5, 6}
	expected := r3.Vec{5, 7, 9}
	result := v1.Add(v2)
	if result != expected {
		t.Errorf("Add: expected %v, got %v", expected, result)
	}
}

func TestVecSub(t *testing.T) {
	v1 := r3.Vec{1, 2, 3}
	v2 := r3.Vec{4, 5, 6}
	expected := r3.Vec{-3, -3, -3}
	result := v1.Sub(v2)
	if result != expected {
		t.Errorf("Sub: expected %v, got %v", expected, result)
	}
}

func TestVecMul(t *testing.T) {
	v1 := r3.Vec{1, 2, 3}
	v2 := r3.Vec{4, 5, 6}
	expected := r3.Vec{4, 10, 18}
	result := v1.Mul(v2)
	if result != expected {
		t.Errorf("Mul: expected %v, got %v", expected, result)
	}
}

func TestVecMuls(t *testing.T) {
	v := r3.Vec{1, 2, 3}
	s := 2.0
	expected := r3.Vec{2, 4, 6}
	result := v.Muls(s)
	if result != expected {
		t.Errorf("Muls: expected %v, got %v", expected, result)
	}
}

func TestVecDivs(t *testing.T) {
	v := r3.Vec{2, 4, 6}
	s := 2.0
	expected := r3.Vec{1, 2, 3}
	result := v.Divs(s)
	if result != expected {
		t.Errorf("Divs: expected %v, got %v", expected, result)
	}
}

func TestVecDot(t *testing.T) {
	v1 := r3.Vec{1, 2, 3}
	v2 := r3.Vec{4, 5, 6}
	expected := 32.0
	result := v1.Dot(v2)
	if result != expected {
		t.Errorf("Dot: expected %v, got %v", expected, result)
	}
}

func TestVecCross(t *testing.T) {
	v1 := r3.Vec{1, 2, 3}
	v2 := r3.Vec{4, 5, 6}
	expected := r3.Vec{-3, 6, -3}
	result := v1.Cross(v2)
	if result != expected {
		t.Errorf("Cross: expected %v, got %v", expected, result)
	}
}

func TestVecIsClose(t *testing.T) {
	v1 := r3.Vec{1.0000001, 2.0000001, 3.0000001}
	v2 := r3.Vec{1.0000002, 2.0000002, 3.0000002}
	v3 := r3.Vec{1.1, 2.1, 3.1}
	atol := 1e-6

	if !v1.IsClose(v2, atol) {
		t.Errorf("IsClose: expected %v to be close to %v within %v", v1, v2, atol)
	}
	if v1.IsClose(v3, atol) {
		t.Errorf("IsClose: expected %v not to be close to %v within %v", v1, v3, atol)
	}
}

func TestVecLength(t *testing.T) {
	v := r3.Vec{3, 4, 0}
	expected := 5.0
	result := v.Length()
	if result != expected {
		t.Errorf("Length: expected %v, got %v", expected, result)
	}
}

func TestVecUnit(t *testing.T) {
	v := r3.Vec{3, 4, 0}
	expected := r3.Vec{0.6, 0.8, 0}
	result := v.Unit()
	if !result.IsClose(expected, 1e-6) {
		t.Errorf("Unit: expected %v, got %v", expected, result)
	}

	vZero := r3.Vec{0, 0, 0}
	expectedZero := r3.Vec{0, 0, 0}
	resultZero := vZero.Unit()
	if resultZero != expectedZero {
		t.Errorf("Unit of zero vector: expected %v, got %v", expectedZero, resultZero)
	}
}

func TestVecIsNaN(t *testing.T) {
	vNaN := r3.Vec{math.NaN(), 0, 0}
	if !vNaN.IsNaN() {
		t.Errorf("IsNaN: expected %v to be NaN", vNaN)
	}

	vValid := r3.Vec{0, 0, 0}
	if vValid.IsNaN() {
		t.Errorf("IsNaN: expected %v not to be NaN", vValid)
	}
}

func TestVecGet(t *testing.T) {
	v := r3.Vec{1, 2, 3}
	tests := []struct {
		index    int
		expected float64
	}{
		{0, 1},
		{1, 2},
		{2, 3},
	}

	for _, test := range tests {
		result := v.Get(test.index)
		if result != test.expected {
			t.Errorf("Get(%d): expected %v, got %v", test.index, test.expected, result)
		}
	}

	invalidIndices := []int{-1, 3}
	for _, index := range invalidIndices {
		func(idx int) {
			defer func() {
				if r := recover(); r == nil {
					t.Errorf("Get did not panic on invalid index %d", idx)
				}
			}()
			v.Get(idx)
		}(index)
	}
}

func TestVecString(t *testing.T) {
	v := r3.Vec{1.1, 2.2, 3.3}
	expected := "(1.1, 2.2, 3.3)"
	result := v.String()
	if result != expected {
		t.Errorf("String: expected %v, got %v", expected, result)
	}
}
