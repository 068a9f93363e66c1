package r2_test

import (
	"testing"

	"github.com/scottlawsonbc/slam/code/photon/recon/r2"
)

func TestVecLength(t *testing.T) {
	v := r2.Vec{X: 3, Y: 4}
	if got, want := v.Length(), 5.0; got != want {
		t.Errorf("Length() = %v, want %v", got, want)
	}
}

func TestVecString(t *testing.T) {
	v := r2.Vec{X: 1.5, Y: -2.5}
	if got, want := v.String(), "(1.5, -2.5)"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
