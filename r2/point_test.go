package r2_test

import (
	"testing"

	"github.com/scottlawsonbc/slam/code/photon/recon/r2"
)

func TestPointSub(t *testing.T) {
	p1 := r2.Point{X: 5, Y: 7}
	p2 := r2.Point{X: 2, Y: 3}
	want := r2.Vec{X: 3, Y: 4}
	if got := p1.Sub(p2); got != want {
		t.Errorf("Sub() = %v, want %v", got, want)
	}
}

func TestPointString(t *testing.T) {
	p := r2.Point{X: 960, Y: 540}
	if got, want := p.String(), "(960, 540)"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
