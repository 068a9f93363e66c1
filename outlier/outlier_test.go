package outlier_test

import (
	"testing"

	"github.com/scottlawsonbc/slam/code/photon/recon/outlier"
)

func TestThresholdLowMedianFloor(t *testing.T) {
	got := outlier.Threshold(2, 5)
	if got != 50 {
		t.Errorf("Threshold(2, 5) = %v, want 50 (floor)", got)
	}
}

func TestThresholdLowMedianScaled(t *testing.T) {
	got := outlier.Threshold(15, 5)
	if got != 75 {
		t.Errorf("Threshold(15, 5) = %v, want 75", got)
	}
}

func TestThresholdHighMedianCap(t *testing.T) {
	got := outlier.Threshold(30, 5)
	if got != 80 {
		t.Errorf("Threshold(30, 5) = %v, want 80 (cap)", got)
	}
}

func TestThresholdHighMedianScaled(t *testing.T) {
	got := outlier.Threshold(20, 3)
	if got != 60 {
		t.Errorf("Threshold(20, 3) = %v, want 60", got)
	}
}

func TestThresholdDefaultMultiplier(t *testing.T) {
	got := outlier.Threshold(10, 0)
	if got != 50 {
		t.Errorf("Threshold(10, 0) = %v, want 50 (default k=5 still under floor)", got)
	}
}
