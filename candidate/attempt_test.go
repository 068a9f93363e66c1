package candidate_test

import (
	"testing"

	"github.com/scottlawsonbc/slam/code/photon/recon/candidate"
)

func TestEnumerateCapsAtMaxAttempts(t *testing.T) {
	plans := candidate.Enumerate(1)
	if len(plans) != 1 {
		t.Fatalf("Enumerate(1) returned %d plans, want 1", len(plans))
	}
	if plans[0].Description != "default" {
		t.Errorf("Enumerate(1)[0].Description = %q, want %q", plans[0].Description, "default")
	}
}

func TestEnumerateDefaultsToThree(t *testing.T) {
	plans := candidate.Enumerate(0)
	if len(plans) != 3 {
		t.Fatalf("Enumerate(0) returned %d plans, want 3", len(plans))
	}
}

func TestBestReportsErrorWhenNoneConverged(t *testing.T) {
	attempts := []candidate.Attempt{
		{Plan: candidate.Plan{Description: "a"}, Converged: false},
		{Plan: candidate.Plan{Description: "b"}, Converged: false},
	}
	if _, err := candidate.Best(attempts); err == nil {
		t.Errorf("Best should fail when no attempt converged")
	}
}

func TestBestPicksLowestMedianError(t *testing.T) {
	attempts := []candidate.Attempt{
		{Plan: candidate.Plan{Description: "a"}, Converged: true, MedianError: 2.0},
		{Plan: candidate.Plan{Description: "b"}, Converged: true, MedianError: 0.5},
		{Plan: candidate.Plan{Description: "c"}, Converged: true, MedianError: 1.0},
	}
	best, err := candidate.Best(attempts)
	if err != nil {
		t.Fatalf("Best: %v", err)
	}
	if best.Plan.Description != "b" {
		t.Errorf("Best picked %q, want %q", best.Plan.Description, "b")
	}
}
