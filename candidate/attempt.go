package candidate

import (
	"fmt"
	"math"
	"sort"

	"github.com/montanaflynn/stats"

	"github.com/scottlawsonbc/slam/code/photon/recon/initcam"
	"github.com/scottlawsonbc/slam/code/photon/recon/residual"
	"github.com/scottlawsonbc/slam/code/photon/recon/scene"
	"github.com/scottlawsonbc/slam/code/photon/recon/solve"
	"github.com/scottlawsonbc/slam/code/photon/recon/varlayout"
)

// Attempt is the outcome of running one Plan against its own copy of a
// project: the solve result plus the scoring numbers Best compares
// across attempts.
type Attempt struct {
	Plan        Plan
	Project     *scene.Project
	SolveResult solve.Result
	MedianError float64
	RMSError    float64
	Converged   bool
	Err         error
}

// Run applies plan's initialization choices to project in place (the
// caller is expected to pass a Snapshot it owns, not the project the
// rest of the program is looking at), runs initcam.Initialize followed
// by PropagateAxisLengths, assembles and solves the residual problem,
// and scores the result by median and RMS reprojection error over every
// observation currently in front of its camera.
func Run(project *scene.Project, plan Plan, opts solve.Options) Attempt {
	attempt := Attempt{Plan: plan, Project: project}

	for _, item := range project.Viewpoints() {
		item.Item.PossiblyCropped = plan.PossiblyCropped
	}

	if _, err := initcam.Initialize(project); err != nil {
		attempt.Err = fmt.Errorf("candidate: initialization: %w", err)
		return attempt
	}
	if err := initcam.PropagateAxisLengths(project, plan.AxisSign); err != nil {
		attempt.Err = fmt.Errorf("candidate: axis propagation: %w", err)
		return attempt
	}

	layout := varlayout.Build(project)
	providers, err := residual.Build(project, layout)
	if err != nil {
		attempt.Err = fmt.Errorf("candidate: %w", err)
		return attempt
	}
	problem := solve.NewProblem(providers, layout.NumVariables())
	x0 := layout.ReadVector(project)
	result, err := solve.Run(problem, x0, opts)
	if err != nil {
		attempt.Err = fmt.Errorf("candidate: solve: %w", err)
		return attempt
	}
	layout.WriteVector(project, result.X)
	project.RecomputeOptimizationInfo()

	attempt.SolveResult = result
	attempt.Converged = result.Converged
	attempt.MedianError, attempt.RMSError = scoreReprojection(providers, result.X)
	return attempt
}

// scoreReprojection returns the median and RMS pixel-space reprojection
// error across every Reprojection provider currently in front of its
// camera, the metric spec.md's candidate branching and outlier pass both
// key off of.
func scoreReprojection(providers []residual.Provider, x []float64) (median, rms float64) {
	var errs []float64
	for _, p := range providers {
		rp, ok := p.(*residual.Reprojection)
		if !ok {
			continue
		}
		delta, inFront := rp.PixelResidual(x)
		if !inFront {
			continue
		}
		errs = append(errs, delta.Length())
	}
	return medianAndRMS(errs)
}

func medianAndRMS(errs []float64) (median, rms float64) {
	if len(errs) == 0 {
		return 0, 0
	}
	if m, err := stats.Median(stats.LoadRawData(errs)); err == nil {
		median = m
	}
	var sumSquares float64
	for _, e := range errs {
		sumSquares += e * e
	}
	rms = math.Sqrt(sumSquares / float64(len(errs)))
	return median, rms
}

// Best picks the winning Attempt among those that converged: lowest
// median reprojection error first, ties broken by lower RMS, remaining
// ties broken by fewer LM iterations (a cheaper win is also a stabler
// one -- see DESIGN.md's Open Question log). It returns an error if no
// attempt converged.
func Best(attempts []Attempt) (Attempt, error) {
	ranked := make([]Attempt, 0, len(attempts))
	for _, a := range attempts {
		if a.Err == nil && a.Converged {
			ranked = append(ranked, a)
		}
	}
	if len(ranked) == 0 {
		return Attempt{}, fmt.Errorf("candidate: no plan converged out of %d attempts", len(attempts))
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.MedianError != b.MedianError {
			return a.MedianError < b.MedianError
		}
		if a.RMSError != b.RMSError {
			return a.RMSError < b.RMSError
		}
		return a.SolveResult.Iterations < b.SolveResult.Iterations
	})
	return ranked[0], nil
}
