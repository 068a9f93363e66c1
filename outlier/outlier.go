// Package outlier implements the post-solve cleanup pass: find
// observations whose reprojection error stands out from the rest,
// remove them, and let the solver settle once more without reinitializing
// anything. It runs after a candidate has already been chosen and
// solved to convergence, so the threshold only ever has to separate true
// mismeasurements or mislabeled points from an already-good fit, not
// triage a cold start.
package outlier

import (
	"fmt"
	"sort"

	"github.com/montanaflynn/stats"

	"github.com/scottlawsonbc/slam/code/photon/recon/residual"
	"github.com/scottlawsonbc/slam/code/photon/recon/scene"
	"github.com/scottlawsonbc/slam/code/photon/recon/solve"
	"github.com/scottlawsonbc/slam/code/photon/recon/varlayout"
)

// Observation is one flagged reprojection error, reported back to the
// caller so a UI can show which points were dropped and why.
type Observation struct {
	WorldPointName string
	ViewpointName  string
	Error          float64

	viewpointID scene.ID
	index       int
}

// DefaultMultiplier is the default value of k in Threshold's clamp rule.
const DefaultMultiplier = 5.0

// Threshold computes the adaptive cutoff T from the median m of a set of
// per-observation reprojection magnitudes: below a median of 20 pixels
// the threshold grows with the median (clamped to a floor of 50, since a
// very tight median should not flag ordinary noise as outliers); at or
// above it, the threshold still grows with the median but is capped at
// 80, so a genuinely bad solve does not get a threshold so loose nothing
// is ever flagged.
func Threshold(m float64, k float64) float64 {
	if k <= 0 {
		k = DefaultMultiplier
	}
	if m < 20 {
		if k*m > 50 {
			return k * m
		}
		return 50
	}
	if k*m < 80 {
		return k * m
	}
	return 80
}

// Detect returns every currently non-excluded observation whose
// reprojection error exceeds Threshold(median, multiplier), sorted worst
// first, along with the threshold that was used. Behind-camera
// observations are skipped -- the solver already penalizes those
// separately, and their "error" is a fixed constant rather than a real
// pixel distance.
func Detect(project *scene.Project, providers []residual.Provider, x []float64, multiplier float64) ([]Observation, float64) {
	byKey := make(map[[2]scene.ID]*residual.Reprojection)
	for _, p := range providers {
		if rp, ok := p.(*residual.Reprojection); ok {
			byKey[[2]scene.ID{rp.ViewpointID, rp.WorldPointID}] = rp
		}
	}

	var obs []Observation
	var values []float64
	for _, ref := range project.AllImagePoints() {
		_, ip, ok := ref.Resolve(project)
		if !ok || ip.Excluded {
			continue
		}
		rp, ok := byKey[[2]scene.ID{ref.ViewpointID, ip.WorldPointID}]
		if !ok {
			continue
		}
		delta, inFront := rp.PixelResidual(x)
		if !inFront {
			continue
		}
		mag := delta.Length()
		values = append(values, mag)
		vp, _ := project.Viewpoint(ref.ViewpointID)
		wp, _ := project.WorldPoint(ip.WorldPointID)
		obs = append(obs, Observation{
			WorldPointName: orUnknown(wp),
			ViewpointName:  viewpointName(vp),
			Error:          mag,
			viewpointID:    ref.ViewpointID,
			index:          ref.Index,
		})
	}
	if len(values) == 0 {
		return nil, 0
	}
	median, err := stats.Median(stats.LoadRawData(values))
	if err != nil {
		return nil, 0
	}
	threshold := Threshold(median, multiplier)

	var flagged []Observation
	for _, o := range obs {
		if o.Error > threshold {
			flagged = append(flagged, o)
		}
	}
	sort.Slice(flagged, func(i, j int) bool { return flagged[i].Error > flagged[j].Error })
	return flagged, threshold
}

func orUnknown(wp *scene.WorldPoint) string {
	if wp == nil || wp.Name == "" {
		return "?"
	}
	return wp.Name
}

func viewpointName(vp *scene.Viewpoint) string {
	if vp == nil || vp.Name == "" {
		return "?"
	}
	return vp.Name
}

// RemoveAndResolve detects outliers in the project's current solved
// state, marks their ImagePoints Excluded, rebuilds the residual problem
// over the reduced observation set, and reruns the solver once from the
// project's current state -- never reinitializing poses or world
// points, since the whole point of this pass is to clean up an already-
// good solve, not start over.
func RemoveAndResolve(project *scene.Project, opts solve.Options, multiplier float64) ([]Observation, solve.Result, error) {
	layout := varlayout.Build(project)
	providers, err := residual.Build(project, layout)
	if err != nil {
		return nil, solve.Result{}, fmt.Errorf("outlier: %w", err)
	}
	x := layout.ReadVector(project)

	flagged, _ := Detect(project, providers, x, multiplier)
	if len(flagged) == 0 {
		return nil, solve.Result{Converged: true, X: x}, nil
	}

	for _, f := range flagged {
		vp, ok := project.Viewpoint(f.viewpointID)
		if !ok {
			continue
		}
		vp.ImagePointAt(f.index).Excluded = true
	}

	layout = varlayout.Build(project)
	providers, err = residual.Build(project, layout)
	if err != nil {
		return flagged, solve.Result{}, fmt.Errorf("outlier: rebuild after exclusion: %w", err)
	}
	problem := solve.NewProblem(providers, layout.NumVariables())
	x0 := layout.ReadVector(project)
	result, err := solve.Run(problem, x0, opts)
	if err != nil {
		return flagged, result, fmt.Errorf("outlier: re-solve: %w", err)
	}
	layout.WriteVector(project, result.X)
	project.RecomputeOptimizationInfo()
	return flagged, result, nil
}
